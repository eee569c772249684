package device

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"edgepoll/edge_module/connWrap"
	"edgepoll/edge_module/connWrap/tcp"
	"edgepoll/edge_module/connWrap/uart"
	"edgepoll/pkg/custype"
	"edgepoll/pkg/project"

	"github.com/wwnt/modbus"
	"go.uber.org/zap"
)

func init() {
	RegisterTransport("rtu", newRTUFactory)
	RegisterTransport("rtu_tcp", newRTUOverTCPFactory)
}

const defaultReadTimeout = time.Second

var (
	busesMu sync.Mutex
	// buses holds one conn per serial port or gateway address. Slaves on the same bus share it.
	buses = make(map[string]*connWrap.ConnUtil)
)

func busFor(key, typ string, open func() (connWrap.ConnCommon, error)) (*connWrap.ConnUtil, error) {
	busesMu.Lock()
	defer busesMu.Unlock()
	if c, ok := buses[key]; ok {
		return c, nil
	}
	conn, err := open()
	if err != nil {
		return nil, err
	}
	c := connWrap.NewConnUtil(conn)
	c.Typ = typ
	buses[key] = c
	project.RegisterReleaseFunc(func() {
		if err := conn.Close(); err != nil {
			zap.L().Warn("close bus", zap.String("bus", key), zap.Error(err))
		}
	})
	return c, nil
}

type rtuConfig struct {
	Port         string           `json:"port"`
	Addr         string           `json:"addr"`
	Mode         uart.Mode        `json:"mode"`
	ReadTimeout  custype.Duration `json:"read_timeout"`
	SlaveId      byte             `json:"slave_id"`
	RegisterType RegisterKind     `json:"register_type"`
}

func (c rtuConfig) readTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout.Std()
	}
	return defaultReadTimeout
}

func parseRTUConfig(rawConf json.RawMessage) (rtuConfig, error) {
	conf := rtuConfig{SlaveId: 1}
	err := json.Unmarshal(rawConf, &conf)
	return conf, err
}

func newRTUFactory(_ string, rawConf json.RawMessage) (Factory, error) {
	conf, err := parseRTUConfig(rawConf)
	if err != nil {
		return nil, err
	}
	if conf.Port == "" {
		return nil, errors.New("port is required")
	}
	return rtuFactory(conf, "uart:"+conf.Port, func() (connWrap.ConnCommon, error) {
		return uart.NewUart(conf.Port, conf.readTimeout(), conf.Mode)
	}), nil
}

func newRTUOverTCPFactory(_ string, rawConf json.RawMessage) (Factory, error) {
	conf, err := parseRTUConfig(rawConf)
	if err != nil {
		return nil, err
	}
	if conf.Addr == "" {
		return nil, errors.New("addr is required")
	}
	return rtuFactory(conf, "tcp:"+conf.Addr, func() (connWrap.ConnCommon, error) {
		return tcp.NewTcp(conf.Addr, conf.readTimeout())
	}), nil
}

func rtuFactory(conf rtuConfig, key string, open func() (connWrap.ConnCommon, error)) Factory {
	return func() (RegisterReader, error) {
		conn, err := busFor(key, "rtu", open)
		if err != nil {
			return nil, err
		}
		return newRTUReader(conn, conf.SlaveId, conf.RegisterType), nil
	}
}

// rtuReader addresses one slave on a shared bus. Open and Close leave the bus itself alone.
type rtuReader struct {
	conn *connWrap.ConnUtil
	registerAccess
}

func newRTUReader(conn *connWrap.ConnUtil, slaveId byte, kind RegisterKind) *rtuReader {
	h := modbus.NewRTUClientHandler(conn)
	h.SlaveId = slaveId
	return &rtuReader{
		conn:           conn,
		registerAccess: registerAccess{client: modbus.NewClient(h), kind: kind},
	}
}

func (r *rtuReader) Open() error  { return nil }
func (r *rtuReader) Close() error { return nil }

func (r *rtuReader) ReadRegister(address, count uint16) (words []uint16, err error) {
	err = r.conn.Exclusive(func() error {
		words, err = r.readRegister(address, count)
		return err
	})
	return words, err
}

func (r *rtuReader) WriteCoil(address uint16, on bool) error {
	return r.conn.Exclusive(func() error {
		return r.writeCoil(address, on)
	})
}
