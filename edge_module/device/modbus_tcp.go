package device

import (
	"encoding/json"
	"errors"
	"time"

	"edgepoll/pkg/custype"

	"github.com/goburrow/modbus"
)

func init() {
	RegisterTransport("tcp", newTCPFactory)
}

type tcpConfig struct {
	Addr         string           `json:"addr"`
	SlaveId      byte             `json:"slave_id"`
	Timeout      custype.Duration `json:"timeout"`
	IdleTimeout  custype.Duration `json:"idle_timeout"`
	RegisterType RegisterKind     `json:"register_type"`
}

func newTCPFactory(_ string, rawConf json.RawMessage) (Factory, error) {
	conf := tcpConfig{SlaveId: 1}
	if err := json.Unmarshal(rawConf, &conf); err != nil {
		return nil, err
	}
	if conf.Addr == "" {
		return nil, errors.New("addr is required")
	}
	return func() (RegisterReader, error) {
		h := modbus.NewTCPClientHandler(conf.Addr)
		h.SlaveId = conf.SlaveId
		if conf.Timeout > 0 {
			h.Timeout = conf.Timeout.Std()
		}
		if conf.IdleTimeout > 0 {
			h.IdleTimeout = conf.IdleTimeout.Std()
		} else {
			h.IdleTimeout = time.Minute
		}
		return &tcpReader{
			handler:        h,
			registerAccess: registerAccess{client: modbus.NewClient(h), kind: conf.RegisterType},
		}, nil
	}, nil
}

// tcpReader owns one Modbus TCP connection. The handler redials on demand after Close or an idle timeout.
type tcpReader struct {
	handler *modbus.TCPClientHandler
	registerAccess
}

func (r *tcpReader) Open() error  { return r.handler.Connect() }
func (r *tcpReader) Close() error { return r.handler.Close() }

func (r *tcpReader) ReadRegister(address, count uint16) ([]uint16, error) {
	return r.readRegister(address, count)
}

func (r *tcpReader) WriteCoil(address uint16, on bool) error {
	return r.writeCoil(address, on)
}
