package uart

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"edgepoll/edge_module/connWrap"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

var parityMap = map[string]serial.Parity{
	"none":  serial.NoParity,
	"odd":   serial.OddParity,
	"even":  serial.EvenParity,
	"mark":  serial.MarkParity,
	"space": serial.SpaceParity,
}

var stopBitsMap = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

// Mode is the line setting of an RS-485 bus. Zero fields take the Modbus RTU defaults 9600 8N1.
type Mode struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	Parity   string `json:"parity"` // none, odd, even, mark, space
	StopBits int    `json:"stop_bits"`
}

func (m Mode) serialMode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 9600
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if p, ok := parityMap[strings.ToLower(m.Parity)]; ok {
		mode.Parity = p
	}
	if s, ok := stopBitsMap[m.StopBits]; ok {
		mode.StopBits = s
	}
	return mode
}

type Uart struct {
	mode        *serial.Mode
	portName    string
	readTimeout time.Duration
	logger      *zap.Logger

	mu          sync.Mutex
	conn        serial.Port
	inReconnect atomic.Bool
	closed      chan struct{}
	closeOnce   sync.Once
}

func NewUart(name string, readTimeout time.Duration, mode Mode) (*Uart, error) {
	if name == "" {
		return nil, errors.New("uart: empty port name")
	}
	c := &Uart{
		portName:    name,
		readTimeout: readTimeout,
		mode:        mode.serialMode(),
		logger:      zap.L().With(zap.String("port", name)),
		closed:      make(chan struct{}),
	}
	go c.reopenUntilSuccess()
	return c, nil
}

func (c *Uart) reopenUntilSuccess() {
	if !c.inReconnect.CompareAndSwap(false, true) {
		return
	}
	defer c.inReconnect.Store(false)
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	for {
		if err := c.open(); err != nil {
			c.logger.Error("open serial port", zap.Error(err))
		} else {
			c.logger.Info("serial port opened")
			return
		}
		select {
		case <-c.closed:
			return
		case <-time.After(10 * time.Second):
		}
	}
}

func (c *Uart) open() error {
	port, err := serial.Open(c.portName, c.mode)
	if err != nil {
		return err
	}
	if err = port.SetReadTimeout(c.readTimeout); err != nil {
		_ = port.Close()
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		_ = port.Close()
		return os.ErrClosed
	default:
	}
	c.conn = port
	return nil
}

func (c *Uart) current() (serial.Port, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, os.ErrInvalid
	}
	return c.conn, nil
}

func (c *Uart) Read(b []byte) (n int, err error) {
	port, err := c.current()
	if err != nil {
		return 0, err
	}
	defer func() { c.handleErr(err) }()
	n, err = port.Read(b)
	if n == 0 && err == nil {
		return 0, connWrap.ErrTimeout
	}
	return n, err
}

func (c *Uart) Write(b []byte) (n int, err error) {
	port, err := c.current()
	if err != nil {
		return 0, err
	}
	defer func() { c.handleErr(err) }()
	return port.Write(b)
}

func (c *Uart) ResetInputBuffer() (err error) {
	port, err := c.current()
	if err != nil {
		return err
	}
	defer func() { c.handleErr(err) }()
	return port.ResetInputBuffer()
}

func (c *Uart) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			err = c.conn.Close()
			c.conn = nil
		}
	})
	return err
}

func (c *Uart) handleErr(err error) {
	if err == nil || errors.Is(err, connWrap.ErrTimeout) {
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	go c.reopenUntilSuccess()
}
