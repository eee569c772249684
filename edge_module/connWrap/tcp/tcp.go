package tcp

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"edgepoll/edge_module/connWrap"

	"go.uber.org/zap"
)

var reconnectDelay = 10 * time.Second

// Tcp is a serial line behind a transparent TCP gateway. It redials in the background after I/O errors.
type Tcp struct {
	addr        string
	readTimeout time.Duration
	readBuf     []byte
	logger      *zap.Logger

	mu          sync.Mutex
	conn        net.Conn
	inReconnect atomic.Bool
	closed      chan struct{}
	closeOnce   sync.Once
}

func NewTcp(addr string, readTimeout time.Duration) (*Tcp, error) {
	if addr == "" {
		return nil, errors.New("tcp: empty address")
	}
	c := &Tcp{
		addr:        addr,
		readTimeout: readTimeout,
		readBuf:     make([]byte, 1024),
		logger:      zap.L().With(zap.String("addr", addr)),
		closed:      make(chan struct{}),
	}
	if err := c.open(); err != nil {
		c.logger.Warn("dial failed, retrying in background", zap.Error(err))
		c.reopenUntilSuccess()
	}
	return c, nil
}

func (c *Tcp) reopenUntilSuccess() {
	if !c.inReconnect.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	go func() {
		defer c.inReconnect.Store(false)
		for {
			select {
			case <-c.closed:
				return
			default:
			}
			err := c.open()
			if err == nil {
				return
			}
			c.logger.Error("dial", zap.Error(err))
			select {
			case <-c.closed:
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

func (c *Tcp) open() error {
	newConn, err := net.DialTimeout("tcp", c.addr, c.readTimeout+5*time.Second)
	if err != nil {
		return err
	}
	if tc, ok := newConn.(*net.TCPConn); ok {
		if err = tc.SetKeepAlive(true); err == nil {
			err = tc.SetKeepAlivePeriod(30 * time.Second)
		}
		if err != nil {
			_ = newConn.Close()
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		_ = newConn.Close()
		return net.ErrClosed
	default:
	}
	c.conn = newConn
	c.logger.Info("connected", zap.Stringer("remote", newConn.RemoteAddr()))
	return nil
}

func (c *Tcp) current() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, os.ErrInvalid
	}
	return c.conn, nil
}

func (c *Tcp) Read(b []byte) (n int, err error) {
	conn, err := c.current()
	if err != nil {
		return 0, err
	}
	defer func() { c.handleErr(err) }()
	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	n, err = conn.Read(b)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, connWrap.ErrTimeout
	}
	return n, err
}

func (c *Tcp) Write(b []byte) (n int, err error) {
	conn, err := c.current()
	if err != nil {
		return 0, err
	}
	defer func() { c.handleErr(err) }()
	return conn.Write(b)
}

// ResetInputBuffer discards whatever the gateway already delivered.
func (c *Tcp) ResetInputBuffer() (err error) {
	conn, err := c.current()
	if err != nil {
		return err
	}
	defer func() { c.handleErr(err) }()
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		if _, err = conn.Read(c.readBuf); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (c *Tcp) Close() error {
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

func (c *Tcp) handleErr(err error) {
	if err == nil || errors.Is(err, connWrap.ErrTimeout) {
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	c.reopenUntilSuccess()
}
