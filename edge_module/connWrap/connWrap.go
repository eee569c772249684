package connWrap

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ConnCommon is a byte stream an RTU master can frame requests on.
type ConnCommon interface {
	io.ReadWriteCloser
	ResetInputBuffer() (err error)
}

// ConnUtil serializes transactions on a shared conn. Devices on one bus lock it around every request.
type ConnUtil struct {
	ConnCommon
	sync.Mutex
	Typ string

	// settle is how long a failed transaction keeps the bus locked so a late reply can drain.
	settle time.Duration
}

func NewConnUtil(conn ConnCommon) *ConnUtil {
	return &ConnUtil{
		ConnCommon: conn,
		settle:     time.Second,
	}
}

// Exclusive runs f with the conn locked and the input buffer cleared of stale bytes.
func (c *ConnUtil) Exclusive(f func() error) (err error) {
	c.Lock()
	defer func() { c.UnlockCheckNotTimeout(err) }()

	if err = c.ResetInputBuffer(); err != nil {
		return &Error{Type: ErrIO, Err: err}
	}
	return f()
}

func (c *ConnUtil) UnlockCheckNotTimeout(err error) {
	if err != nil && !errors.Is(err, ErrTimeout) {
		time.Sleep(c.settle) // wait for end
	}
	c.Unlock()
}
