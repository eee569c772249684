package connWrap

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufConn struct {
	bytes.Buffer
	resets   int
	resetErr error
}

func (b *bufConn) Close() error { return nil }

func (b *bufConn) ResetInputBuffer() error {
	b.resets++
	if b.resetErr != nil {
		return b.resetErr
	}
	b.Reset()
	return nil
}

func TestConnUtil_Exclusive(t *testing.T) {
	tests := []struct {
		name     string
		resetErr error
		f        func(c *ConnUtil) error
		wantErr  assert.ErrorAssertionFunc
		wantType ErrorType
	}{
		{
			name: "ok",
			f: func(c *ConnUtil) error {
				_, err := c.Write([]byte{0x01, 0x04})
				return err
			},
			wantErr: assert.NoError,
		},
		{
			name:     "reset fails",
			resetErr: io.ErrClosedPipe,
			f:        func(c *ConnUtil) error { return nil },
			wantErr:  assert.Error,
			wantType: ErrIO,
		},
		{
			name:    "timeout",
			f:       func(c *ConnUtil) error { return ErrTimeout },
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &bufConn{resetErr: tt.resetErr}
			conn.WriteString("stale")
			c := NewConnUtil(conn)
			c.settle = time.Millisecond
			err := c.Exclusive(func() error { return tt.f(c) })
			tt.wantErr(t, err)
			assert.Equal(t, 1, conn.resets)
			var e *Error
			if errors.As(err, &e) {
				assert.Equal(t, tt.wantType, e.Type)
				assert.ErrorIs(t, err, tt.resetErr)
			}
			// the lock is released whatever f returned
			require.True(t, c.TryLock())
			c.Unlock()
		})
	}
}

func TestError_Error(t *testing.T) {
	err := &Error{Type: ErrDevice, Send: []byte{0x01, 'A'}, Received: []byte{0x02}, Err: ErrTimeout}
	assert.Equal(t, "device: timeout, Send: [01 41]A, Rcvd: [02]", err.Error())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
}
