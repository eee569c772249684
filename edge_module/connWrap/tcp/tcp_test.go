package tcp

import (
	"io"
	"net"
	"testing"
	"time"

	"edgepoll/edge_module/connWrap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()
	return ln, accepted
}

func TestTcp_ReadWrite(t *testing.T) {
	ln, accepted := listen(t)
	c, err := NewTcp(ln.Addr().String(), 100*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	peer := <-accepted

	_, err = c.Write([]byte{0x01, 0x04})
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x04}, buf)

	// nothing to read: a timeout keeps the connection
	_, err = c.Read(buf)
	assert.ErrorIs(t, err, connWrap.ErrTimeout)
	_, err = c.current()
	assert.NoError(t, err)
}

func TestTcp_ResetInputBuffer(t *testing.T) {
	ln, accepted := listen(t)
	c, err := NewTcp(ln.Addr().String(), 200*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	peer := <-accepted

	_, err = peer.Write([]byte("stale"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.ResetInputBuffer())

	_, err = peer.Write([]byte{0x42})
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, buf[:n])
}

func TestTcp_Reconnect(t *testing.T) {
	reconnectDelay = 10 * time.Millisecond
	ln, accepted := listen(t)
	c, err := NewTcp(ln.Addr().String(), 100*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	peer := <-accepted
	require.NoError(t, peer.Close())

	buf := make([]byte, 1)
	_, err = c.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("no redial")
	}
	assert.Eventually(t, func() bool {
		_, err := c.current()
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestTcp_Close(t *testing.T) {
	ln, _ := listen(t)
	c, err := NewTcp(ln.Addr().String(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Write([]byte{0})
	assert.Error(t, err)
}

func TestNewTcp_EmptyAddr(t *testing.T) {
	_, err := NewTcp("", time.Second)
	assert.Error(t, err)
}
