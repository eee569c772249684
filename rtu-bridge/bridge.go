package main

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"edgepoll/edge_module/connWrap"
	"edgepoll/pkg"

	"go.uber.org/zap"
)

var retryDelay = time.Second

// bridge copies raw RTU frames between one TCP client at a time and a serial port.
// A single reader drains the port for the lifetime of the bridge; bytes with no client attached are dropped.
type bridge struct {
	port   io.ReadWriter
	debug  bool
	logger *zap.Logger

	mu     sync.Mutex
	client net.Conn
}

func (b *bridge) serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.readPort(ctx)
	}()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger := b.logger.With(zap.Stringer("remote", conn.RemoteAddr()))
		logger.Info("client connected")
		b.attach(conn)
		b.clientToPort(ctx, conn, logger)
		b.attach(nil)
		_ = conn.Close()
		logger.Info("client disconnected")
	}
}

func (b *bridge) attach(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = conn
}

func (b *bridge) current() net.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

func (b *bridge) clientToPort(ctx context.Context, conn net.Conn, logger *zap.Logger) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if b.debug {
			logger.Debug("tx", zap.ByteString("data", pkg.Printable(buf[:n])))
		}
		if _, err = b.port.Write(buf[:n]); err != nil {
			logger.Error("write port", zap.Error(err))
		}
	}
}

// readPort relies on the port read timeout to notice ctx.
func (b *bridge) readPort(ctx context.Context) {
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := b.port.Read(buf)
		if n > 0 {
			if b.debug {
				b.logger.Debug("rx", zap.ByteString("data", pkg.Printable(buf[:n])))
			}
			if conn := b.current(); conn == nil {
				b.logger.Debug("no client, dropped", zap.Int("bytes", n))
			} else if _, werr := conn.Write(buf[:n]); werr != nil {
				b.logger.Warn("write client", zap.Error(werr))
				_ = conn.Close()
			}
		}
		if err != nil && !errors.Is(err, connWrap.ErrTimeout) {
			// the port reopens itself
			b.logger.Debug("read port", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
}
