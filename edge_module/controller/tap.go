package controller

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"edgepoll/edge_module/db"
	"edgepoll/pkg/pubsub"

	"go.uber.org/zap"
)

func listenTap(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	zap.L().Info("tap listening", zap.Stringer("addr", ln.Addr()))
	return ln, nil
}

// serveTap streams samples as JSON lines to every client until ctx is done.
// It returns once every client handler has exited.
func serveTap(ctx context.Context, ln net.Listener, dataPubSub *pubsub.PubSub) {
	var conns sync.WaitGroup
	defer conns.Wait()
	defer func() { _ = ln.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				zap.L().Error("tap accept", zap.Error(err))
			}
			return
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			tapConn(ctx, conn, dataPubSub)
		}()
	}
}

// tapConn first sends the journaled alert state of every loop, then live samples.
// A client narrows the stream by sending a JSON array of loop names; an empty array restores everything.
func tapConn(ctx context.Context, conn net.Conn, dataPubSub *pubsub.PubSub) {
	logger := zap.L().With(zap.Stringer("remote", conn.RemoteAddr()))
	logger.Debug("tap client connected")
	closeChan := make(chan struct{})
	defer close(closeChan)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closeChan:
		}
	}()

	if db.Enabled() {
		states, err := db.GetLatestAlertStates()
		if err != nil {
			logger.Error("latest alert states", zap.Error(err))
			_ = conn.Close()
			return
		}
		line, err := pubsub.Line(states)
		if err == nil {
			_, err = conn.Write(line)
		}
		if err != nil {
			_ = conn.Close()
			return
		}
	}

	subscriber := pubsub.NewSubscriber(closeChan, conn)
	dataPubSub.SubscribeTopic(subscriber, nil)
	defer dataPubSub.Evict(subscriber)

	decoder := json.NewDecoder(conn)
	for {
		var loops []string
		if err := decoder.Decode(&loops); err != nil {
			logger.Debug("tap client gone", zap.Error(err))
			return
		}
		var topics pubsub.TopicMap
		if len(loops) > 0 {
			topics = make(pubsub.TopicMap, len(loops))
			for _, name := range loops {
				topics[name] = struct{}{}
			}
		}
		dataPubSub.SubscribeTopic(subscriber, topics)
	}
}
