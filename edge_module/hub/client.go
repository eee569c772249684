package hub

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"edgepoll/edge_module/global"
	"edgepoll/edge_module/metrics"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("edge hub not connected")
	ErrSendTimeout  = errors.New("edge hub send timeout")
)

// Message is one message routed to an input of this module.
type Message struct {
	Input      string
	Payload    []byte
	Properties map[string]string
}

type Handler func(Message)

// Stats counts hub traffic since the client was created.
type Stats struct {
	Received  int64 `json:"received"`
	Confirmed int64 `json:"confirmed"`
	Failed    int64 `json:"failed"`
}

type pahoClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Client sends to module outputs and dispatches module inputs. Send is safe for concurrent use.
type Client struct {
	conn     pahoClient
	deviceID string
	moduleID string
	qos      byte
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	routes map[string]Handler

	received  atomic.Int64
	confirmed atomic.Int64
	failed    atomic.Int64
}

func newClient(conn pahoClient, cfg global.HubConfig) *Client {
	timeout := cfg.MessageTimeout.Std()
	if timeout <= 0 {
		timeout = global.DefaultMessageTimeout
	}
	return &Client{
		conn:     conn,
		deviceID: cfg.DeviceID,
		moduleID: cfg.ModuleID,
		qos:      cfg.QoS,
		timeout:  timeout,
		logger:   zap.L().With(zap.String("module", cfg.ModuleID)),
		routes:   make(map[string]Handler),
	}
}

// Dial connects to the edge hub broker and subscribes to the module inputs on every (re)connect.
func Dial(cfg global.HubConfig) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("hub: broker is not configured")
	}
	if cfg.DeviceID == "" || cfg.ModuleID == "" {
		return nil, errors.New("hub: device_id and module_id are required")
	}
	connectTimeout := cfg.ConnectTimeout.Std()
	if connectTimeout <= 0 {
		connectTimeout = global.DefaultConnectTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.CACert != "" {
		tlsConfig, err := newTLSConfig(cfg.CACert)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	var c *Client
	opts.SetOnConnectHandler(func(mc mqtt.Client) {
		filter := InputsFilter(cfg.DeviceID, cfg.ModuleID)
		if tok := mc.Subscribe(filter, cfg.QoS, c.onMessage); tok.WaitTimeout(connectTimeout) && tok.Error() != nil {
			c.logger.Error("subscribe", zap.String("filter", filter), zap.Error(tok.Error()))
			return
		}
		c.logger.Info("connected to edge hub", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("edge hub connection lost", zap.Error(err))
	})

	mc := mqtt.NewClient(opts)
	c = newClient(mc, cfg)
	tok := mc.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		mc.Disconnect(0)
		return nil, fmt.Errorf("hub: connect to %s: timed out after %s", cfg.Broker, connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("hub: connect to %s: %w", cfg.Broker, err)
	}
	return c, nil
}

func newTLSConfig(caFile string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("hub: read ca cert: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("hub: no certificate in %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Send publishes payload to output and waits for the broker ack, at most the message timeout.
func (c *Client) Send(ctx context.Context, payload []byte, output string, properties map[string]string) (err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			c.failed.Add(1)
			metrics.HubMessagesSentTotal.WithLabelValues(output, "failed").Inc()
			return
		}
		c.confirmed.Add(1)
		metrics.HubMessagesSentTotal.WithLabelValues(output, "success").Inc()
		metrics.HubSendDuration.Observe(time.Since(start).Seconds())
	}()
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}
	topic := EventsTopic(c.deviceID, c.moduleID, output, properties)
	tok := c.conn.Publish(topic, c.qos, false, payload)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrSendTimeout, c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forward re-sends an inbound message unchanged on output. Routing properties set by the hub are dropped.
func (c *Client) Forward(ctx context.Context, m Message, output string) error {
	properties := make(map[string]string, len(m.Properties))
	for k, v := range m.Properties {
		if strings.HasPrefix(k, "$.") && k != "$.ct" && k != "$.ce" {
			continue
		}
		properties[k] = v
	}
	return c.Send(ctx, m.Payload, output, properties)
}

// Handle routes messages arriving on input to h. Messages on inputs without a handler are discarded.
func (c *Client) Handle(input string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[input] = h
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	input, properties, ok := ParseInputTopic(c.deviceID, c.moduleID, msg.Topic())
	if !ok {
		c.logger.Debug("ignored topic", zap.String("topic", msg.Topic()))
		return
	}
	n := c.received.Add(1)
	metrics.HubMessagesReceivedTotal.WithLabelValues(input).Inc()
	c.logger.Debug("message received",
		zap.String("input", input),
		zap.Int64("total", n),
		zap.ByteString("payload", msg.Payload()))

	c.mu.RLock()
	h, ok := c.routes[input]
	c.mu.RUnlock()
	if !ok {
		c.logger.Debug("no route for input, discarded", zap.String("input", input))
		return
	}
	h(Message{Input: input, Payload: msg.Payload(), Properties: properties})
}

func (c *Client) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Confirmed: c.confirmed.Load(),
		Failed:    c.failed.Load(),
	}
}

// Close disconnects, giving in-flight work a quarter second.
func (c *Client) Close() {
	c.conn.Disconnect(250)
}
