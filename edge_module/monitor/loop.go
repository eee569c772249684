package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edgepoll/edge_module/device"
	"edgepoll/edge_module/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoReader = errors.New("no register reader")
	ErrNoSink   = errors.New("no message sink")
)

// ReadErrorReading stands in for a register that could not be read.
const ReadErrorReading = -1

type Config struct {
	Name    string
	Address uint16
	Scale   Scale
	// Threshold nil disables alerting. The loop then only reports when ReportEachCycle is set.
	Threshold *float64
	Coil      uint16
	Interval  time.Duration

	Output      string
	Tag         string
	ReportTag   string
	PropertyKey string
	Format      Format
	Metric      string

	EmitOnClear     bool
	ReportEachCycle bool
}

func (c *Config) setDefaults() {
	if c.Output == "" {
		c.Output = "output1"
	}
	if c.Tag == "" {
		c.Tag = TagAlert
	}
	if c.ReportTag == "" {
		c.ReportTag = TagInfo
	}
	if c.PropertyKey == "" {
		c.PropertyKey = PropertyMessageType
	}
	if c.Metric == "" {
		c.Metric = c.Name
	}
}

// Sample is what one cycle observed.
type Sample struct {
	Loop       string    `json:"loop"`
	Raw        float64   `json:"raw"`
	Scaled     float64   `json:"scaled"`
	Alert      bool      `json:"alert"`
	ReadErr    bool      `json:"read_err,omitempty"`
	Transition bool      `json:"transition,omitempty"`
	At         time.Time `json:"at"`
}

type Observer func(Sample)

// Loop polls one register and raises an edge-triggered alert on it.
type Loop struct {
	cfg      Config
	open     device.Factory
	sink     MessageSink
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	alert bool
}

type Option func(*Loop)

func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

func New(cfg Config, open device.Factory, sink MessageSink, opts ...Option) (*Loop, error) {
	if open == nil {
		return nil, fmt.Errorf("loop %s: %w", cfg.Name, ErrNoReader)
	}
	if sink == nil {
		return nil, fmt.Errorf("loop %s: %w", cfg.Name, ErrNoSink)
	}
	if err := cfg.Scale.Validate(); err != nil {
		return nil, fmt.Errorf("loop %s: %w", cfg.Name, err)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("loop %s: negative interval %s", cfg.Name, cfg.Interval)
	}
	cfg.setDefaults()
	l := &Loop{
		cfg:    cfg,
		open:   open,
		sink:   sink,
		logger: zap.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("loop", cfg.Name))
	return l, nil
}

func (l *Loop) Name() string { return l.cfg.Name }

// Alert reports the alert flag. Only meaningful while Run is not active.
func (l *Loop) Alert() bool { return l.alert }

// Run opens a reader and cycles until ctx is done, which is the only way it returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	r, err := l.open()
	if err != nil {
		return fmt.Errorf("loop %s: %w", l.cfg.Name, err)
	}
	if err = r.Open(); err != nil {
		// the first request redials
		l.logger.Warn("open device", zap.Error(err))
	}
	defer func() {
		if err := r.Close(); err != nil {
			l.logger.Warn("close device", zap.Error(err))
		}
	}()

	l.logger.Info("loop started",
		zap.Uint16("register", l.cfg.Address),
		zap.Duration("interval", l.cfg.Interval),
		zap.Bool("alerting", l.cfg.Threshold != nil))
	for {
		if err = ctx.Err(); err != nil {
			return err
		}
		l.cycle(ctx, r)
		if err = sleep(ctx, l.cfg.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Loop) read(r device.RegisterReader) (float64, bool) {
	words, err := r.ReadRegister(l.cfg.Address, 1)
	if err != nil {
		l.logger.Error("read register", zap.Uint16("register", l.cfg.Address), zap.Error(err))
		return ReadErrorReading, false
	}
	if len(words) == 0 {
		l.logger.Error("read register: empty result", zap.Uint16("register", l.cfg.Address))
		return ReadErrorReading, false
	}
	return float64(words[0]), true
}

// cycle runs read, scale, decide and emit once.
func (l *Loop) cycle(ctx context.Context, r device.RegisterReader) Sample {
	name := l.cfg.Name
	metrics.LoopCyclesTotal.WithLabelValues(name).Inc()

	raw, ok := l.read(r)
	if !ok {
		metrics.LoopReadErrorsTotal.WithLabelValues(name).Inc()
	}
	scaled := l.cfg.Scale.Apply(raw)
	now := l.now()
	metrics.LoopScaledValue.WithLabelValues(name).Set(scaled)

	s := Sample{Loop: name, Raw: raw, Scaled: scaled, ReadErr: !ok, At: now}
	var emitted bool
	if th := l.cfg.Threshold; th != nil {
		switch {
		case scaled >= *th && !l.alert:
			l.alert = true
			s.Transition = true
			l.logger.Info("threshold crossed", zap.Float64("value", scaled), zap.Float64("threshold", *th))
			metrics.LoopTransitionsTotal.WithLabelValues(name, "alert").Inc()
			l.writeCoil(r, true)
			l.emit(ctx, AlertMessage{Tag: l.cfg.Tag, Time: now, Value: scaled})
			emitted = true
		case scaled < *th && l.alert:
			l.alert = false
			s.Transition = true
			l.logger.Info("alert cleared", zap.Float64("value", scaled), zap.Float64("threshold", *th))
			metrics.LoopTransitionsTotal.WithLabelValues(name, "clear").Inc()
			l.writeCoil(r, false)
			if l.cfg.EmitOnClear {
				l.emit(ctx, AlertMessage{Tag: l.cfg.Tag, Time: now, Value: scaled})
				emitted = true
			}
		}
	}
	s.Alert = l.alert
	metrics.LoopAlertActive.WithLabelValues(name).Set(metrics.Bool(l.alert))

	if l.cfg.ReportEachCycle && !emitted {
		l.emit(ctx, AlertMessage{Tag: l.cfg.ReportTag, Time: now, Value: scaled})
	} else {
		l.logger.Debug("cycle", zap.Float64("raw", raw), zap.Float64("value", scaled), zap.Bool("alert", l.alert))
	}

	if l.observer != nil {
		l.observer(s)
	}
	return s
}

// writeCoil never fails the cycle. The alert flag has already moved.
func (l *Loop) writeCoil(r device.RegisterReader, on bool) {
	if err := r.WriteCoil(l.cfg.Coil, on); err != nil {
		metrics.LoopCoilErrorsTotal.WithLabelValues(l.cfg.Name).Inc()
		l.logger.Error("write coil", zap.Uint16("coil", l.cfg.Coil), zap.Bool("on", on), zap.Error(err))
	}
}

func (l *Loop) emit(ctx context.Context, m AlertMessage) {
	payload, err := m.Payload(l.cfg.Format, l.cfg.Metric)
	if err != nil {
		l.logger.Error("encode message", zap.Error(err))
		return
	}
	properties := map[string]string{
		l.cfg.PropertyKey: m.Tag,
		PropertyMessageID: uuid.NewString(),
	}
	if l.cfg.Format == FormatJSON {
		properties[PropertyContentType] = "application/json"
		properties[PropertyContentEncoding] = "utf-8"
	}
	if err = l.sink.Send(ctx, payload, l.cfg.Output, properties); err != nil {
		l.logger.Error("send message", zap.String("output", l.cfg.Output), zap.String("tag", m.Tag), zap.Error(err))
		return
	}
	l.logger.Debug("message sent", zap.String("output", l.cfg.Output), zap.ByteString("payload", payload))
}
