package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"edgepoll/edge_module/db"
	"edgepoll/edge_module/device"
	"edgepoll/edge_module/global"
	"edgepoll/edge_module/hub"
	"edgepoll/edge_module/monitor"
	"edgepoll/pkg/project"
	"edgepoll/pkg/pubsub"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Hub is what the controller needs from the edge hub client.
type Hub interface {
	monitor.MessageSink
	Forward(ctx context.Context, m hub.Message, output string) error
	Handle(input string, h hub.Handler)
	Stats() hub.Stats
}

// Run connects to the edge hub and the configured devices, then polls until ctx is done.
func Run(ctx context.Context) error {
	factories, err := device.Build(global.Config.Devices)
	if err != nil {
		return err
	}
	client, err := hub.Dial(global.Config.Hub)
	if err != nil {
		return err
	}
	project.RegisterReleaseFunc(client.Close)

	if global.Config.Listen != "" {
		go serveHTTP(ctx, global.Config.Listen, client)
	}
	return run(ctx, global.Config, factories, client)
}

func run(ctx context.Context, cfg global.Configuration, factories map[string]device.Factory, h Hub) error {
	dataPubSub := pubsub.NewPubSub()

	if cfg.Db.Dsn != "" {
		if err := db.Init(cfg.Db.Dsn); err != nil {
			return fmt.Errorf("open alert journal: %w", err)
		}
		defer db.Close()
	}
	stopJobs, err := scheduleHousekeeping(cfg.Db.HoldDays, h)
	if err != nil {
		return err
	}
	defer stopJobs()

	loops, err := buildLoops(cfg.Loops, factories, h, observe(dataPubSub))
	if err != nil {
		return err
	}

	// pulses and tap clients are done before the journal closes
	ctx, cancel := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer workers.Wait()
	defer cancel()

	if err = registerInputs(ctx, cfg, factories, h, &workers); err != nil {
		return err
	}

	if cfg.TapListen != "" {
		ln, err := listenTap(cfg.TapListen)
		if err != nil {
			return err
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			serveTap(ctx, ln, dataPubSub)
		}()
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, l := range loops {
		l := l
		g.Go(func() error { return l.Run(gCtx) })
	}
	zap.L().Info("module running", zap.Int("loops", len(loops)))
	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func buildLoops(confs []global.LoopConfig, factories map[string]device.Factory, sink monitor.MessageSink, observer monitor.Observer) ([]*monitor.Loop, error) {
	loops := make([]*monitor.Loop, 0, len(confs))
	for _, lc := range confs {
		cfg, err := loopConfig(lc)
		if err != nil {
			return nil, err
		}
		l, err := monitor.New(cfg, factories[lc.Device], sink, monitor.WithObserver(observer))
		if err != nil {
			return nil, err
		}
		loops = append(loops, l)
	}
	return loops, nil
}

func loopConfig(lc global.LoopConfig) (monitor.Config, error) {
	format, err := monitor.ParseFormat(lc.Format)
	if err != nil {
		return monitor.Config{}, fmt.Errorf("loop %s: %w", lc.Name, err)
	}
	cfg := monitor.Config{
		Name:    lc.Name,
		Address: lc.Register,
		Scale: monitor.Scale{
			Source: monitor.Range{Min: lc.SourceMin, Max: lc.SourceMax},
			Target: monitor.Range{Min: lc.TargetMin, Max: lc.TargetMax},
		},
		Threshold:       lc.Threshold,
		Coil:            lc.Coil,
		Output:          lc.Output,
		Tag:             lc.Tag,
		ReportTag:       lc.ReportTag,
		PropertyKey:     lc.PropertyKey,
		Format:          format,
		Metric:          lc.Metric,
		EmitOnClear:     lc.EmitOnClear,
		ReportEachCycle: lc.ReportEachCycle,
	}
	if lc.Interval != nil {
		cfg.Interval = lc.Interval.Std()
	}
	return cfg, nil
}

// observe publishes every sample to the tap and journals transitions.
func observe(dataPubSub *pubsub.PubSub) monitor.Observer {
	return func(s monitor.Sample) {
		if s.Transition && db.Enabled() {
			if _, err := db.SaveAlertLog(s.Loop, s.Alert, s.Scaled, s.At.UnixMilli()); err != nil {
				zap.L().Error("save alert log", zap.String("loop", s.Loop), zap.Error(err))
			}
		}
		if err := dataPubSub.Publish(s, s.Loop); err != nil {
			zap.L().Error("publish sample", zap.String("loop", s.Loop), zap.Error(err))
		}
	}
}

func registerInputs(ctx context.Context, cfg global.Configuration, factories map[string]device.Factory, h Hub, pulses *sync.WaitGroup) error {
	if fw := cfg.Forward; fw.Input != "" {
		output := fw.Output
		if output == "" {
			output = "output1"
		}
		h.Handle(fw.Input, func(m hub.Message) {
			if err := h.Forward(ctx, m, output); err != nil {
				zap.L().Error("forward message", zap.String("input", m.Input), zap.String("output", output), zap.Error(err))
			}
		})
	}

	if p := cfg.Pulse; p.Input != "" {
		open, ok := factories[p.Device]
		if !ok {
			return fmt.Errorf("pulse: unknown device %q", p.Device)
		}
		var inPulse atomic.Bool
		h.Handle(p.Input, func(m hub.Message) {
			// a second pulse would clear the coil of the running one early
			if !inPulse.CompareAndSwap(false, true) {
				zap.L().Warn("pulse already running, ignored", zap.String("input", m.Input))
				return
			}
			pulses.Add(1)
			go func() {
				defer pulses.Done()
				defer inPulse.Store(false)
				logger := zap.L().With(zap.String("device", p.Device), zap.Uint16("coil", p.Coil))
				logger.Info("pulse coil", zap.Duration("duration", p.Duration.Std()))
				if err := monitor.PulseCoil(ctx, open, p.Coil, p.Duration.Std()); err != nil {
					logger.Error("pulse coil", zap.Error(err))
				}
			}()
		})
	}
	return nil
}
