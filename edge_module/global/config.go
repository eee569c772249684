package global

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"edgepoll/pkg/custype"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Configuration is the JSON config file layout.
type Configuration struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	Listen    string `json:"listen"`
	TapListen string `json:"tap_listen"`
	Db        struct {
		Dsn      string `json:"dsn"`
		HoldDays int    `json:"hold_days"`
	} `json:"db"`
	Hub HubConfig `json:"hub"`
	// Devices maps a device name to its connection config; the "transport" field selects the driver.
	Devices map[string]json.RawMessage `json:"devices"`
	Loops   []LoopConfig               `json:"loops"`
	Forward struct {
		Input  string `json:"input"`
		Output string `json:"output"`
	} `json:"forward"`
	Pulse PulseConfig `json:"pulse"`
}

var Config Configuration

type HubConfig struct {
	Broker         string           `json:"broker"`
	ClientID       string           `json:"client_id"`
	DeviceID       string           `json:"device_id"`
	ModuleID       string           `json:"module_id"`
	Username       string           `json:"username"`
	Password       string           `json:"password"`
	CACert         string           `json:"ca_cert"`
	QoS            byte             `json:"qos"`
	MessageTimeout custype.Duration `json:"message_timeout"`
	ConnectTimeout custype.Duration `json:"connect_timeout"`
}

type LoopConfig struct {
	Name         string   `json:"name"`
	Device       string   `json:"device"`
	Register     uint16   `json:"register"`
	SourceMin    float64  `json:"source_min"`
	SourceMax    float64  `json:"source_max"`
	TargetMin    float64  `json:"target_min"`
	TargetMax    float64  `json:"target_max"`
	Threshold    *float64 `json:"threshold"`
	DisableAlert bool     `json:"disable_alert"`
	Coil         uint16   `json:"coil"`
	// Interval nil means the default; an explicit 0 only yields between cycles.
	Interval        *custype.Duration `json:"interval"`
	Output          string            `json:"output"`
	Tag             string            `json:"tag"`
	PropertyKey     string            `json:"property_key"`
	Format          string            `json:"format"`
	Metric          string            `json:"metric"`
	EmitOnClear     bool              `json:"emit_on_clear"`
	ReportEachCycle bool              `json:"report_each_cycle"`
	ReportTag       string            `json:"report_tag"`
}

type PulseConfig struct {
	Input    string           `json:"input"`
	Device   string           `json:"device"`
	Coil     uint16           `json:"coil"`
	Duration custype.Duration `json:"duration"`
}

const (
	DefaultThreshold      = 70.0
	DefaultInterval       = time.Second
	DefaultMessageTimeout = 10 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultPulseDuration  = 3 * time.Second
	DefaultHoldDays       = 30
)

var CronJob *cron.Cron

// Init loads the config file and sets up the process-wide logger and cron scheduler.
func Init(name string) {
	if err := Load(name); err != nil {
		log.Fatal(err)
	}
	logger, err := NewLogger(Config.LogLevel, Config.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	zap.ReplaceGlobals(logger)

	CronJob = cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	CronJob.Start()
}

// Load reads name into Config, applies environment overrides and fills defaults.
func Load(name string) error {
	b, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	var c Configuration
	if err = json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	// a level given on the command line wins
	if Config.LogLevel != "" {
		c.LogLevel = Config.LogLevel
	}
	LoadHubFromEnv(&c.Hub)
	applyDefaults(&c)
	if err = validate(&c); err != nil {
		return err
	}
	Config = c
	return nil
}

// LoadHubFromEnv fills the hub identity the edge runtime injects into module containers.
func LoadHubFromEnv(c *HubConfig) {
	if v := os.Getenv("IOTEDGE_DEVICEID"); v != "" {
		c.DeviceID = v
	}
	if v := os.Getenv("IOTEDGE_MODULEID"); v != "" {
		c.ModuleID = v
	}
	if v := os.Getenv("IOTEDGE_GATEWAYHOSTNAME"); v != "" && c.Broker == "" {
		c.Broker = "ssl://" + v + ":8883"
	}
	if v := os.Getenv("EDGEHUB_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("EDGEHUB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("EdgeModuleCACertificateFile"); v != "" {
		c.CACert = v
	}
}

func applyDefaults(c *Configuration) {
	if c.Hub.MessageTimeout <= 0 {
		c.Hub.MessageTimeout = custype.Duration(DefaultMessageTimeout)
	}
	if c.Hub.ConnectTimeout <= 0 {
		c.Hub.ConnectTimeout = custype.Duration(DefaultConnectTimeout)
	}
	if c.Hub.ClientID == "" && c.Hub.DeviceID != "" {
		c.Hub.ClientID = c.Hub.DeviceID + "/" + c.Hub.ModuleID
	}
	if c.Db.HoldDays <= 0 {
		c.Db.HoldDays = DefaultHoldDays
	}
	if c.Pulse.Duration <= 0 {
		c.Pulse.Duration = custype.Duration(DefaultPulseDuration)
	}
	for i := range c.Loops {
		l := &c.Loops[i]
		if l.SourceMin == 0 && l.SourceMax == 0 {
			l.SourceMax = 65535
		}
		if l.TargetMin == 0 && l.TargetMax == 0 {
			l.TargetMax = 100
		}
		if l.DisableAlert {
			l.Threshold = nil
		} else if l.Threshold == nil {
			th := DefaultThreshold
			l.Threshold = &th
		}
		if l.Interval == nil {
			d := custype.Duration(DefaultInterval)
			l.Interval = &d
		}
	}
}

func validate(c *Configuration) error {
	names := make(map[string]struct{}, len(c.Loops))
	for _, l := range c.Loops {
		if l.Name == "" {
			return fmt.Errorf("loop without name")
		}
		if _, dup := names[l.Name]; dup {
			return fmt.Errorf("duplicate loop name %q", l.Name)
		}
		names[l.Name] = struct{}{}
		if _, ok := c.Devices[l.Device]; !ok {
			return fmt.Errorf("loop %q: unknown device %q", l.Name, l.Device)
		}
	}
	if c.Pulse.Input != "" {
		if _, ok := c.Devices[c.Pulse.Device]; !ok {
			return fmt.Errorf("pulse: unknown device %q", c.Pulse.Device)
		}
	}
	return nil
}

// NewLogger builds a JSON production logger, or a console one when format is "console".
func NewLogger(level, format string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		zapLevel = zapcore.InfoLevel
	}
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}
