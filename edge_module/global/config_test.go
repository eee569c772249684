package global

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestLoad(t *testing.T) {
	Config = Configuration{}
	require.NoError(t, Load("../config.test.json"))

	assert.Equal(t, "debug", Config.LogLevel)
	assert.Equal(t, "edge1/SampleModule", Config.Hub.ClientID)
	assert.Equal(t, 2*time.Second, Config.Hub.MessageTimeout.Std())
	assert.Equal(t, DefaultConnectTimeout, Config.Hub.ConnectTimeout.Std())
	assert.Equal(t, 3*time.Second, Config.Pulse.Duration.Std())
	require.Len(t, Config.Loops, 2)

	level := Config.Loops[0]
	assert.Equal(t, 0.0, level.SourceMin)
	assert.Equal(t, 65535.0, level.SourceMax)
	assert.Equal(t, 100.0, level.TargetMax)
	require.NotNil(t, level.Threshold)
	assert.Equal(t, 70.0, *level.Threshold)
	assert.Equal(t, time.Second, level.Interval.Std())

	temperature := Config.Loops[1]
	assert.Nil(t, temperature.Threshold)
	assert.Equal(t, -40.0, temperature.TargetMin)
	assert.Equal(t, 120.0, temperature.TargetMax)
	assert.Equal(t, 5*time.Second, temperature.Interval.Std())
}

func TestLoad_Example(t *testing.T) {
	Config = Configuration{}
	require.NoError(t, Load("../config.json"))
	require.Len(t, Config.Loops, 2)

	level := Config.Loops[0]
	assert.Equal(t, "level", level.Name)
	assert.Equal(t, uint16(513), level.Register)
	assert.True(t, level.EmitOnClear, "level alerts on the falling edge too")
	require.NotNil(t, level.Threshold)
	assert.Equal(t, 70.0, *level.Threshold)

	temperature := Config.Loops[1]
	assert.Nil(t, temperature.Threshold)
	assert.True(t, temperature.ReportEachCycle)
	assert.Equal(t, "control", Config.Pulse.Input)
}

func TestLoad_Defaults(t *testing.T) {
	Config = Configuration{}
	name := writeConfig(t, `{
		"devices": {"d": {"transport": "sim"}},
		"loops": [{"name": "level", "device": "d", "interval": 0}]
	}`)
	require.NoError(t, Load(name))
	l := Config.Loops[0]
	require.NotNil(t, l.Threshold)
	assert.Equal(t, DefaultThreshold, *l.Threshold)
	assert.Equal(t, time.Duration(0), l.Interval.Std())
	assert.Equal(t, DefaultMessageTimeout, Config.Hub.MessageTimeout.Std())
	assert.Equal(t, DefaultHoldDays, Config.Db.HoldDays)
}

func TestLoad_FlagLevelWins(t *testing.T) {
	Config = Configuration{LogLevel: "warn"}
	require.NoError(t, Load("../config.test.json"))
	assert.Equal(t, "warn", Config.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: `{`},
		{name: "unnamed loop", content: `{"devices": {"d": {}}, "loops": [{"device": "d"}]}`},
		{name: "duplicate loop", content: `{"devices": {"d": {}}, "loops": [{"name": "a", "device": "d"}, {"name": "a", "device": "d"}]}`},
		{name: "unknown device", content: `{"loops": [{"name": "a", "device": "nope"}]}`},
		{name: "pulse device", content: `{"pulse": {"input": "control", "device": "nope"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Config = Configuration{}
			assert.Error(t, Load(writeConfig(t, tt.content)))
		})
	}
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.json")))
}

func TestLoadHubFromEnv(t *testing.T) {
	t.Setenv("IOTEDGE_DEVICEID", "gateway-7")
	t.Setenv("IOTEDGE_MODULEID", "poller")
	t.Setenv("IOTEDGE_GATEWAYHOSTNAME", "edgehub")
	t.Setenv("EDGEHUB_USERNAME", "user")
	t.Setenv("EDGEHUB_PASSWORD", "secret")
	t.Setenv("EdgeModuleCACertificateFile", "/var/run/iotedge/ca.pem")

	var c HubConfig
	LoadHubFromEnv(&c)
	assert.Equal(t, HubConfig{
		Broker:   "ssl://edgehub:8883",
		DeviceID: "gateway-7",
		ModuleID: "poller",
		Username: "user",
		Password: "secret",
		CACert:   "/var/run/iotedge/ca.pem",
	}, c)

	c = HubConfig{Broker: "tcp://local:1883"}
	LoadHubFromEnv(&c)
	assert.Equal(t, "tcp://local:1883", c.Broker)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger("bogus", format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(0))
		assert.False(t, logger.Core().Enabled(-1))
	}
}
