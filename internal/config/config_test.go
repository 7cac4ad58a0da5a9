package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Endpoint = "http://192.168.1.20/api/status"
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(c *Config){
		"missing endpoint":  func(c *Config) { c.Endpoint = "" },
		"bad scheme":        func(c *Config) { c.Endpoint = "ftp://dev/status" },
		"missing host":      func(c *Config) { c.Endpoint = "http:///status" },
		"missing device id": func(c *Config) { c.DeviceID = "" },
		"bad mqtt scheme":   func(c *Config) { c.MQTTUrl = "tcp://broker:1883" },
		"indicator no path": func(c *Config) { c.Indicators = []Indicator{{ID: "eth"}} },
		"duplicate indicator": func(c *Config) {
			c.Indicators = []Indicator{{ID: "eth", Path: "a"}, {ID: "eth", Path: "b"}}
		},
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Rate = 0
	cfg.MQTTInterval = -1
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultUpdateRate, cfg.Rate)
	assert.Equal(t, MQTTPublishInterval, cfg.MQTTInterval)
}

func TestLoadFileAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint: http://board.local/status
rate: 500ms
mqtt_url: mqtt://broker:1883
ignore_keys: [uptime]
indicators:
  - id: eth
    path: net.eth0.up
    name: Ethernet
  - id: sd
    path: disk.mounted
`), 0o644))

	file, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(500*time.Millisecond), file.Rate)
	require.Len(t, file.Indicators, 2)

	cfg := GetDefaultConfig()
	cfg.Endpoint = "http://from-flag/status"
	cfg.ApplyFile(file, func(name string) bool { return name == "endpoint" })

	assert.Equal(t, "http://from-flag/status", cfg.Endpoint)
	assert.Equal(t, 500*time.Millisecond, cfg.Rate)
	assert.Equal(t, "mqtt://broker:1883", cfg.MQTTUrl)
	assert.True(t, cfg.HasMQTT())
	assert.Equal(t, []string{"uptime"}, cfg.IgnoreKeys)
	assert.Equal(t, "Ethernet", cfg.Indicators[0].Name)
	assert.Equal(t, "device", cfg.DeviceID)
}

func TestLoadFileMillisecondRateAndFalseBooleans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rate: 500
mqtt_interval: 2s
keep_polling: false
verbose: false
`), 0o644))

	file, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, file.KeepPolling)

	cfg := GetDefaultConfig()
	cfg.KeepPolling = true
	cfg.Verbose = true
	cfg.ApplyFile(file, nil)

	assert.Equal(t, 500*time.Millisecond, cfg.Rate)
	assert.Equal(t, 2*time.Second, cfg.MQTTInterval)
	assert.False(t, cfg.KeepPolling)
	assert.False(t, cfg.Verbose)
}

func TestApplyFileLeavesAbsentBooleans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: http://board.local/status\n"), 0o644))

	file, err := LoadFile(path)
	require.NoError(t, err)

	cfg := GetDefaultConfig()
	cfg.KeepPolling = true
	cfg.ApplyFile(file, nil)
	assert.True(t, cfg.KeepPolling)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate: [\n"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("rate: soon\n"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	d, err := ParseRate("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = ParseRate("2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = ParseRate("soon")
	assert.Error(t, err)
}
