package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for devdash
type Config struct {
	// Device Configuration
	Endpoint string        // JSON status endpoint, e.g. http://10.0.0.5/api/status
	Rate     time.Duration // Polling rate; also used as the request timeout
	DeviceID string

	// Polling behaviour
	KeepPolling bool     // Log fetch errors instead of stopping
	IgnoreKeys  []string // Top-level keys ignored for change detection

	// MQTT Configuration
	MQTTUrl         string        // MQTT URL (ws, wss, mqtt or mqtts)
	MQTTInterval    time.Duration // Minimum gap between state publishes
	DiscoveryPrefix string        // Home Assistant discovery prefix

	// Dashboard
	Indicators []Indicator

	// Application Configuration
	Verbose bool
}

// File is the YAML config file. Pointer and zero-value fields mean the key
// was absent, so ApplyFile only overrides what the file actually sets.
type File struct {
	Endpoint        string      `yaml:"endpoint"`
	Rate            Duration    `yaml:"rate"`
	DeviceID        string      `yaml:"device_id"`
	KeepPolling     *bool       `yaml:"keep_polling"`
	IgnoreKeys      []string    `yaml:"ignore_keys"`
	MQTTUrl         string      `yaml:"mqtt_url"`
	MQTTInterval    Duration    `yaml:"mqtt_interval"`
	DiscoveryPrefix string      `yaml:"discovery_prefix"`
	Indicators      []Indicator `yaml:"indicators"`
	Verbose         *bool       `yaml:"verbose"`
}

// Duration decodes either a Go duration string ("500ms") or a bare integer
// number of milliseconds, the same forms ParseRate accepts.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	v, err := ParseRate(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Indicator binds a dashboard icon to a boolean-like value in the polled
// document. Path uses gjson syntax, e.g. "net.eth0.up".
type Indicator struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
	Name string `yaml:"name,omitempty"`
}

// GetDefaultConfig returns a configuration with sensible defaults
func GetDefaultConfig() *Config {
	return &Config{
		Rate:            DefaultUpdateRate,
		DeviceID:        "device",
		MQTTInterval:    MQTTPublishInterval,
		DiscoveryPrefix: "homeassistant",
	}
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ApplyFile copies the settings present in file onto c. Fields whose flag
// name is reported by explicit are left alone so command line flags keep
// precedence over the file.
func (c *Config) ApplyFile(file *File, explicit func(flag string) bool) {
	if file == nil {
		return
	}
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	if file.Endpoint != "" && !explicit("endpoint") {
		c.Endpoint = file.Endpoint
	}
	if file.Rate > 0 && !explicit("rate") {
		c.Rate = time.Duration(file.Rate)
	}
	if file.DeviceID != "" && !explicit("device-id") {
		c.DeviceID = file.DeviceID
	}
	if file.KeepPolling != nil && !explicit("keep-polling") {
		c.KeepPolling = *file.KeepPolling
	}
	if file.MQTTUrl != "" && !explicit("mqtt-url") {
		c.MQTTUrl = file.MQTTUrl
	}
	if file.MQTTInterval > 0 && !explicit("mqtt-interval") {
		c.MQTTInterval = time.Duration(file.MQTTInterval)
	}
	if file.DiscoveryPrefix != "" && !explicit("discovery-prefix") {
		c.DiscoveryPrefix = file.DiscoveryPrefix
	}
	if file.Verbose != nil && !explicit("verbose") {
		c.Verbose = *file.Verbose
	}
	if len(file.IgnoreKeys) > 0 {
		c.IgnoreKeys = append([]string(nil), file.IgnoreKeys...)
	}
	if len(file.Indicators) > 0 {
		c.Indicators = append([]Indicator(nil), file.Indicators...)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must use http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint host is required")
	}

	if c.DeviceID == "" {
		return fmt.Errorf("device ID is required")
	}

	// MQTT validation - support both WebSocket and standard MQTT protocols
	if c.MQTTUrl != "" {
		if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
			!strings.HasPrefix(c.MQTTUrl, "wss://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
			return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
		}
	}

	seen := make(map[string]struct{}, len(c.Indicators))
	for i, ind := range c.Indicators {
		if ind.ID == "" || ind.Path == "" {
			return fmt.Errorf("indicator %d: id and path are required", i)
		}
		if _, dup := seen[ind.ID]; dup {
			return fmt.Errorf("indicator %q defined more than once", ind.ID)
		}
		seen[ind.ID] = struct{}{}
	}

	// Set defaults for invalid values
	if c.Rate <= 0 {
		c.Rate = DefaultUpdateRate
	}
	if c.MQTTInterval <= 0 {
		c.MQTTInterval = MQTTPublishInterval
	}

	return nil
}

// HasMQTT returns true if MQTT is configured
func (c *Config) HasMQTT() bool {
	return c.MQTTUrl != ""
}

// ParseRate accepts either a Go duration ("500ms", "2s") or a bare integer
// number of milliseconds.
func ParseRate(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
