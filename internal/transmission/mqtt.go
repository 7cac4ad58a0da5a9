package transmission

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jkaberg/devdash/internal/domain"
	"github.com/jkaberg/devdash/internal/indicator"
	"github.com/jkaberg/devdash/internal/mqtt"
	"github.com/sirupsen/logrus"
)

// MQTTTransmitter publishes indicator state and the raw polled document
type MQTTTransmitter struct {
	client          Publisher
	deviceID        string
	discoveryPrefix string
	bindings        []indicator.Binding
	logger          *logrus.Logger

	mu        sync.Mutex
	published map[string]bool // discovery configs already sent, by unique id
}

// HADiscoveryConfig represents Home Assistant MQTT discovery configuration
type HADiscoveryConfig struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	Device            HADevice `json:"device"`
	AvailabilityTopic string   `json:"availability_topic"`
	Icon              string   `json:"icon,omitempty"`
}

// HADevice represents the device information for Home Assistant
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// StatePayload is the JSON document published on the state topic.
type StatePayload struct {
	Timestamp  string            `json:"timestamp"`
	Endpoint   string            `json:"endpoint"`
	Indicators map[string]string `json:"indicators"`
	Data       json.RawMessage   `json:"data,omitempty"`
}

// NewMQTTTransmitter creates a new MQTT transmitter
func NewMQTTTransmitter(client Publisher, deviceID, discoveryPrefix string, bindings []indicator.Binding, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:          client,
		deviceID:        deviceID,
		discoveryPrefix: discoveryPrefix,
		bindings:        append([]indicator.Binding(nil), bindings...),
		logger:          logger,
		published:       make(map[string]bool),
	}
}

func (t *MQTTTransmitter) baseTopic() string { return mqtt.BaseTopic(t.deviceID) }

// StateTopic returns the topic state payloads are published on.
func (t *MQTTTransmitter) StateTopic() string { return t.baseTopic() + "/state" }

// DiscoveryTopic returns the Home Assistant config topic for an indicator.
func (t *MQTTTransmitter) DiscoveryTopic(id string) string {
	return mqtt.BuildCleanTopic(t.discoveryPrefix, "binary_sensor", "devdash_"+t.deviceID, id, "config")
}

// publishDiscoveryConfigs publishes one binary_sensor config per indicator,
// once per process.
func (t *MQTTTransmitter) publishDiscoveryConfigs() {
	device := HADevice{
		Identifiers:  []string{"devdash_" + t.deviceID},
		Name:         t.deviceID,
		Model:        "Embedded device",
		Manufacturer: "devdash",
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range t.bindings {
		uniqueID := fmt.Sprintf("%s_%s", t.deviceID, b.ID)
		if t.published[uniqueID] {
			continue
		}
		name := b.Name
		if name == "" {
			name = b.ID
		}
		cfg := HADiscoveryConfig{
			Name:              name,
			UniqueID:          uniqueID,
			StateTopic:        t.StateTopic(),
			ValueTemplate:     fmt.Sprintf("{{ value_json.indicators['%s'] }}", b.ID),
			PayloadOn:         indicator.StateGreen,
			PayloadOff:        indicator.StateGray,
			DeviceClass:       "connectivity",
			Device:            device,
			AvailabilityTopic: t.baseTopic() + "/availability",
			Icon:              "mdi:led-on",
		}

		topic := t.DiscoveryTopic(b.ID)
		if err := t.publishJSON(topic, cfg, true); err != nil {
			t.logger.WithError(err).WithField("indicator", b.ID).Error("Failed to publish discovery config")
			continue
		}
		t.logger.WithFields(logrus.Fields{
			"indicator": b.ID,
			"topic":     topic,
		}).Info("Published indicator discovery config")
		t.published[uniqueID] = true
	}
}

func (t *MQTTTransmitter) publishJSON(topic string, v interface{}, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	if err := t.client.Publish(topic, payload, retained); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// buildStatePayload builds the JSON payload for the state topic
func buildStatePayload(snap *domain.Snapshot) StatePayload {
	p := StatePayload{
		Timestamp:  snap.Timestamp.UTC().Format(time.RFC3339),
		Endpoint:   snap.Endpoint,
		Indicators: make(map[string]string, len(snap.States)),
	}
	for id, state := range snap.States {
		if state != "" {
			p.Indicators[id] = state
		}
	}
	if snap.Data.Raw != "" {
		p.Data = json.RawMessage(snap.Data.Raw)
	}
	return p
}

// Transmit publishes discovery (first call only), the state payload and
// online availability.
func (t *MQTTTransmitter) Transmit(snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	t.publishDiscoveryConfigs()

	if err := t.publishJSON(t.StateTopic(), buildStatePayload(snap), true); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}

	if err := t.client.Publish(t.baseTopic()+"/availability", []byte("online"), true); err != nil {
		return fmt.Errorf("failed to publish availability: %w", err)
	}

	t.logger.WithField("indicators", len(snap.States)).Debug("State transmitted")
	return nil
}

// IsConnected checks if the MQTT client is connected
func (t *MQTTTransmitter) IsConnected() bool {
	return t.client.IsConnected()
}
