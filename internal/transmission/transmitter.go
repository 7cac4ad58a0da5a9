package transmission

import "github.com/jkaberg/devdash/internal/domain"

// Transmitter defines the interface for forwarding polled snapshots
type Transmitter interface {
	Transmit(snap *domain.Snapshot) error
	IsConnected() bool
}

// Publisher is the subset of the MQTT client the transmitter needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	IsConnected() bool
}
