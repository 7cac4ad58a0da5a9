package config

import "time"

// Central place for timing constants and other defaults shared by the
// updater, the scheduler and the MQTT transmitter.

const (
	// Polling / transmission intervals
	DefaultUpdateRate   = 1 * time.Second  // Poll the device endpoint
	MQTTPublishInterval = 10 * time.Second // Publish indicator state to MQTT
	SchedulerTick       = 1 * time.Second  // Scheduler wake-up cadence

	// Operation time-outs (to avoid blocking goroutines)
	MQTTTimeout = 5 * time.Second // MQTT publish / subscribe
	DialTimeout = 3 * time.Second // TCP connect to the device
)
