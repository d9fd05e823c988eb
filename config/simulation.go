package config

import (
	"time"

	"github.com/go-electrify/dockd/core/session"
)

// SimulationConfig tunes the periodic loops of the charging simulation.
type SimulationConfig struct {
	TickSeconds      int `json:"tick_seconds"`
	TelemetrySeconds int `json:"telemetry_seconds"`
	PingSeconds      int `json:"ping_seconds"`
	HeartbeatSeconds int `json:"heartbeat_seconds"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.TickSeconds <= 0 {
		c.TickSeconds = 1
	}
	if c.TelemetrySeconds <= 0 {
		c.TelemetrySeconds = 1
	}
	if c.PingSeconds <= 0 {
		c.PingSeconds = 10
	}
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 10
	}
}

// SessionConfig converts the intervals to the coordinator's configuration.
func (c SimulationConfig) SessionConfig() session.Config {
	return session.Config{
		TickInterval:      time.Duration(c.TickSeconds) * time.Second,
		TelemetryInterval: time.Duration(c.TelemetrySeconds) * time.Second,
		PingInterval:      time.Duration(c.PingSeconds) * time.Second,
		HeartbeatInterval: time.Duration(c.HeartbeatSeconds) * time.Second,
	}
}
