package model

import (
	"math"
	"time"
)

// VehicleSpec holds the battery configuration reported by the vehicle.
type VehicleSpec struct {
	CurrentCapacityKwh float64
	MaxCapacityKwh     float64
	MaxPowerKw         float64
}

// Configured reports whether the vehicle sent a usable battery configuration.
func (v VehicleSpec) Configured() bool {
	return v.MaxCapacityKwh > 0
}

// SOC returns the state of charge as a percentage of the maximum capacity.
func (v VehicleSpec) SOC() float64 {
	if v.MaxCapacityKwh <= 0 {
		return 0
	}
	return v.CurrentCapacityKwh / v.MaxCapacityKwh * 100
}

// ChargerSpec describes the charging point attached to this dock, as reported
// by the backend at handshake time.
type ChargerSpec struct {
	PowerKw     float64
	PricePerKwh float64
}

// SessionSpecs carries the richer vehicle and charger description delivered
// over the realtime channel before a session starts.
type SessionSpecs struct {
	SessionID          int64    `json:"sessionId"`
	BatteryCapacityKwh float64  `json:"batteryCapacityKwh"`
	MaxPowerKw         float64  `json:"maxPowerKw"`
	ChargerPowerKw     float64  `json:"chargerPowerKw"`
	InitialSoc         *float64 `json:"initialSoc,omitempty"`
	TargetSoc          float64  `json:"targetSoc"`
}

// Session is the unit of work for one vehicle visit. The coordinator is the
// sole writer; everyone else receives copies or snapshots.
type Session struct {
	SessionID int64
	ChannelID string
	DockToken string
	JoinCode  string

	Vehicle VehicleSpec
	Charger ChargerSpec
	Specs   *SessionSpecs

	TargetSOC         float64
	SessionChargedKwh float64
	SessionStartTime  time.Time
}

// SOC returns the session vehicle's current state of charge.
func (s *Session) SOC() float64 {
	return s.Vehicle.SOC()
}

// DockSnapshot is a read-only view of the coordinator state handed to the
// telemetry publisher and the metrics sinks.
type DockSnapshot struct {
	Phase              DockPhase
	Charging           bool
	SessionID          int64
	CurrentCapacityKwh float64
	MaxCapacityKwh     float64
	SOC                float64
	TargetSOC          float64
	SessionChargedKwh  float64
	PowerCapKw         float64
}

// Round2 rounds to two decimal places. Applied at the reporting boundary only,
// accumulation keeps full precision.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
