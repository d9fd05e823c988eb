package model

import "time"

// Vehicle connection event names. These form the wire contract with the
// on-board client, so the snake_case names are kept verbatim.
const (
	VehicleEventCarConfigure          = "car_configure"
	VehicleEventHandshakeSuccess      = "handshake_success"
	VehicleEventConnectionRejected    = "connection_rejected"
	VehicleEventValidationError       = "validation_error"
	VehicleEventConfigurationComplete = "configuration_complete"
	VehicleEventPowerUpdate           = "power_update"
	VehicleEventChargingComplete      = "charging_complete"
)

// CarConfig is the inbound vehicle configuration message.
type CarConfig struct {
	BatteryCapacity float64   `json:"batteryCapacity"`
	MaxCapacity     float64   `json:"maxCapacity"`
	Timestamp       time.Time `json:"timestamp"`
}

// HandshakeSuccess notifies the vehicle that a backend session exists.
type HandshakeSuccess struct {
	SessionID int64     `json:"sessionId"`
	ChannelID string    `json:"channelId"`
	JoinCode  string    `json:"joinCode"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionRejected is the terminal notification for a refused connection.
type ConnectionRejected struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationError reports a rejected inbound message without a state change.
type ValidationError struct {
	Event     string    `json:"event"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ConfigurationComplete acknowledges a valid vehicle configuration.
type ConfigurationComplete struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PowerUpdate is emitted to the vehicle after every delivered tick.
type PowerUpdate struct {
	Kwh             float64   `json:"kwh"`
	CurrentCapacity float64   `json:"currentCapacity"`
	MaxCapacity     float64   `json:"maxCapacity"`
	CurrentSOC      float64   `json:"currentSOC"`
	ChargingPowerKw float64   `json:"chargingPowerKw"`
	Timestamp       time.Time `json:"timestamp"`
}

// ChargingComplete is the terminal notification of a finished session.
type ChargingComplete struct {
	Message       string    `json:"message"`
	FinalCapacity float64   `json:"finalCapacity"`
	MaxCapacity   float64   `json:"maxCapacity"`
	FinalSOC      float64   `json:"finalSOC"`
	Timestamp     time.Time `json:"timestamp"`
}

// Realtime channel payloads.

// Heartbeat is published on the channel every heartbeat interval.
type Heartbeat struct {
	Timestamp time.Time `json:"timestamp"`
}

// CarInformation answers a load_car_information request.
type CarInformation struct {
	CurrentCapacity float64   `json:"currentCapacity"`
	MaxCapacity     float64   `json:"maxCapacity"`
	Timestamp       time.Time `json:"timestamp"`
}

// SocUpdate is the periodic telemetry published while charging.
type SocUpdate struct {
	Soc       float64   `json:"soc"`
	PowerKw   *float64  `json:"powerKw,omitempty"`
	EnergyKwh *float64  `json:"energyKwh,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChargingEvent is the channel-side completion record.
type ChargingEvent struct {
	Status            string    `json:"status"`
	FinalSOC          float64   `json:"finalSOC"`
	FinalCapacity     float64   `json:"finalCapacity"`
	TargetSOC         float64   `json:"targetSOC"`
	SessionChargedKwh float64   `json:"sessionChargedKwh"`
	Timestamp         time.Time `json:"timestamp"`
	SessionID         int64     `json:"sessionId"`
}
