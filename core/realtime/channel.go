// Package realtime defines the pub/sub channel the dock shares with the
// driver-facing application. The MQTT implementation lives in infra/realtime.
package realtime

import "github.com/go-electrify/dockd/core/model"

// Channel event names, part of the wire contract.
const (
	EventSessionSpecs     = "session_specs"
	EventStartSession     = "start_session"
	EventStartCharging    = "start_charging"
	EventLoadCarInfo      = "load_car_information"
	EventDockHeartbeat    = "dock_heartbeat"
	EventCarInformation   = "car_information"
	EventSocUpdate        = "soc_update"
	EventChargingComplete = "charging_complete"
)

// Channel publishes dock events for one session's channel id.
type Channel interface {
	Publish(event string, payload any) error
	Close()
}

// Opener attaches a Channel for the channel id issued at handshake time.
type Opener interface {
	Open(channelID string) (Channel, error)
}

// Inbound is the tagged union over the known inbound channel events. Unknown
// events never reach the coordinator; adapters log and drop them.
type Inbound interface {
	isInbound()
}

// SessionSpecsEvent delivers vehicle/charger specs ahead of a session.
type SessionSpecsEvent struct {
	Specs model.SessionSpecs
}

// StartSessionEvent requests that charging begin. TargetSOC is optional.
type StartSessionEvent struct {
	TargetSOC *float64
}

// LoadCarInfoEvent requests a car_information publication.
type LoadCarInfoEvent struct{}

func (SessionSpecsEvent) isInbound() {}
func (StartSessionEvent) isInbound() {}
func (LoadCarInfoEvent) isInbound()  {}
