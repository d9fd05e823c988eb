package model

// DockPhase tracks the lifecycle of the single charging slot.
type DockPhase int

const (
	PhaseIdle DockPhase = iota
	PhaseHandshaking
	PhaseReady
	PhaseCharging
	PhaseCompleting
)

// String returns a human readable phase name.
func (p DockPhase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseHandshaking:
		return "HANDSHAKING"
	case PhaseReady:
		return "READY"
	case PhaseCharging:
		return "CHARGING"
	case PhaseCompleting:
		return "COMPLETING"
	default:
		return "UNKNOWN"
	}
}
