// Package backend defines the dock's view of the charging backend. The HTTP
// implementation lives in infra/backend; core code and tests depend only on
// the Gateway interface.
package backend

import (
	"context"
	"time"
)

// LogState is the dock state reported with telemetry samples.
type LogState string

const (
	StateCharging LogState = "CHARGING"
	StateParking  LogState = "PARKING"
)

// ChargerInfo describes the charging point as returned by the handshake.
type ChargerInfo struct {
	PowerKw     float64 `json:"powerKw"`
	PricePerKwh float64 `json:"pricePerKwh"`
}

// HandshakeResult carries the per-visit session identity issued by the backend.
type HandshakeResult struct {
	SessionID int64
	ChannelID string
	DockToken string
	JoinCode  string
	Charger   ChargerInfo
}

// DockLog is one telemetry sample. Dock identity and secret are supplied by
// the gateway implementation, not the caller.
type DockLog struct {
	SampleAt         time.Time
	SocPercent       int
	State            LogState
	PowerKw          *float64
	SessionEnergyKwh *float64
}

// CompleteRequest closes a session with the backend.
type CompleteRequest struct {
	EnergyKwh           float64
	DurationSeconds     int
	EndSoc              int
	PricePerKwhOverride float64
	// Reason and FinalSoc feed the legacy stop endpoint used as a fallback
	// when the primary completion endpoint is absent.
	Reason   string
	FinalSoc float64
}

// Gateway is the set of backend operations the coordinator depends on.
type Gateway interface {
	Handshake(ctx context.Context) (*HandshakeResult, error)
	Ping(ctx context.Context) (time.Time, error)
	Log(ctx context.Context, entry DockLog) error
	StartSession(ctx context.Context, sessionID int64, targetSoc float64) error
	CompleteSession(ctx context.Context, sessionID int64, req CompleteRequest) error
}
