package metrics

import "time"

// SessionRecord summarizes one finished charging session.
type SessionRecord struct {
	Status    string // "completed" or "interrupted"
	EnergyKwh float64
	Duration  time.Duration
	FinalSOC  float64
}

// TickSample is one telemetry observation while charging.
type TickSample struct {
	SOC              float64
	PowerKw          float64
	SessionEnergyKwh float64
}

// DockSink records dock observability events.
type DockSink interface {
	RecordSessionStart()
	RecordSessionEnd(rec SessionRecord)
	RecordTick(s TickSample)
}

// NopSink implements DockSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSessionStart()            {}
func (NopSink) RecordSessionEnd(SessionRecord) {}
func (NopSink) RecordTick(TickSample)          {}
