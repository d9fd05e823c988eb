package metrics

import coremetrics "github.com/go-electrify/dockd/core/metrics"

// MultiSink fans dock events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.DockSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.DockSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordSessionStart() {
	for _, s := range m.Sinks {
		s.RecordSessionStart()
	}
}

func (m *MultiSink) RecordSessionEnd(rec coremetrics.SessionRecord) {
	for _, s := range m.Sinks {
		s.RecordSessionEnd(rec)
	}
}

func (m *MultiSink) RecordTick(t coremetrics.TickSample) {
	for _, s := range m.Sinks {
		s.RecordTick(t)
	}
}
