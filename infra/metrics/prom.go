package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/go-electrify/dockd/core/metrics"
)

// PromSink records dock events in Prometheus metrics.
type PromSink struct {
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	sessionEnergy   prometheus.Histogram
	soc             prometheus.Gauge
	power           prometheus.Gauge
}

// NewPromSink registers dock metrics on the provided Prometheus registerer.
// If reg is nil, the default registerer is used. If the collectors are already
// registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dock_sessions_started_total",
			Help: "Total number of charging sessions started",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dock_sessions_ended_total",
			Help: "Total number of charging sessions ended",
		}, []string{"status"}),
		sessionEnergy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dock_session_energy_kwh",
			Help:    "Energy delivered per charging session",
			Buckets: []float64{1, 5, 10, 20, 40, 60, 80, 100},
		}),
		soc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dock_vehicle_soc_percent",
			Help: "State of charge of the connected vehicle",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dock_charging_power_kw",
			Help: "Current charging power",
		}),
	}

	if err := reg.Register(s.sessionsStarted); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.sessionsStarted = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.sessionsEnded); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.sessionsEnded = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.sessionEnergy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.sessionEnergy = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.soc); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.soc = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.power); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.power = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	return s, nil
}

// RecordSessionStart counts a new charging session.
func (s *PromSink) RecordSessionStart() {
	s.sessionsStarted.Inc()
}

// RecordSessionEnd counts a finished session and observes its energy.
func (s *PromSink) RecordSessionEnd(rec coremetrics.SessionRecord) {
	s.sessionsEnded.WithLabelValues(rec.Status).Inc()
	s.sessionEnergy.Observe(rec.EnergyKwh)
	s.soc.Set(rec.FinalSOC)
	s.power.Set(0)
}

// RecordTick updates the live gauges.
func (s *PromSink) RecordTick(t coremetrics.TickSample) {
	s.soc.Set(t.SOC)
	s.power.Set(t.PowerKw)
}
