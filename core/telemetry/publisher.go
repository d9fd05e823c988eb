// Package telemetry forwards periodic dock observations to the backend and
// the realtime channel. It never mutates session state; the coordinator hands
// it snapshots.
package telemetry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-electrify/dockd/core/backend"
	"github.com/go-electrify/dockd/core/charging"
	"github.com/go-electrify/dockd/core/logger"
	"github.com/go-electrify/dockd/core/metrics"
	"github.com/go-electrify/dockd/core/model"
	"github.com/go-electrify/dockd/core/realtime"
)

// Publisher samples dock state and reports it outward.
type Publisher struct {
	gw   backend.Gateway
	sink metrics.DockSink
	log  logger.Logger
	now  func() time.Time

	mu  sync.Mutex
	est charging.Estimator
}

// NewPublisher creates a Publisher.
func NewPublisher(gw backend.Gateway, sink metrics.DockSink, log logger.Logger) *Publisher {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Publisher{gw: gw, sink: sink, log: log, now: time.Now}
}

// ResetSession clears the power estimator for a new charging run.
func (p *Publisher) ResetSession() {
	p.mu.Lock()
	p.est.Reset(0)
	p.mu.Unlock()
}

// LogTick posts one telemetry sample to the backend and publishes a
// soc_update on the channel. It is a no-op unless the dock is charging.
// Failures are logged and skipped, never propagated.
func (p *Publisher) LogTick(ctx context.Context, snap model.DockSnapshot, ch realtime.Channel) {
	if !snap.Charging {
		return
	}
	now := p.now()

	p.mu.Lock()
	power, ok := p.est.Sample(snap.SessionChargedKwh, snap.PowerCapKw, now)
	p.mu.Unlock()

	energy := model.Round2(snap.SessionChargedKwh)
	entry := backend.DockLog{
		SampleAt:         now,
		SocPercent:       int(math.Round(snap.SOC)),
		State:            backend.StateCharging,
		SessionEnergyKwh: &energy,
	}
	var powerR *float64
	if ok {
		v := model.Round2(power)
		powerR = &v
		entry.PowerKw = &v
	}
	if err := p.gw.Log(ctx, entry); err != nil {
		p.log.Errorf("failed to send log to backend: %v", err)
	}

	if ch != nil {
		upd := model.SocUpdate{
			Soc:       model.Round2(snap.SOC),
			PowerKw:   powerR,
			EnergyKwh: &energy,
			Timestamp: now,
		}
		if err := ch.Publish(realtime.EventSocUpdate, upd); err != nil {
			p.log.Errorf("failed to publish SOC update: %v", err)
		} else {
			p.log.Debugf("published SOC update: %.2f%%", snap.SOC)
		}
	}

	p.sink.RecordTick(metrics.TickSample{
		SOC:              snap.SOC,
		PowerKw:          power,
		SessionEnergyKwh: snap.SessionChargedKwh,
	})
}

// Heartbeat publishes a dock_heartbeat on the channel when one is attached.
func (p *Publisher) Heartbeat(ch realtime.Channel) {
	if ch == nil {
		return
	}
	if err := ch.Publish(realtime.EventDockHeartbeat, model.Heartbeat{Timestamp: p.now()}); err != nil {
		p.log.Errorf("failed to publish heartbeat: %v", err)
	}
}

// Ping keeps the backend connection alive. Failures are logged only.
func (p *Publisher) Ping(ctx context.Context) {
	serverTime, err := p.gw.Ping(ctx)
	if err != nil {
		p.log.Errorf("ping request failed: %v", err)
		return
	}
	p.log.Debugf("ping successful, server time %s", serverTime.Format(time.RFC3339))
}
