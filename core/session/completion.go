package session

import (
	"context"
	"math"
	"time"

	"github.com/go-electrify/dockd/core/backend"
	"github.com/go-electrify/dockd/core/metrics"
	"github.com/go-electrify/dockd/core/model"
	"github.com/go-electrify/dockd/core/realtime"
)

// completeSession runs the completion procedure exactly once per session. The
// done channel is the single-flight guard installed under the coordinator
// lock by the triggering path (power tick or disconnect); any concurrent
// trigger waits on it instead of re-entering. Remote reconciliation is
// best-effort: the session always resets locally regardless of failures.
func (c *Coordinator) completeSession(done chan struct{}, reason, status string, disconnectAfter bool) {
	defer close(done)

	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return
	}
	capacity := sess.Vehicle.CurrentCapacityKwh
	maxKwh := sess.Vehicle.MaxCapacityKwh
	target := sess.TargetSOC
	energy := sess.SessionChargedKwh
	started := sess.SessionStartTime
	sessID := sess.SessionID
	price := sess.Charger.PricePerKwh
	conn := c.vehicle
	ch := c.channel
	c.mu.Unlock()

	c.log.Infof("starting charging completion: %s", reason)

	finalSOC := 0.0
	if maxKwh > 0 {
		finalSOC = capacity / maxKwh * 100
	}
	duration := 0
	if !started.IsZero() {
		duration = int(c.now().Sub(started).Seconds())
	}

	// Backend keep-alive, completion and channel I/O should not hang a
	// teardown forever.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	energyR := model.Round2(energy)
	if err := c.gw.Log(ctx, backend.DockLog{
		SampleAt:         c.now(),
		SocPercent:       int(math.Round(finalSOC)),
		State:            backend.StateParking,
		SessionEnergyKwh: &energyR,
	}); err != nil {
		c.log.Errorf("failed to send final log to backend: %v", err)
	}

	c.sendTo(conn, model.VehicleEventChargingComplete, model.ChargingComplete{
		Message:       reason,
		FinalCapacity: model.Round2(capacity),
		MaxCapacity:   model.Round2(maxKwh),
		FinalSOC:      model.Round2(finalSOC),
		Timestamp:     c.now(),
	})

	if ch != nil {
		if err := ch.Publish(realtime.EventChargingComplete, model.ChargingEvent{
			Status:            status,
			FinalSOC:          model.Round2(finalSOC),
			FinalCapacity:     model.Round2(capacity),
			TargetSOC:         target,
			SessionChargedKwh: energyR,
			Timestamp:         c.now(),
			SessionID:         sessID,
		}); err != nil {
			c.log.Errorf("failed to publish charging completion: %v", err)
		}
	}

	if err := c.gw.CompleteSession(ctx, sessID, backend.CompleteRequest{
		EnergyKwh:           energyR,
		DurationSeconds:     duration,
		EndSoc:              int(math.Round(finalSOC)),
		PricePerKwhOverride: price,
		Reason:              stopReason(status),
		FinalSoc:            model.Round2(finalSOC),
	}); err != nil {
		c.log.Errorf("failed to complete session with backend: %v", err)
	}

	c.sink.RecordSessionEnd(metrics.SessionRecord{
		Status:    status,
		EnergyKwh: energy,
		Duration:  time.Duration(duration) * time.Second,
		FinalSOC:  finalSOC,
	})

	c.mu.Lock()
	if c.sess == sess {
		c.sess.TargetSOC = 0
		c.sess.SessionStartTime = time.Time{}
		if c.phase == model.PhaseCompleting && c.vehicle != nil {
			c.phase = model.PhaseReady
		}
	}
	if c.completion == done {
		// Allow a later charging run in the same visit to complete again.
		c.completion = nil
	}
	c.mu.Unlock()

	c.log.Infof("charging completion finished, session %d duration %ds", sessID, duration)

	if disconnectAfter && conn != nil {
		conn.Close()
	}
}

// stopReason maps the completion status to the reason string understood by
// the legacy stop endpoint.
func stopReason(status string) string {
	if status == "completed" {
		return "target_soc"
	}
	return "disconnected"
}
