// Package session implements the dock's session lifecycle: one vehicle slot,
// the handshake with the backend, the charging run and its completion. All
// session state is owned by the Coordinator; the charging engine and the
// telemetry publisher only ever see snapshots.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-electrify/dockd/core/backend"
	"github.com/go-electrify/dockd/core/charging"
	"github.com/go-electrify/dockd/core/logger"
	"github.com/go-electrify/dockd/core/metrics"
	"github.com/go-electrify/dockd/core/model"
	"github.com/go-electrify/dockd/core/realtime"
	"github.com/go-electrify/dockd/core/telemetry"
	"github.com/go-electrify/dockd/internal/eventbus"
)

// VehicleConn is the coordinator's handle on the connected vehicle.
type VehicleConn interface {
	ID() string
	Send(event string, payload any) error
	Close()
}

// Config holds the coordinator's timing parameters.
type Config struct {
	TickInterval      time.Duration
	TelemetryInterval time.Duration
	PingInterval      time.Duration
	HeartbeatInterval time.Duration
}

// SetDefaults applies the documented defaults: 1s power and telemetry ticks,
// 10s ping and heartbeat.
func (c *Config) SetDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.TelemetryInterval <= 0 {
		c.TelemetryInterval = time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
}

// Coordinator arbitrates the dock's single charging slot.
type Coordinator struct {
	cfg    Config
	gw     backend.Gateway
	opener realtime.Opener
	bus    *eventbus.Bus[realtime.Inbound]
	pub    *telemetry.Publisher
	sink   metrics.DockSink
	log    logger.Logger
	now    func() time.Time

	mu           sync.Mutex
	phase        model.DockPhase
	slot         int
	sess         *model.Session
	vehicle      VehicleConn
	channel      realtime.Channel
	sessionTasks *taskGroup // ping + heartbeat, live while handshaken
	chargeTasks  *taskGroup // power + telemetry ticks, live while charging
	completion   chan struct{}
}

// New creates a Coordinator. bus carries inbound realtime events; Run must be
// called to consume them.
func New(cfg Config, gw backend.Gateway, opener realtime.Opener, bus *eventbus.Bus[realtime.Inbound], pub *telemetry.Publisher, sink metrics.DockSink, log logger.Logger) *Coordinator {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Coordinator{
		cfg:    cfg,
		gw:     gw,
		opener: opener,
		bus:    bus,
		pub:    pub,
		sink:   sink,
		log:    log,
		now:    time.Now,
	}
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() model.DockPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// AcceptConnection admits one vehicle into the dock's slot and performs the
// backend handshake. Session identity is per-visit, so the handshake happens
// here and never at process start. The caller (the vehicle gateway) must
// invoke OnDisconnect when the connection ends, but only if this returned nil.
func (c *Coordinator) AcceptConnection(ctx context.Context, conn VehicleConn) error {
	c.mu.Lock()
	if c.slot >= 1 {
		c.mu.Unlock()
		c.log.Warnf("connection rejected: another vehicle is already connected")
		c.sendTo(conn, model.VehicleEventConnectionRejected, model.ConnectionRejected{
			Reason:    "Dock is already occupied by another vehicle",
			Timestamp: c.now(),
		})
		conn.Close()
		return ErrSlotOccupied
	}
	c.slot++
	c.vehicle = conn
	c.phase = model.PhaseHandshaking
	c.mu.Unlock()

	c.log.Infof("vehicle %s connected, initiating handshake with backend", conn.ID())

	res, err := c.gw.Handshake(ctx)
	if err != nil {
		c.log.Errorf("dock handshake failed: %v", err)
		c.rejectAndRelease(conn, "Failed to initialize dock session with backend")
		return fmt.Errorf("handshake: %w", err)
	}

	ch, err := c.opener.Open(res.ChannelID)
	if err != nil {
		c.log.Errorf("realtime channel attach failed: %v", err)
		c.rejectAndRelease(conn, "Failed to initialize dock session with backend")
		return fmt.Errorf("realtime attach: %w", err)
	}

	joinCode := res.JoinCode
	if joinCode == "" {
		joinCode = "N/A"
	}

	c.mu.Lock()
	c.sess = &model.Session{
		SessionID: res.SessionID,
		ChannelID: res.ChannelID,
		DockToken: res.DockToken,
		JoinCode:  joinCode,
		Charger: model.ChargerSpec{
			PowerKw:     res.Charger.PowerKw,
			PricePerKwh: res.Charger.PricePerKwh,
		},
	}
	c.channel = ch
	c.phase = model.PhaseReady
	tasks := newTaskGroup()
	c.sessionTasks = tasks
	c.mu.Unlock()

	tasks.Go(c.cfg.PingInterval, c.pingTick)
	tasks.Go(c.cfg.HeartbeatInterval, c.heartbeatTick)

	c.sendTo(conn, model.VehicleEventHandshakeSuccess, model.HandshakeSuccess{
		SessionID: res.SessionID,
		ChannelID: res.ChannelID,
		JoinCode:  joinCode,
		Message:   "Successfully connected to dock. Please configure your vehicle.",
		Timestamp: c.now(),
	})
	c.log.Infof("handshake successful, session %d on channel %s", res.SessionID, res.ChannelID)
	return nil
}

// rejectAndRelease notifies the vehicle, frees the slot and returns to IDLE.
// The terminal notification is always sent before the disconnect.
func (c *Coordinator) rejectAndRelease(conn VehicleConn, reason string) {
	c.sendTo(conn, model.VehicleEventConnectionRejected, model.ConnectionRejected{
		Reason:    reason,
		Timestamp: c.now(),
	})
	c.mu.Lock()
	if c.slot > 0 {
		c.slot--
	}
	c.vehicle = nil
	c.phase = model.PhaseIdle
	c.mu.Unlock()
	conn.Close()
}

// ConfigureVehicle applies the vehicle's battery configuration. Violations
// produce a validation_error notification and no state change.
func (c *Coordinator) ConfigureVehicle(cfg model.CarConfig) {
	c.mu.Lock()
	conn := c.vehicle
	if c.phase != model.PhaseReady || c.sess == nil || conn == nil {
		c.mu.Unlock()
		c.log.Warnf("car_configure ignored in phase %s", c.phase)
		return
	}

	var vErr string
	switch {
	case cfg.MaxCapacity <= 0:
		vErr = "maxCapacity must be greater than 0"
	case cfg.BatteryCapacity < 0:
		vErr = "batteryCapacity cannot be negative"
	case cfg.BatteryCapacity > cfg.MaxCapacity:
		vErr = "batteryCapacity cannot exceed maxCapacity"
	}
	if vErr != "" {
		c.mu.Unlock()
		c.log.Errorf("invalid vehicle configuration: %s", vErr)
		c.sendTo(conn, model.VehicleEventValidationError, model.ValidationError{
			Event:     model.VehicleEventCarConfigure,
			Error:     vErr,
			Timestamp: c.now(),
		})
		return
	}

	c.sess.Vehicle.CurrentCapacityKwh = cfg.BatteryCapacity
	c.sess.Vehicle.MaxCapacityKwh = cfg.MaxCapacity
	c.mu.Unlock()

	c.log.Infof("vehicle configured: %.1f/%.1f kWh", cfg.BatteryCapacity, cfg.MaxCapacity)
	c.sendTo(conn, model.VehicleEventConfigurationComplete, model.ConfigurationComplete{
		Message:   "Vehicle configured. Waiting for charging to start.",
		Timestamp: c.now(),
	})
}

// StartCharging begins a charging run. Nil target defaults to 100%. Rejections
// are logged without a state change; only a backend acknowledgment moves the
// session into CHARGING.
func (c *Coordinator) StartCharging(ctx context.Context, target *float64) {
	c.mu.Lock()
	if c.phase == model.PhaseCharging {
		c.mu.Unlock()
		c.log.Infof("charging already in progress, ignoring start request")
		return
	}
	if c.vehicle == nil || c.slot == 0 {
		c.mu.Unlock()
		c.log.Infof("no vehicle connected, cannot start charging")
		return
	}
	if c.phase != model.PhaseReady || c.sess == nil {
		c.mu.Unlock()
		c.log.Warnf("start request ignored in phase %s", c.phase)
		return
	}
	if !c.sess.Vehicle.Configured() {
		c.mu.Unlock()
		c.log.Errorf("vehicle not configured, cannot start charging")
		return
	}

	currentSOC := c.sess.SOC()
	tgt := 100.0
	if target != nil {
		if *target < 0 || *target > 100 {
			c.mu.Unlock()
			c.log.Errorf("invalid targetSOC %.1f: must be between 0 and 100", *target)
			return
		}
		if *target <= currentSOC {
			c.mu.Unlock()
			c.log.Errorf("invalid targetSOC %.1f%%: not greater than current SOC %.1f%%", *target, currentSOC)
			return
		}
		tgt = *target
	} else {
		c.log.Infof("target SOC not specified, defaulting to 100%%")
	}
	sessID := c.sess.SessionID
	c.mu.Unlock()

	if err := c.gw.StartSession(ctx, sessID, tgt); err != nil {
		c.log.Errorf("failed to start session with backend: %v", err)
		return
	}

	c.mu.Lock()
	if c.phase != model.PhaseReady || c.sess == nil || c.sess.SessionID != sessID {
		// The session went away while the backend call was in flight.
		c.mu.Unlock()
		return
	}
	c.sess.TargetSOC = tgt
	c.sess.SessionChargedKwh = 0
	c.sess.SessionStartTime = c.now()
	c.phase = model.PhaseCharging
	tasks := newTaskGroup()
	c.chargeTasks = tasks
	c.mu.Unlock()

	c.pub.ResetSession()
	c.sink.RecordSessionStart()
	tasks.Go(c.cfg.TickInterval, c.powerTick)
	tasks.Go(c.cfg.TelemetryInterval, c.telemetryTick)
	c.log.Infof("charging session %d started, target SOC %.1f%%", sessID, tgt)
}

// powerTick advances the simulation by one step. State mutation completes
// before the outbound power_update is emitted.
func (c *Coordinator) powerTick(_ context.Context) {
	c.mu.Lock()
	if c.phase != model.PhaseCharging || c.sess == nil {
		c.mu.Unlock()
		return
	}

	powerCap := charging.PowerCap(c.sess.Charger.PowerKw, c.sess.Vehicle.MaxPowerKw)
	if powerCap <= 0 {
		c.log.Errorf("invalid charger power configuration")
		c.phase = model.PhaseReady
		tasks := c.chargeTasks
		c.chargeTasks = nil
		c.mu.Unlock()
		if tasks != nil {
			tasks.Stop()
		}
		return
	}

	res := charging.Tick(
		powerCap,
		c.sess.Vehicle.CurrentCapacityKwh,
		c.sess.Vehicle.MaxCapacityKwh,
		c.sess.TargetSOC,
		c.cfg.TickInterval.Seconds(),
	)
	c.sess.Vehicle.CurrentCapacityKwh = res.NewCapacityKwh
	c.sess.SessionChargedKwh += res.DeliveredKwh

	update := model.PowerUpdate{
		Kwh:             model.Round2(res.DeliveredKwh),
		CurrentCapacity: model.Round2(res.NewCapacityKwh),
		MaxCapacity:     model.Round2(c.sess.Vehicle.MaxCapacityKwh),
		CurrentSOC:      model.Round2(res.NewSOC),
		ChargingPowerKw: model.Round2(res.PowerKw),
		Timestamp:       c.now(),
	}
	conn := c.vehicle
	target := c.sess.TargetSOC

	var done chan struct{}
	var tasks *taskGroup
	if res.TargetReached {
		c.phase = model.PhaseCompleting
		tasks = c.chargeTasks
		c.chargeTasks = nil
		if c.completion == nil {
			done = make(chan struct{})
			c.completion = done
		}
	}
	c.mu.Unlock()

	c.sendTo(conn, model.VehicleEventPowerUpdate, update)

	if res.TargetReached {
		if tasks != nil {
			tasks.Stop()
		}
		c.log.Infof("target SOC %.1f%% reached, stopping charging", target)
		if done != nil {
			c.completeSession(done, fmt.Sprintf("Charging complete! Reached target SOC of %g%%", target), "completed", true)
		}
	}
}

func (c *Coordinator) telemetryTick(ctx context.Context) {
	snap, ch := c.snapshot()
	c.pub.LogTick(ctx, snap, ch)
}

func (c *Coordinator) pingTick(ctx context.Context) {
	c.pub.Ping(ctx)
}

func (c *Coordinator) heartbeatTick(_ context.Context) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	c.pub.Heartbeat(ch)
}

// snapshot returns a read-only view of the session plus the current channel.
func (c *Coordinator) snapshot() (model.DockSnapshot, realtime.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := model.DockSnapshot{Phase: c.phase}
	if c.sess != nil {
		snap.Charging = c.phase == model.PhaseCharging
		snap.SessionID = c.sess.SessionID
		snap.CurrentCapacityKwh = c.sess.Vehicle.CurrentCapacityKwh
		snap.MaxCapacityKwh = c.sess.Vehicle.MaxCapacityKwh
		snap.SOC = c.sess.SOC()
		snap.TargetSOC = c.sess.TargetSOC
		snap.SessionChargedKwh = c.sess.SessionChargedKwh
		snap.PowerCapKw = charging.PowerCap(c.sess.Charger.PowerKw, c.sess.Vehicle.MaxPowerKw)
	}
	return snap, c.channel
}

// OnDisconnect handles the vehicle connection ending, normally or mid-charge.
// A disconnect during CHARGING is an interruption: charging stops first, the
// completion procedure runs (or an in-flight one is awaited), and only then is
// the slot released. Calling it twice is safe.
func (c *Coordinator) OnDisconnect() {
	c.mu.Lock()
	if c.vehicle == nil && c.slot == 0 && c.completion == nil {
		c.mu.Unlock()
		return
	}

	interrupted := c.phase == model.PhaseCharging && c.completion == nil
	var (
		soc   float64
		done  chan struct{}
		tasks *taskGroup
	)
	if interrupted {
		soc = c.sess.SOC()
		c.phase = model.PhaseCompleting
		tasks = c.chargeTasks
		c.chargeTasks = nil
		done = make(chan struct{})
		c.completion = done
	}
	c.vehicle = nil
	inflight := c.completion
	c.mu.Unlock()

	if tasks != nil {
		tasks.Stop()
	}
	if interrupted {
		c.log.Infof("vehicle disconnected during charging, completing session")
		c.completeSession(done, fmt.Sprintf("Charging interrupted! Vehicle disconnected at %.1f%% SOC", soc), "interrupted", false)
	} else if inflight != nil {
		// A completion triggered by the power tick is running; wait for it
		// before tearing the connection down.
		<-inflight
	}
	c.teardown()
}

// teardown clears timers first, then releases every session resource and
// returns the dock to IDLE.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	st := c.sessionTasks
	ct := c.chargeTasks
	ch := c.channel
	c.sessionTasks = nil
	c.chargeTasks = nil
	c.channel = nil
	c.sess = nil
	c.vehicle = nil
	c.completion = nil
	if c.slot > 0 {
		c.slot--
	}
	c.phase = model.PhaseIdle
	c.mu.Unlock()

	if ct != nil {
		ct.Stop()
	}
	if st != nil {
		st.Stop()
	}
	if ch != nil {
		ch.Close()
	}
	c.log.Infof("cleanup completed, ready for next connection")
}

// Run consumes inbound realtime events until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	sub := c.bus.Subscribe()
	defer c.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			c.handleInbound(ctx, ev)
		}
	}
}

func (c *Coordinator) handleInbound(ctx context.Context, ev realtime.Inbound) {
	switch e := ev.(type) {
	case realtime.SessionSpecsEvent:
		c.mu.Lock()
		if c.sess != nil {
			sp := e.Specs
			c.sess.Specs = &sp
			if sp.MaxPowerKw > 0 {
				c.sess.Vehicle.MaxPowerKw = sp.MaxPowerKw
			}
			if sp.ChargerPowerKw > 0 && c.sess.Charger.PowerKw == 0 {
				c.sess.Charger.PowerKw = sp.ChargerPowerKw
			}
		}
		c.mu.Unlock()
		c.log.Infof("session specs received")
	case realtime.StartSessionEvent:
		c.StartCharging(ctx, e.TargetSOC)
	case realtime.LoadCarInfoEvent:
		c.publishCarInfo()
	}
}

func (c *Coordinator) publishCarInfo() {
	c.mu.Lock()
	ch := c.channel
	info := model.CarInformation{Timestamp: c.now()}
	if c.sess != nil {
		info.CurrentCapacity = c.sess.Vehicle.CurrentCapacityKwh
		info.MaxCapacity = c.sess.Vehicle.MaxCapacityKwh
	}
	c.mu.Unlock()
	if ch == nil {
		return
	}
	if err := ch.Publish(realtime.EventCarInformation, info); err != nil {
		c.log.Errorf("failed to publish car info: %v", err)
	}
}

// sendTo delivers a notification to the vehicle, logging delivery failures.
func (c *Coordinator) sendTo(conn VehicleConn, event string, payload any) {
	if conn == nil {
		return
	}
	if err := conn.Send(event, payload); err != nil {
		c.log.Warnf("failed to send %s to vehicle: %v", event, err)
	}
}
