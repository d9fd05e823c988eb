package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-electrify/dockd/core/backend"
	"github.com/go-electrify/dockd/core/metrics"
	"github.com/go-electrify/dockd/core/model"
	"github.com/go-electrify/dockd/infra/logger"
)

type recordingGateway struct {
	mu   sync.Mutex
	logs []backend.DockLog
}

func (g *recordingGateway) Handshake(context.Context) (*backend.HandshakeResult, error) {
	return &backend.HandshakeResult{}, nil
}

func (g *recordingGateway) Ping(context.Context) (time.Time, error) { return time.Now(), nil }

func (g *recordingGateway) Log(_ context.Context, entry backend.DockLog) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logs = append(g.logs, entry)
	return nil
}

func (g *recordingGateway) StartSession(context.Context, int64, float64) error { return nil }

func (g *recordingGateway) CompleteSession(context.Context, int64, backend.CompleteRequest) error {
	return nil
}

type recordingChannel struct {
	mu        sync.Mutex
	published []struct {
		event   string
		payload any
	}
}

func (c *recordingChannel) Publish(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, struct {
		event   string
		payload any
	}{event, payload})
	return nil
}

func (c *recordingChannel) Close() {}

type recordingSink struct {
	metrics.NopSink
	ticks []metrics.TickSample
}

func (s *recordingSink) RecordTick(sample metrics.TickSample) {
	s.ticks = append(s.ticks, sample)
}

func TestLogTickSkipsWhenNotCharging(t *testing.T) {
	gw := &recordingGateway{}
	ch := &recordingChannel{}
	p := NewPublisher(gw, nil, logger.NopLogger{})

	p.LogTick(context.Background(), model.DockSnapshot{Charging: false, SOC: 50}, ch)

	require.Empty(t, gw.logs)
	require.Empty(t, ch.published)
}

func TestLogTickReportsSample(t *testing.T) {
	gw := &recordingGateway{}
	ch := &recordingChannel{}
	sink := &recordingSink{}
	p := NewPublisher(gw, sink, logger.NopLogger{})
	now := time.Now()
	p.now = func() time.Time { return now }
	p.ResetSession()

	snap := model.DockSnapshot{
		Charging:          true,
		SOC:               54.3,
		SessionChargedKwh: 1.234,
		PowerCapKw:        50,
	}
	p.LogTick(context.Background(), snap, ch)

	require.Len(t, gw.logs, 1)
	entry := gw.logs[0]
	require.Equal(t, backend.StateCharging, entry.State)
	require.Equal(t, 54, entry.SocPercent)
	require.NotNil(t, entry.SessionEnergyKwh)
	require.Equal(t, 1.23, *entry.SessionEnergyKwh)
	// The first sample cannot carry a power estimate.
	require.Nil(t, entry.PowerKw)

	require.Len(t, ch.published, 1)
	require.Equal(t, "soc_update", ch.published[0].event)
	upd := ch.published[0].payload.(model.SocUpdate)
	require.Equal(t, 54.3, upd.Soc)
	require.Nil(t, upd.PowerKw)

	require.Len(t, sink.ticks, 1)
	require.Equal(t, 54.3, sink.ticks[0].SOC)
}

func TestLogTickEstimatesPower(t *testing.T) {
	gw := &recordingGateway{}
	p := NewPublisher(gw, nil, logger.NopLogger{})
	now := time.Now()
	p.now = func() time.Time { return now }
	p.ResetSession()

	snap := model.DockSnapshot{Charging: true, SOC: 50, SessionChargedKwh: 0, PowerCapKw: 50}
	p.LogTick(context.Background(), snap, nil)

	// 0.0139 kWh over one second is roughly 50 kW.
	now = now.Add(time.Second)
	snap.SessionChargedKwh = 50.0 / 3600
	p.LogTick(context.Background(), snap, nil)

	require.Len(t, gw.logs, 2)
	require.NotNil(t, gw.logs[1].PowerKw)
	require.InDelta(t, 50, *gw.logs[1].PowerKw, 0.01)
}

func TestHeartbeatPublishes(t *testing.T) {
	ch := &recordingChannel{}
	p := NewPublisher(&recordingGateway{}, nil, logger.NopLogger{})

	p.Heartbeat(ch)
	p.Heartbeat(nil) // no channel attached, no panic

	require.Len(t, ch.published, 1)
	require.Equal(t, "dock_heartbeat", ch.published[0].event)
}
