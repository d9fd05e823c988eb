package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/go-electrify/dockd/core/metrics"
	"github.com/go-electrify/dockd/infra/logger"
)

// InfluxSink writes dock events to an InfluxDB instance using the official
// client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg Config) coremetrics.DockSink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSessionStart writes a session start event.
func (s *InfluxSink) RecordSessionStart() {
	s.writePoint(write.NewPointWithMeasurement("dock_session").
		AddTag("event", "start").
		AddField("count", 1).
		SetTime(time.Now()))
}

// RecordSessionEnd writes the session summary.
func (s *InfluxSink) RecordSessionEnd(rec coremetrics.SessionRecord) {
	s.writePoint(write.NewPointWithMeasurement("dock_session").
		AddTag("event", "end").
		AddTag("status", rec.Status).
		AddField("energy_kwh", round3(rec.EnergyKwh)).
		AddField("duration_seconds", rec.Duration.Seconds()).
		AddField("final_soc", round3(rec.FinalSOC)).
		SetTime(time.Now()))
}

// RecordTick writes one telemetry observation.
func (s *InfluxSink) RecordTick(t coremetrics.TickSample) {
	s.writePoint(write.NewPointWithMeasurement("dock_tick").
		AddField("soc", round3(t.SOC)).
		AddField("power_kw", round3(t.PowerKw)).
		AddField("session_energy_kwh", round3(t.SessionEnergyKwh)).
		SetTime(time.Now()))
}

func (s *InfluxSink) writePoint(p *write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write: %v", err)
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
