// Package app wires the dock's collaborators together.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-electrify/dockd/config"
	coremetrics "github.com/go-electrify/dockd/core/metrics"
	corertc "github.com/go-electrify/dockd/core/realtime"
	"github.com/go-electrify/dockd/core/session"
	"github.com/go-electrify/dockd/core/telemetry"
	"github.com/go-electrify/dockd/infra/backend"
	"github.com/go-electrify/dockd/infra/logger"
	"github.com/go-electrify/dockd/infra/metrics"
	"github.com/go-electrify/dockd/infra/realtime"
	"github.com/go-electrify/dockd/infra/vehicle"
	"github.com/go-electrify/dockd/internal/eventbus"
)

// Service orchestrates the session coordinator and its adapters.
type Service struct {
	Coordinator *session.Coordinator
	gateway     *vehicle.Gateway
	bus         *eventbus.Bus[corertc.Inbound]
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	client := backend.NewClient(cfg.Backend)

	var sinks []coremetrics.DockSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.DockSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New[corertc.Inbound]()
	factory := realtime.NewFactory(cfg.MQTT, bus)

	pub := telemetry.NewPublisher(client, sink, logger.New("telemetry"))
	coord := session.New(cfg.Simulation.SessionConfig(), client, factory, bus, pub, sink, logger.New("session"))

	svc := &Service{
		Coordinator: coord,
		gateway:     vehicle.NewGateway(cfg.Vehicle, coord),
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}
	return svc, nil
}

// Run starts the service and blocks until the vehicle gateway stops.
func (s *Service) Run(ctx context.Context) error {
	go s.Coordinator.Run(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.gateway.Start(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
