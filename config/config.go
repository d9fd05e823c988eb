// Package config loads the dock configuration from a YAML or JSON file with
// optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/go-electrify/dockd/infra/backend"
	"github.com/go-electrify/dockd/infra/metrics"
	"github.com/go-electrify/dockd/infra/realtime"
	"github.com/go-electrify/dockd/infra/vehicle"
)

type Config struct {
	Backend    backend.Config   `json:"backend"`
	MQTT       realtime.Config  `json:"mqtt"`
	Vehicle    vehicle.Config   `json:"vehicle"`
	Simulation SimulationConfig `json:"simulation"`
	Metrics    metrics.Config   `json:"metrics"`
}

// Load reads the configuration at path. Environment variables prefixed with
// DOCK_ override file values, with "__" separating nesting levels, e.g.
// DOCK_BACKEND__SECRET sets backend.secret.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("DOCK_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dock_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Backend.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Vehicle.SetDefaults()
	cfg.Simulation.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Backend.Validate(); err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	if err := cfg.Vehicle.Validate(); err != nil {
		return nil, fmt.Errorf("vehicle: %w", err)
	}
	return &cfg, nil
}
