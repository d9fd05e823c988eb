// Package vehicle exposes the dock's single vehicle slot over WebSocket.
package vehicle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-electrify/dockd/core/model"
	"github.com/go-electrify/dockd/core/session"
	"github.com/go-electrify/dockd/infra/logger"
)

// Dock is the coordinator surface the gateway drives.
type Dock interface {
	AcceptConnection(ctx context.Context, conn session.VehicleConn) error
	ConfigureVehicle(cfg model.CarConfig)
	OnDisconnect()
}

// Config defines the vehicle listener parameters.
type Config struct {
	ListenAddr          string `json:"listen_addr"`
	Path                string `json:"path"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
	ReadLimitBytes      int64  `json:"read_limit_bytes"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8081"
	}
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.WriteTimeoutSeconds <= 0 {
		c.WriteTimeoutSeconds = 10
	}
	if c.ReadLimitBytes <= 0 {
		c.ReadLimitBytes = 64 * 1024
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	return nil
}

// Gateway accepts vehicle connections and hands them to the dock coordinator.
type Gateway struct {
	cfg      Config
	dock     Dock
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewGateway creates a Gateway.
func NewGateway(cfg Config, dock Dock) *Gateway {
	cfg.SetDefaults()
	return &Gateway{
		cfg:  cfg,
		dock: dock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The web client connects from another origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.New("vehicle-gateway"),
	}
}

// Start serves the WebSocket endpoint until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(g.cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		g.handle(ctx, w, r)
	})
	srv := &http.Server{Addr: g.cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.log.Errorf("gateway shutdown: %v", err)
		}
	}()
	g.log.Infof("vehicle gateway listening on %s%s", g.cfg.ListenAddr, g.cfg.Path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (g *Gateway) handle(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Errorf("upgrade failed: %v", err)
		return
	}
	conn := newConn(ws, time.Duration(g.cfg.WriteTimeoutSeconds)*time.Second, g.log)

	// The coordinator decides admission; a rejected connection has already
	// been notified and closed, and must not report a disconnect.
	if err := g.dock.AcceptConnection(ctx, conn); err != nil {
		g.log.Warnf("connection %s not admitted: %v", conn.ID(), err)
		return
	}

	conn.readLoop(g.dock, g.cfg.ReadLimitBytes)
	conn.Close()
	g.dock.OnDisconnect()
}
