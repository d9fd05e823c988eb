// Package backend implements the charging backend gateway over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	corebackend "github.com/go-electrify/dockd/core/backend"
	"github.com/go-electrify/dockd/infra/logger"
)

// Config defines the backend connection parameters.
type Config struct {
	BaseURL        string `json:"base_url"`
	DockID         int64  `json:"dock_id"`
	Secret         string `json:"secret"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.DockID <= 0 {
		return fmt.Errorf("dock_id is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("secret is required")
	}
	return nil
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Client talks to the charging backend. It stores the dock token issued at
// handshake time and attaches it to session calls.
type Client struct {
	http   *http.Client
	base   string
	dockID int64
	secret string
	log    logger.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a backend client from the configuration.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		base:   strings.TrimSuffix(cfg.BaseURL, "/"),
		dockID: cfg.DockID,
		secret: cfg.Secret,
		log:    logger.New("backend-client"),
	}
}

type handshakeEnvelope struct {
	Status    string        `json:"status"`
	ChannelID string        `json:"channelId"`
	Ok        bool          `json:"ok"`
	Data      handshakeData `json:"data"`
}

type handshakeData struct {
	SessionID int64                   `json:"sessionId"`
	ChannelID string                  `json:"channelId"`
	DockJwt   string                  `json:"dockJwt"`
	JoinCode  string                  `json:"joinCode"`
	Charger   *corebackend.ChargerInfo `json:"charger"`
}

// Handshake negotiates per-visit session credentials with the backend.
func (c *Client) Handshake(ctx context.Context) (*corebackend.HandshakeResult, error) {
	var env handshakeEnvelope
	path := fmt.Sprintf("/api/v1/docks/%d/handshake", c.dockID)
	if err := c.postJSON(ctx, path, c.secret, map[string]any{"secretKey": c.secret}, &env); err != nil {
		return nil, fmt.Errorf("dock handshake: %w", err)
	}

	channelID := env.Data.ChannelID
	if channelID == "" {
		channelID = env.ChannelID
	}
	res := &corebackend.HandshakeResult{
		SessionID: env.Data.SessionID,
		ChannelID: channelID,
		DockToken: env.Data.DockJwt,
		JoinCode:  env.Data.JoinCode,
	}
	if env.Data.Charger != nil {
		res.Charger = *env.Data.Charger
	}

	c.mu.Lock()
	c.token = env.Data.DockJwt
	c.mu.Unlock()
	return res, nil
}

type pingResponse struct {
	Ok         bool   `json:"ok"`
	ServerTime string `json:"serverTime"`
}

// Ping keeps the dock registration alive and returns the server time.
func (c *Client) Ping(ctx context.Context) (time.Time, error) {
	var resp pingResponse
	body := map[string]any{"dockId": c.dockID, "secretKey": c.secret}
	if err := c.postJSON(ctx, "/api/v1/docks/ping", "", body, &resp); err != nil {
		return time.Time{}, fmt.Errorf("dock ping: %w", err)
	}
	t, err := time.Parse(time.RFC3339, resp.ServerTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("dock ping: parse server time: %w", err)
	}
	return t, nil
}

type dockLogRequest struct {
	DockID           int64    `json:"dockId"`
	SecretKey        string   `json:"secretKey"`
	SampleAt         string   `json:"sampleAt"`
	SocPercent       int      `json:"socPercent"`
	State            string   `json:"state"`
	PowerKw          *float64 `json:"powerKw,omitempty"`
	SessionEnergyKwh *float64 `json:"sessionEnergyKwh,omitempty"`
}

// Log posts one telemetry sample.
func (c *Client) Log(ctx context.Context, entry corebackend.DockLog) error {
	body := dockLogRequest{
		DockID:           c.dockID,
		SecretKey:        c.secret,
		SampleAt:         entry.SampleAt.UTC().Format(time.RFC3339),
		SocPercent:       entry.SocPercent,
		State:            string(entry.State),
		PowerKw:          entry.PowerKw,
		SessionEnergyKwh: entry.SessionEnergyKwh,
	}
	if err := c.postJSON(ctx, "/api/v1/docks/log", "", body, nil); err != nil {
		return fmt.Errorf("dock log: %w", err)
	}
	return nil
}

// StartSession asks the backend to open the charging session. Authorized with
// the dock token from the handshake.
func (c *Client) StartSession(ctx context.Context, sessionID int64, targetSoc float64) error {
	body := map[string]any{"sessionId": sessionID, "targetSoc": targetSoc}
	if err := c.postJSON(ctx, "/api/v1/sessions/start", c.currentToken(), body, nil); err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	return nil
}

// CompleteSession closes the session with the backend. Backends predating the
// completion endpoint answer 404/405; those get one retry against the legacy
// stop endpoint before giving up.
func (c *Client) CompleteSession(ctx context.Context, sessionID int64, req corebackend.CompleteRequest) error {
	body := map[string]any{
		"energyKwh":           req.EnergyKwh,
		"durationSeconds":     req.DurationSeconds,
		"endSoc":              req.EndSoc,
		"pricePerKwhOverride": req.PricePerKwhOverride,
	}
	path := fmt.Sprintf("/api/v1/sessions/%d/complete", sessionID)
	err := c.postJSON(ctx, path, c.currentToken(), body, nil)
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusMethodNotAllowed) {
		c.log.Warnf("completion endpoint missing (status %d), trying legacy stop", se.Code)
		legacy := map[string]any{
			"reason":    req.Reason,
			"finalSoc":  req.FinalSoc,
			"energyKwh": req.EnergyKwh,
		}
		legacyPath := fmt.Sprintf("/api/v1/charging-sessions/%d/stop", sessionID)
		if lerr := c.postJSON(ctx, legacyPath, c.currentToken(), legacy, nil); lerr != nil {
			return fmt.Errorf("session complete (legacy): %w", lerr)
		}
		return nil
	}
	return fmt.Errorf("session complete: %w", err)
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// postJSON sends body to path and decodes the response into out when non-nil.
// Non-2xx responses are returned as *StatusError with a body excerpt.
func (c *Client) postJSON(ctx context.Context, path, token string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
