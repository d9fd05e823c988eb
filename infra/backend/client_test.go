package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	corebackend "github.com/go-electrify/dockd/core/backend"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, DockID: 7, Secret: "s3cret"})
}

func TestHandshake(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/docks/7/handshake", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"data": map[string]any{
				"sessionId": 42,
				"channelId": "chan-42",
				"dockJwt":   "jwt-token",
				"joinCode":  "ABC123",
				"charger":   map[string]any{"powerKw": 50, "pricePerKwh": 0.3},
			},
		})
	}))

	res, err := c.Handshake(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer s3cret", gotAuth)
	require.Equal(t, "s3cret", gotBody["secretKey"])
	require.Equal(t, int64(42), res.SessionID)
	require.Equal(t, "chan-42", res.ChannelID)
	require.Equal(t, "jwt-token", res.DockToken)
	require.Equal(t, "ABC123", res.JoinCode)
	require.Equal(t, 50.0, res.Charger.PowerKw)
}

func TestHandshakeChannelFallback(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"channelId": "top-level-chan",
			"data":      map[string]any{"sessionId": 1, "dockJwt": "jwt"},
		})
	}))

	res, err := c.Handshake(context.Background())
	require.NoError(t, err)
	require.Equal(t, "top-level-chan", res.ChannelID)
}

func TestHandshakeFailure(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid secret", http.StatusUnauthorized)
	}))

	_, err := c.Handshake(context.Background())
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.Code)
	require.Contains(t, se.Body, "invalid secret")
}

func TestPing(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/docks/ping", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(7), body["dockId"])
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "serverTime": now.Format(time.RFC3339)})
	}))

	got, err := c.Ping(context.Background())
	require.NoError(t, err)
	require.True(t, got.Equal(now))
}

func TestLogPayload(t *testing.T) {
	var got dockLogRequest
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/docks/log", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))

	power := 42.5
	energy := 1.23
	err := c.Log(context.Background(), corebackend.DockLog{
		SampleAt:         time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		SocPercent:       54,
		State:            corebackend.StateCharging,
		PowerKw:          &power,
		SessionEnergyKwh: &energy,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), got.DockID)
	require.Equal(t, "s3cret", got.SecretKey)
	require.Equal(t, "2026-08-30T12:00:00Z", got.SampleAt)
	require.Equal(t, 54, got.SocPercent)
	require.Equal(t, "CHARGING", got.State)
	require.Equal(t, 42.5, *got.PowerKw)
	require.Equal(t, 1.23, *got.SessionEnergyKwh)
}

func TestStartSessionUsesDockToken(t *testing.T) {
	var auths []string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		if r.URL.Path == "/api/v1/docks/7/handshake" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"sessionId": 42, "channelId": "c", "dockJwt": "session-jwt"},
			})
			return
		}
		require.Equal(t, "/api/v1/sessions/start", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	_, err := c.Handshake(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.StartSession(context.Background(), 42, 80))
	require.Equal(t, "Bearer session-jwt", auths[len(auths)-1])
}

func TestCompleteSessionLegacyFallback(t *testing.T) {
	var paths []string
	var legacyBody map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/api/v1/sessions/42/complete":
			http.NotFound(w, r)
		case "/api/v1/charging-sessions/42/stop":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&legacyBody))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	err := c.CompleteSession(context.Background(), 42, corebackend.CompleteRequest{
		EnergyKwh: 60,
		Reason:    "target_soc",
		FinalSoc:  80,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"/api/v1/sessions/42/complete", "/api/v1/charging-sessions/42/stop"}, paths)
	require.Equal(t, "target_soc", legacyBody["reason"])
	require.Equal(t, 80.0, legacyBody["finalSoc"])
	require.Equal(t, 60.0, legacyBody["energyKwh"])
}

func TestCompleteSessionOtherErrorNoFallback(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	err := c.CompleteSession(context.Background(), 42, corebackend.CompleteRequest{})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{BaseURL: "http://x", DockID: 1, Secret: "s"}, true},
		{"missing url", Config{DockID: 1, Secret: "s"}, false},
		{"missing dock", Config{BaseURL: "http://x", Secret: "s"}, false},
		{"missing secret", Config{BaseURL: "http://x", DockID: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
