package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModels bool

func (m stubModels) Ready() bool { return bool(m) }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func readyStatus(t *testing.T, s *Server) (int, ReadyResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHealthAndLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "race-edge", Version: "v2-kelly"})

	for _, path := range []string{"/health", "/live"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`, path)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		models     ModelChecker
		db         DatabasePinger
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "not started",
			ready:      false,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"service": "not_ready"},
		},
		{
			name:       "all healthy",
			ready:      true,
			models:     stubModels(true),
			db:         stubPinger{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"service": "ok", "models": "ok", "database": "ok"},
		},
		{
			name:       "bundle not loaded",
			ready:      true,
			models:     stubModels(false),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"service": "ok", "models": "not_loaded"},
		},
		{
			name:       "database down",
			ready:      true,
			db:         stubPinger{err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"service": "ok", "database": "error: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{ServiceName: "race-edge", Models: tt.models, DB: tt.db})
			s.SetReady(tt.ready)

			code, resp := readyStatus(t, s)
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}
