// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h *Handler, path string) (int, map[string]any) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		deps   []Dependency
		status int
		state  string
	}{
		{
			name: "all healthy",
			deps: []Dependency{
				{Name: "mongodb", Checker: pinger{}},
				{Name: "redis", Checker: pinger{}, Optional: true},
			},
			status: http.StatusOK,
			state:  "ok",
		},
		{
			name: "optional dependency missing",
			deps: []Dependency{
				{Name: "mongodb", Checker: pinger{}},
				{Name: "redis", Optional: true},
			},
			status: http.StatusOK,
			state:  "ok",
		},
		{
			name: "store down",
			deps: []Dependency{
				{Name: "mongodb", Checker: pinger{err: errors.New("no primary")}},
			},
			status: http.StatusServiceUnavailable,
			state:  "degraded",
		},
		{
			name:   "required dependency missing",
			deps:   []Dependency{{Name: "mongodb"}},
			status: http.StatusServiceUnavailable,
			state:  "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.deps...)
			h.SetReady(true)
			status, body := get(t, h, "/readyz")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.state, body["status"])
			assert.Len(t, body["checks"], len(tt.deps))
		})
	}
}

func TestLivenessReadinessAndShutdown(t *testing.T) {
	h := NewHandler(Dependency{Name: "mongodb", Checker: pinger{}})

	status, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not_ready", body["status"])

	h.SetReady(true)
	status, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, status)

	h.SetShutdown(true)
	status, body = get(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "shutting_down", body["status"])
}
