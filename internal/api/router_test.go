package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

type staticStatus struct {
	resp models.StatusResponse
}

func (s staticStatus) Snapshot() models.StatusResponse { return s.resp }

type pinger struct {
	err error
}

func (p pinger) Ping(ctx context.Context) error { return p.err }

func TestRouter(t *testing.T) {
	status := staticStatus{resp: models.StatusResponse{
		Cluster:  "rg",
		Topology: "templated",
		LastPass: models.PassStatus{
			Outcome: models.OutcomeChanged,
			Pools:   []models.PoolInfo{{Name: "agentpool1", ActualCapacity: 3, MaxSize: 100, Target: 8}},
		},
	}}

	tests := []struct {
		name           string
		redis          *pinger
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "health",
			path:           "/api/v1/health",
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ok"`,
		},
		{
			name:           "ready without redis",
			path:           "/api/v1/ready",
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ready"`,
		},
		{
			name:           "ready with redis down",
			redis:          &pinger{err: errors.New("refused")},
			path:           "/api/v1/ready",
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `"error":"service unavailable"`,
		},
		{
			name:           "health ignores redis",
			redis:          &pinger{err: errors.New("refused")},
			path:           "/api/v1/health",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "metrics",
			path:           "/api/v1/metrics",
			expectedStatus: http.StatusOK,
			expectedBody:   "acs_autoscaler_",
		},
		{
			name:           "unknown route",
			path:           "/api/v1/allocate",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(status, nil, nil, nil)
			if tt.redis != nil {
				router = NewRouter(status, *tt.redis, nil, nil)
			}

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	status := staticStatus{resp: models.StatusResponse{
		Cluster:  "rg/cs",
		Topology: "fixed",
		DryRun:   true,
		LastPass: models.PassStatus{Outcome: models.OutcomeDryRun, Backoff: "2m0s"},
	}}

	tests := []struct {
		name      string
		redis     *pinger
		wantRedis string
	}{
		{name: "no redis", wantRedis: "disabled"},
		{name: "redis up", redis: &pinger{}, wantRedis: "up"},
		{name: "redis down", redis: &pinger{err: errors.New("refused")}, wantRedis: "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(status, nil, nil, nil)
			if tt.redis != nil {
				router = NewRouter(status, *tt.redis, nil, nil)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var got models.StatusResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "rg/cs", got.Cluster)
			assert.Equal(t, "fixed", got.Topology)
			assert.True(t, got.DryRun)
			assert.Equal(t, models.OutcomeDryRun, got.LastPass.Outcome)
			assert.Equal(t, "2m0s", got.LastPass.Backoff)
			assert.Equal(t, tt.wantRedis, got.Redis)
			assert.True(t, got.Leader)
		})
	}
}

type follower struct{}

func (follower) IsLeader() bool { return false }

func TestStatusReportsFollower(t *testing.T) {
	router := NewRouter(staticStatus{}, nil, follower{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"leader":false`)
}
