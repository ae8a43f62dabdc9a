package lifecycle

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

func TestHealthHandlerReportsUnhealthyOnFailingCheck(t *testing.T) {
	mgr := NewManager()
	checker := NewHealthChecker("test", mgr)
	checker.RegisterCheck("db", func() error { return errors.New("connection refused") })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	checker.Handler()(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["db"])
}

func TestHealthHandlerHealthyWithNoChecks(t *testing.T) {
	mgr := NewManager()
	checker := NewHealthChecker("test", mgr)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	checker.Handler()(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessHandlerReflectsManagerReady(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.Register(&mockService{name: "hydrating", readyErr: errors.New("not yet")}))
	checker := NewHealthChecker("test", mgr)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, mgr.Start(context.Background()))
	for _, svc := range mgr.services {
		if ms, ok := svc.(*mockService); ok {
			ms.readyErr = nil
		}
	}

	rec2 := httptest.NewRecorder()
	checker.ReadinessHandler()(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
