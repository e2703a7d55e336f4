package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveReadiness(t *testing.T, h *Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func up(context.Context) error { return nil }

func down(msg string) Checker {
	return func(context.Context) error { return fmt.Errorf("%s", msg) }
}

func TestLiveness_AlwaysUp(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	NewHandler().LivenessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestReadiness_AllDependenciesUp(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", up)
	h.Register("redis", up)

	rec, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusUp, resp.Checks["postgres"].Status)
	assert.Equal(t, StatusUp, resp.Checks["redis"].Status)
}

func TestReadiness_CriticalDependencyDown(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", down("connection refused"))
	h.Register("redis", up)

	rec, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Checks["postgres"].Error)
	assert.True(t, resp.Checks["postgres"].Critical, "Register defaults to critical")
}

func TestReadiness_NonCriticalDownIsDegraded(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", up)
	h.RegisterNonCritical("kafka", down("broker unreachable"))
	h.RegisterNonCritical("redis", down("redis down"))

	rec, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusOK, rec.Code, "degraded still reports ready")
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["kafka"].Status)
	assert.False(t, resp.Checks["kafka"].Critical)
}

func TestReadiness_CriticalDownWinsOverDegraded(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down("db down"))
	h.RegisterNonCritical("kafka", down("broker down"))

	rec, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusDown, resp.Status)
}

func TestReadiness_NoCheckersRegistered(t *testing.T) {
	rec, resp := serveReadiness(t, NewHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestRegister_SameNameOverwrites(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", down("old checker"))
	h.Register("postgres", up)

	rec, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Checks["postgres"].Status)
}
