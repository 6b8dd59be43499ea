package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeProbe(t *testing.T, rec *httptest.ResponseRecorder) probeResponse {
	t.Helper()
	var resp probeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeProbe(t, rec).Status)
}

func TestReadyEndpoint_GatedByReadyFlag(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(_ context.Context) error {
		return errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeProbe(t, rec)
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["db"])
}

func TestReadyEndpoint_PassingChecks(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(_ context.Context) error { return nil })
	h.AddReadinessCheck("cache", time.Second, func(_ context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeProbe(t, rec)
	assert.Equal(t, "ok", resp.Checks["db"])
	assert.Equal(t, "ok", resp.Checks["cache"])
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddLivenessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	start := time.Now()
	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(1)(context.Background()))
}
