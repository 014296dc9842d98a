package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthyPinger() Pinger {
	return pingerFunc(func(context.Context) error { return nil })
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-ClubSphere-Env"))
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), healthyPinger(), healthyPinger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	failing := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), healthyPinger(), failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, string(pkgerrors.CodeDependency), decodeError(t, rec).Code)
}
