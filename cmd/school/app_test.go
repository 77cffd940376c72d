package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/config"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SCHOOL_DATABASE_PATH", filepath.Join(t.TempDir(), "school.db"))
	c, err := config.Load("")
	require.NoError(t, err)
	return c
}

func TestBuildAppContext_SQLite(t *testing.T) {
	c := sqliteConfig(t)

	a, err := buildAppContext(context.Background(), c)
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Nil(t, a.otelProvider, "telemetry is off without an endpoint")
	assert.Nil(t, a.cache)
	assert.Nil(t, a.events)

	result, err := a.bootstrapper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bootstrap.StatusOK, result.Status)
	assert.Equal(t, bootstrap.StatusSkipped, result.Phases[bootstrap.PhaseCache].Status)
	assert.Equal(t, bootstrap.StatusSkipped, result.Phases[bootstrap.PhaseEvents].Status)

	w := httptest.NewRecorder()
	a.router.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildAppContext_OptionalClientsWired(t *testing.T) {
	c := sqliteConfig(t)
	c.Cache.Enabled = true
	c.Events.Enabled = true

	a, err := buildAppContext(context.Background(), c)
	require.NoError(t, err)
	defer a.Close(context.Background())

	require.NotNil(t, a.cache)
	require.NotNil(t, a.events)
}

func TestBuildAppContext_BadDatabase(t *testing.T) {
	c := sqliteConfig(t)
	c.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "school.db")

	_, err := buildAppContext(context.Background(), c)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestBootstrapCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "school.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"database:\n  driver: sqlite\n  path: "+filepath.Join(dir, "school.db")+"\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"bootstrap", "--config", cfgPath, "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var result bootstrap.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, bootstrap.StatusOK, result.Status)
	assert.Equal(t, bootstrap.StatusOK, result.Phases[bootstrap.PhaseDatabase].Status)
}
