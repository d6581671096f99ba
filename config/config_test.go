package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/trial/marker"
)

func TestParse(t *testing.T) {
	t.Run("empty input yields the defaults", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		cfg, err := Parse([]byte(`
engine:
  log_level: debug
presenter:
  lock_duration: 2s
  clear_after: 1500ms
arbiter:
  grace_window: 250ms
  streak_threshold: 5
  high_cost: [touch, pedal]
  markers:
    hit: 42
markers:
  log_path: /tmp/markers.jsonl
  async_buffer: 64
`))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Engine.LogLevel)
		assert.Equal(t, 2*time.Second, cfg.Presenter.LockDuration)
		assert.Equal(t, 1500*time.Millisecond, cfg.Presenter.ClearAfter)
		assert.Equal(t, 250*time.Millisecond, cfg.Arbiter.GraceWindow)
		assert.Equal(t, 5, cfg.Arbiter.StreakThreshold)
		assert.Equal(t, []string{"touch", "pedal"}, cfg.Arbiter.HighCost)
		assert.Equal(t, 42, cfg.Arbiter.Markers.Hit)
		assert.Equal(t, 10, cfg.Arbiter.Markers.Opened, "untouched keys keep their default")
		assert.Equal(t, 64, cfg.Markers.AsyncBuffer)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := Parse([]byte("arbiter:\n  grace: 1s\n"))
		assert.ErrorContains(t, err, "grace")
	})

	t.Run("environment wins over yaml", func(t *testing.T) {
		t.Setenv("TRIAL_PRESENTER_LOCK_DURATION", "3s")
		t.Setenv("TRIAL_ARBITER_HIGH_COST", "touch,voice")
		t.Setenv("TRIAL_ARBITER_MARKER_MISS", "99")
		t.Setenv("TRIAL_ENGINE_LOG_LEVEL", "warn")

		cfg, err := Parse([]byte("presenter:\n  lock_duration: 1s\n"))
		require.NoError(t, err)

		assert.Equal(t, 3*time.Second, cfg.Presenter.LockDuration)
		assert.Equal(t, []string{"touch", "voice"}, cfg.Arbiter.HighCost)
		assert.Equal(t, 99, cfg.Arbiter.Markers.Miss)
		assert.Equal(t, "warn", cfg.Engine.LogLevel)
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		_, err := Parse([]byte(`
engine:
  log_level: loud
presenter:
  lock_duration: -1s
arbiter:
  grace_window: 0s
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "log_level")
		assert.ErrorContains(t, err, "presenter durations")
		assert.ErrorContains(t, err, "grace_window")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("engine: [unclosed"))
		assert.ErrorContains(t, err, "parse yaml")
	})
}

func TestLoad(t *testing.T) {
	t.Run("no path", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trial.yaml")
		require.NoError(t, os.WriteFile(path, []byte("arbiter:\n  miss_penalty: -2\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, -2.0, cfg.Arbiter.MissPenalty)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestEngineConfig(t *testing.T) {
	level, err := EngineConfig{LogLevel: "debug"}.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = EngineConfig{}.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	var buf bytes.Buffer
	logger := EngineConfig{LogLevel: "warn"}.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestMarkerConfig(t *testing.T) {
	assert.Empty(t, MarkerConfig{}.Sinks(nil))

	path := filepath.Join(t.TempDir(), "markers.jsonl")
	sinks := MarkerConfig{LogPath: path, AsyncBuffer: 8}.Sinks(nil)
	require.Len(t, sinks, 1)

	e := marker.NewEmitter(nil, nil, sinks...)
	require.NoError(t, e.Init())
	e.Emit(marker.Int(5))
	require.NoError(t, e.Shutdown())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"5"`)
}
