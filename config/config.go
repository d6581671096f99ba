// Package config loads the settings of every component from a YAML file and
// TRIAL_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/AnatoleLucet/trial/arbiter"
	"github.com/AnatoleLucet/trial/marker"
	"github.com/AnatoleLucet/trial/presenter"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRIAL_"

type EngineConfig struct {
	// debug, info, warn or error
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

type MarkerConfig struct {
	// marker log file, none when empty
	LogPath string `yaml:"log_path" env:"LOG_PATH"`
	// queue length of the asynchronous log writer, synchronous when zero
	AsyncBuffer int `yaml:"async_buffer" env:"ASYNC_BUFFER"`
}

type Config struct {
	Engine    EngineConfig     `yaml:"engine" envPrefix:"ENGINE_"`
	Presenter presenter.Config `yaml:"presenter" envPrefix:"PRESENTER_"`
	Arbiter   arbiter.Config   `yaml:"arbiter" envPrefix:"ARBITER_"`
	Markers   MarkerConfig     `yaml:"markers" envPrefix:"MARKERS_"`
}

func Default() Config {
	return Config{
		Engine:    EngineConfig{LogLevel: "info"},
		Presenter: presenter.DefaultConfig(),
		Arbiter:   arbiter.DefaultConfig(),
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, then applies the environment.
// Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if _, err := c.Engine.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Presenter.LockDuration < 0 || c.Presenter.ClearAfter < 0 {
		errs = append(errs, errors.New("presenter durations must not be negative"))
	}
	if c.Markers.AsyncBuffer < 0 {
		errs = append(errs, errors.New("markers.async_buffer must not be negative"))
	}
	if err := c.Arbiter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("arbiter: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c EngineConfig) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("engine.log_level: %w", err)
	}
	return level, nil
}

// Logger builds a text logger writing to w at the configured level.
func (c EngineConfig) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Sinks builds the marker sinks the configuration asks for. onError receives
// delivery failures of asynchronous sinks.
func (c MarkerConfig) Sinks(onError func(error)) []marker.Sink {
	if c.LogPath == "" {
		return nil
	}

	var sink marker.Sink = marker.NewFileSink(c.LogPath)
	if c.AsyncBuffer > 0 {
		sink = marker.Async(sink, c.AsyncBuffer, onError)
	}
	return []marker.Sink{sink}
}
