package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/validator"
)

type Config struct {
	LogLevel           string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	HTTPAddr           string        `yaml:"http-addr" env:"HTTP_ADDR" env-default:":8080" validate:"required"`
	SessionIdleTimeout time.Duration `yaml:"session-idle-timeout" env:"SESSION_IDLE_TIMEOUT" env-default:"30m" validate:"gt=0"`
	SweepInterval      time.Duration `yaml:"sweep-interval" env:"SWEEP_INTERVAL" env-default:"1m" validate:"gt=0"`
	Telemetry          Telemetry     `yaml:"telemetry"`
}

type Telemetry struct {
	// Endpoint is the OTLP gRPC collector address; empty disables export.
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	ServiceName string `yaml:"service-name" env:"OTEL_SERVICE_NAME" env-default:"tic-tac-toe" validate:"required"`
}

// Load reads the yaml file at path, then the environment. A missing file is
// not an error: defaults and environment variables apply.
func Load(path string) (*Config, error) {
	conf := &Config{}

	var err error
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		err = cleanenv.ReadEnv(conf)
	} else {
		err = cleanenv.ReadConfig(path, conf)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if err := validator.Struct(conf); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return conf, nil
}

// MustLoad - like Load but panics on error.
func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		panic(err)
	}
	return conf
}

// Level maps LogLevel to a slog level.
func (that *Config) Level() slog.Level {
	switch that.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TelemetryEnabled reports whether an OTLP endpoint is configured.
func (that *Config) TelemetryEnabled() bool {
	return that.Telemetry.Endpoint != ""
}
