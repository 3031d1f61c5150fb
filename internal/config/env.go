package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"hermannm.dev/wrap"
)

// Env is the process environment the CLI reads. Flags take precedence over
// every value here.
type Env struct {
	Environment    string `env:"ENV" envDefault:"local"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"none"`
	MetricsTags    string `env:"METRICS_TAGS"`

	// OutputRoot replaces output.dir of every pipeline when set.
	OutputRoot string `env:"OBSERVATORY_OUTPUT_ROOT"`
}

// ReadEnv loads the given .env files (missing files are skipped) and parses
// the environment. Variables already set in the process are not overridden.
func ReadEnv(dotenvFiles ...string) (Env, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, wrap.Errorf(err, "failed to load env file '%s'", f)
		}
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, wrap.Error(err, "failed to parse environment")
	}
	return e, nil
}

// ParseEnv parses an explicit environment map, for tests.
func ParseEnv(vars map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Env{}, wrap.Error(err, "failed to parse environment")
	}
	return e, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (e Env) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(e.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
