// Command observatory builds the dashboard JSON documents of a pipeline file:
// one document per dataset, read from CSV, JSON, XLSX, HTML or SQL sources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"hermannm.dev/devlog"

	"observatory/internal/config"
	"observatory/internal/metrics"
	"observatory/internal/metrics/datadog"
	"observatory/internal/runner"

	// register every source reader and sql driver.
	_ "observatory/internal/source/all"
)

// backendCloser is a metrics backend owned by the command.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// appDeps are the external seams of runMain.
type appDeps struct {
	ReadEnv        func() (config.Env, error)
	BackendFactory func(ctx context.Context, jobName string, tags []string) (backendCloser, error)
	Now            func() time.Time
	NewRunID       func() string
}

type cliConfig struct {
	ConfigPath     string
	Datasets       []string
	Validate       bool
	Watch          bool
	MetricsBackend string
	EnvFile        string
	Verbose        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, appDeps{
		BackendFactory: func(ctx context.Context, jobName string, tags []string) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{JobName: jobName, Tags: tags})
		},
	})
	stop()
	os.Exit(code)
}

// runMain executes the command and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: invalid or unreadable pipeline, or at least one dataset failed.
//   - 2: usage error.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, d appDeps) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	cfg, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if d.ReadEnv == nil {
		d.ReadEnv = func() (config.Env, error) { return config.ReadEnv(cfg.EnvFile) }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewRunID == nil {
		d.NewRunID = func() string { return uuid.NewString() }
	}

	env, err := d.ReadEnv()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	level := env.SlogLevel()
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slogger := slog.New(devlog.NewHandler(stderr, &devlog.Options{Level: level})).
		With("run_id", d.NewRunID(), "env", env.Environment)
	logger := printfLogger{log: slogger}

	p, err := config.Load(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if env.OutputRoot != "" {
		p.Output.Dir = env.OutputRoot
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfg.ConfigPath)
		return 1
	}
	if cfg.Validate {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", cfg.ConfigPath)
		return 0
	}

	closeMetrics := setupMetrics(ctx, cfg, env, p.Job, d, slogger)
	defer closeMetrics()

	r := &runner.Runner{Logger: logger, Now: d.Now}

	if cfg.Watch {
		slogger.Info("watching pipeline sources", "config", cfg.ConfigPath)
		if err := r.Watch(ctx, p, cfg.Datasets...); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return 0
	}

	report, err := r.Run(ctx, p, cfg.Datasets...)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	for _, ds := range report.Datasets {
		if ds.Status == runner.StatusOK {
			fmt.Fprintf(stdout, "ok\t%s\t%s\trows=%d\n", ds.Name, ds.Output, ds.Diagnostics.RowsKept)
		} else {
			fmt.Fprintf(stdout, "%s\t%s\n", ds.Status, ds.Name)
			fmt.Fprintf(stderr, "dataset=%s failed: %v\n", ds.Name, ds.Err)
		}
	}
	if report.Err() != nil {
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	var cfg cliConfig
	var datasets string

	fs := flag.NewFlagSet("observatory", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.ConfigPath, "config", "", "pipeline file (.json, .yaml or .yml)")
	fs.StringVar(&datasets, "dataset", "", "comma-separated dataset names to run (default all)")
	fs.BoolVar(&cfg.Validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&cfg.Watch, "watch", false, "re-run datasets when their source files change")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", "", "metrics backend: none or datadog (overrides METRICS_BACKEND)")
	fs.StringVar(&cfg.EnvFile, "env-file", ".env", "optional dotenv file")
	fs.BoolVar(&cfg.Verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	if fs.NArg() > 0 {
		return cliConfig{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if cfg.ConfigPath == "" {
		return cliConfig{}, errors.New("missing required -config")
	}
	if cfg.Validate && cfg.Watch {
		return cliConfig{}, errors.New("-validate and -watch are mutually exclusive")
	}
	for _, name := range strings.Split(datasets, ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.Datasets = append(cfg.Datasets, name)
		}
	}
	return cfg, nil
}

// setupMetrics installs the selected backend and returns its shutdown func.
// A backend that fails to start is logged and metrics stay disabled.
func setupMetrics(ctx context.Context, cfg cliConfig, env config.Env, job string, d appDeps, log *slog.Logger) func() {
	name := cfg.MetricsBackend
	if name == "" {
		name = env.MetricsBackend
	}

	switch name {
	case "", "none":
		log.Debug("metrics disabled")
		return func() {}
	case "datadog":
		if d.BackendFactory == nil {
			log.Warn("no datadog backend factory; metrics disabled")
			return func() {}
		}
		if job == "" {
			job = "observatory"
		}
		tags := datadog.ParseTagsCSV(env.MetricsTags)
		b, err := d.BackendFactory(ctx, job, tags)
		if err != nil {
			log.Warn("failed to start datadog metrics; metrics disabled", "error", err)
			return func() {}
		}
		log.Info("metrics enabled", "backend", name, "job", job, "tags", tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Warn("datadog metrics close failed", "error", err)
			}
			metrics.SetBackend(nil)
		}
	default:
		log.Warn("unknown metrics backend; metrics disabled", "backend", name)
		return func() {}
	}
}

// printfLogger adapts slog to the runner's Printf seam. A leading
// "level=warn" or "level=error" token selects the slog level.
type printfLogger struct {
	log *slog.Logger
}

func (l printfLogger) Printf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	level := slog.LevelInfo
	switch {
	case strings.HasPrefix(msg, "level=warn "):
		level, msg = slog.LevelWarn, strings.TrimPrefix(msg, "level=warn ")
	case strings.HasPrefix(msg, "level=error "):
		level, msg = slog.LevelError, strings.TrimPrefix(msg, "level=error ")
	}
	l.log.Log(context.Background(), level, msg)
}
