// Command radioclean conditions speech recordings for narrow-band voice
// channels: band-limit, gate non-speech, normalise loudness, resample, and
// report quality metrics for every input file.
//
// Usage:
//
//	radioclean [-config radioclean.yaml] [-out dir] file.wav [file.mp3 ...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/radioclean/internal/app"
	"github.com/MrWong99/radioclean/internal/config"
	"github.com/MrWong99/radioclean/internal/health"
	"github.com/MrWong99/radioclean/internal/observe"
	"github.com/MrWong99/radioclean/internal/pipeline"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
	"github.com/MrWong99/radioclean/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	outDir := flag.String("out", "", "output directory (overrides output_dir)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: radioclean [flags] file...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "radioclean: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "radioclean: %v\n", err)
		}
		return 1
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("radioclean starting",
		"config", *configPath,
		"files", flag.NArg(),
		"working_rate", cfg.WorkingRate,
		"output_rate", cfg.OutputRate,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	runID := uuid.NewString()
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		Attributes: []attribute.KeyValue{attribute.String("radioclean.run_id", runID)},
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	m := observe.DefaultMetrics()

	// ── Classifiers ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinClassifiers(reg)

	cls, err := buildClassifiers(cfg, reg)
	if err != nil {
		slog.Error("failed to build classifiers", "err", err)
		return 1
	}

	application, err := app.New(cfg, cls, m, app.WithRunID(runID))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Telemetry endpoint (optional) ─────────────────────────────────────────
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(m)(telemetryMux(application.Progress())),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("telemetry server error", "addr", addr, "err", err)
			}
		}()
		defer srv.Close()
		slog.Info("telemetry endpoint listening", "addr", addr)
	}

	if err := application.Run(ctx, flag.Args()); err != nil {
		slog.Error("run finished with errors", "run_id", application.RunID(), "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// telemetryMux serves /metrics, /healthz and /progress.
func telemetryMux(p *health.Progress) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(p).Register(mux)
	return mux
}

// ── Classifier wiring ─────────────────────────────────────────────────────────

// registerBuiltinClassifiers wires the classifier factories that ship with
// radioclean into reg.
func registerBuiltinClassifiers(reg *config.Registry) {
	reg.RegisterClassifier("energy", func(entry config.ClassifierEntry, mode vad.Mode) (vad.Classifier, error) {
		var opts []energy.Option
		threshold, ok, err := entry.FloatOption("threshold_dbfs")
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, energy.WithThreshold(threshold))
		}
		return energy.New(mode, opts...)
	})
}

// buildClassifiers creates one classifier at the gate's aggressiveness and,
// when metrics are enabled, one at the metrics engine's.
func buildClassifiers(cfg *config.Config, reg *config.Registry) (pipeline.Classifiers, error) {
	var cls pipeline.Classifiers
	var err error
	if cfg.Gate.Enabled {
		if cls.Gate, err = reg.CreateClassifier(cfg.Classifier, cfg.Gate.Mode); err != nil {
			return cls, fmt.Errorf("gate classifier: %w", err)
		}
	}
	if cfg.Metrics.Enabled {
		if cls.Metrics, err = reg.CreateClassifier(cfg.Classifier, cfg.Metrics.Mode); err != nil {
			return cls, fmt.Errorf("metrics classifier: %w", err)
		}
	}
	slog.Debug("classifiers ready", "name", cfg.Classifier.Name, "available", reg.Classifiers())
	return cls, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
