package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/radioclean/internal/config"
	"github.com/MrWong99/radioclean/internal/health"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
	"github.com/MrWong99/radioclean/pkg/provider/vad/energy"
)

func TestBuildClassifiers_ModesFollowConfig(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinClassifiers(reg)

	cfg := config.Default()
	cfg.Gate.Mode = vad.ModeQuality
	cfg.Metrics.Mode = vad.ModeVeryAggressive
	cfg.Classifier.Options = map[string]any{"threshold_dbfs": -50}

	cls, err := buildClassifiers(cfg, reg)
	if err != nil {
		t.Fatalf("buildClassifiers: %v", err)
	}
	g, ok := cls.Gate.(*energy.Classifier)
	if !ok {
		t.Fatalf("gate classifier is %T, want *energy.Classifier", cls.Gate)
	}
	m, ok := cls.Metrics.(*energy.Classifier)
	if !ok {
		t.Fatalf("metrics classifier is %T, want *energy.Classifier", cls.Metrics)
	}
	if g.Mode() != vad.ModeQuality || m.Mode() != vad.ModeVeryAggressive {
		t.Errorf("modes = %v/%v, want %v/%v", g.Mode(), m.Mode(), vad.ModeQuality, vad.ModeVeryAggressive)
	}
	if g.Threshold() != -50 {
		t.Errorf("threshold = %v, want -50", g.Threshold())
	}
}

func TestBuildClassifiers_DisabledStagesSkipped(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinClassifiers(reg)

	cfg := config.Default()
	cfg.Gate.Enabled = false
	cfg.Metrics.Enabled = false
	cls, err := buildClassifiers(cfg, reg)
	if err != nil {
		t.Fatalf("buildClassifiers: %v", err)
	}
	if cls.Gate != nil || cls.Metrics != nil {
		t.Errorf("expected no classifiers, got %+v", cls)
	}
}

func TestBuildClassifiers_Errors(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinClassifiers(reg)

	cfg := config.Default()
	cfg.Classifier = config.ClassifierEntry{Name: "webrtc"}
	if _, err := buildClassifiers(cfg, reg); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unknown name: expected ErrProviderNotRegistered, got %v", err)
	}

	cfg = config.Default()
	cfg.Classifier.Options = map[string]any{"threshold_dbfs": "loud"}
	if _, err := buildClassifiers(cfg, reg); err == nil {
		t.Error("expected error for non-numeric threshold")
	}
}

func TestLoadConfig_DefaultsWhenNoPath(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.WorkingRate != config.Default().WorkingRate {
		t.Errorf("WorkingRate = %d, want default", cfg.WorkingRate)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level config.LogLevel
		want  slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		l := newLogger(tc.level)
		if !l.Enabled(t.Context(), tc.want) {
			t.Errorf("%q: level %v disabled", tc.level, tc.want)
		}
		if tc.want > slog.LevelDebug && l.Enabled(t.Context(), tc.want-4) {
			t.Errorf("%q: level below %v enabled", tc.level, tc.want)
		}
	}
}

func TestTelemetryMux_Routes(t *testing.T) {
	var p health.Progress
	p.Start("run", 2)
	mux := telemetryMux(&p)
	for _, path := range []string{"/metrics", "/healthz", "/progress"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
