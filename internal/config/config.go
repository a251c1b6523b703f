// Package config provides the configuration schema, loader, and classifier
// registry for the radioclean conditioning pipeline.
package config

import (
	"github.com/MrWong99/radioclean/internal/gate"
	"github.com/MrWong99/radioclean/internal/loudness"
	"github.com/MrWong99/radioclean/internal/metrics"
	"github.com/MrWong99/radioclean/pkg/dsp/filter"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Workers bounds how many files are processed concurrently.
	Workers int `yaml:"workers"`

	// WorkingRate is the rate inputs are decoded to before filtering, gating
	// and normalisation.
	WorkingRate int `yaml:"working_rate"`

	// OutputRate is the rate of the written output.
	OutputRate int `yaml:"output_rate"`

	// OutputDir receives the cleaned audio and reports. Empty means next to
	// each input file.
	OutputDir string `yaml:"output_dir"`

	Filter     FilterConfig    `yaml:"filter"`
	Gate       GateConfig      `yaml:"gate"`
	Loudness   LoudnessConfig  `yaml:"loudness"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Classifier ClassifierEntry `yaml:"classifier"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

// FilterConfig configures the speech-band filter.
type FilterConfig struct {
	Enabled bool `yaml:"enabled"`

	// Family is "iir" or "fir".
	Family filter.Family `yaml:"family"`

	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`

	// Order is the Butterworth prototype order (IIR only).
	Order int `yaml:"order"`

	// Taps is the kernel length (FIR only). Must be odd.
	Taps int `yaml:"taps"`

	// Window tapers the FIR kernel: hamming, blackman, blackman-harris or
	// nuttall.
	Window filter.Window `yaml:"window"`

	// Equalize corrects the passband gain to unity.
	Equalize bool `yaml:"equalize"`
}

// Spec converts the section into a filter design request.
func (f FilterConfig) Spec() filter.Spec {
	return filter.Spec{
		Family:   f.Family,
		LowHz:    f.LowHz,
		HighHz:   f.HighHz,
		Order:    f.Order,
		Taps:     f.Taps,
		Window:   f.Window,
		Equalize: f.Equalize,
	}
}

// GateConfig configures the speech activity gate.
type GateConfig struct {
	Enabled    bool     `yaml:"enabled"`
	FrameMs    int      `yaml:"frame_ms"`
	Mode       vad.Mode `yaml:"mode"`
	HangoverMs int      `yaml:"hangover_ms"`
	AttenDB    float64  `yaml:"atten_db"`
}

// At returns the gate configuration for buffers at sampleRate.
func (g GateConfig) At(sampleRate int) gate.Config {
	return gate.Config{
		SampleRate: sampleRate,
		FrameMs:    g.FrameMs,
		Mode:       g.Mode,
		HangoverMs: g.HangoverMs,
		AttenDB:    g.AttenDB,
	}
}

// LoudnessConfig configures the loudness normaliser.
type LoudnessConfig struct {
	Enabled    bool    `yaml:"enabled"`
	TargetDBFS float64 `yaml:"target_dbfs"`
	TopDB      float64 `yaml:"top_db"`
}

// Normalizer returns the normaliser parameters.
func (l LoudnessConfig) Normalizer() loudness.Config {
	return loudness.Config{TargetDBFS: l.TargetDBFS, TopDB: l.TopDB}
}

// MetricsConfig configures the before/after quality report.
type MetricsConfig struct {
	Enabled bool     `yaml:"enabled"`
	FrameMs int      `yaml:"frame_ms"`
	Mode    vad.Mode `yaml:"mode"`
}

// Engine returns the metrics engine parameters.
func (m MetricsConfig) Engine() metrics.Config {
	return metrics.Config{FrameMs: m.FrameMs, Mode: m.Mode}
}

// ClassifierEntry selects the speech/non-speech classifier implementation.
// The Name field is used to look up the constructor in the [Registry].
type ClassifierEntry struct {
	// Name selects the registered classifier (e.g., "energy").
	Name string `yaml:"name"`

	// Options holds classifier-specific configuration values.
	Options map[string]any `yaml:"options"`
}

// TelemetryConfig controls metric export.
type TelemetryConfig struct {
	// MetricsAddr is the listen address of the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is given: IIR
// 300-3000 Hz band-pass, 30 ms gate frames with 300 ms hangover and 20 dB
// attenuation, -20 dBFS target, 16 kHz working and output rate.
func Default() *Config {
	return &Config{
		LogLevel:    LogInfo,
		Workers:     4,
		WorkingRate: 16000,
		OutputRate:  16000,
		Filter: FilterConfig{
			Enabled:  true,
			Family:   filter.FamilyIIR,
			LowHz:    300,
			HighHz:   3000,
			Order:    6,
			Taps:     101,
			Window:   filter.WindowHamming,
			Equalize: true,
		},
		Gate: GateConfig{
			Enabled:    true,
			FrameMs:    30,
			Mode:       vad.ModeAggressive,
			HangoverMs: 300,
			AttenDB:    20,
		},
		Loudness: LoudnessConfig{
			Enabled:    true,
			TargetDBFS: -20,
			TopDB:      25,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			FrameMs: 30,
			Mode:    vad.ModeAggressive,
		},
		Classifier: ClassifierEntry{Name: "energy"},
	}
}
