package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/radioclean/pkg/dsp/filter"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// ValidClassifierNames lists the classifier names shipped with radioclean.
// Used by [Validate] to warn about unrecognised names.
var ValidClassifierNames = []string{"energy"}

// maxFIRTaps bounds the FIR kernel length.
const maxFIRTaps = 4095

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Keys absent from the document keep their defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued scalar settings of a programmatically built
// cfg from [Default]. Enabled flags, Equalize and loudness.target_dbfs (for
// which 0 dBFS is a valid target) are left as they are.
func ApplyDefaults(cfg *Config) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WorkingRate == 0 {
		cfg.WorkingRate = def.WorkingRate
	}
	if cfg.OutputRate == 0 {
		cfg.OutputRate = def.OutputRate
	}
	if cfg.Filter.Family == "" {
		cfg.Filter.Family = def.Filter.Family
	}
	if cfg.Filter.LowHz == 0 {
		cfg.Filter.LowHz = def.Filter.LowHz
	}
	if cfg.Filter.HighHz == 0 {
		cfg.Filter.HighHz = def.Filter.HighHz
	}
	if cfg.Filter.Order == 0 {
		cfg.Filter.Order = def.Filter.Order
	}
	if cfg.Filter.Taps == 0 {
		cfg.Filter.Taps = def.Filter.Taps
	}
	if cfg.Filter.Window == "" {
		cfg.Filter.Window = def.Filter.Window
	}
	if cfg.Gate.FrameMs == 0 {
		cfg.Gate.FrameMs = def.Gate.FrameMs
	}
	if cfg.Loudness.TopDB == 0 {
		cfg.Loudness.TopDB = def.Loudness.TopDB
	}
	if cfg.Metrics.FrameMs == 0 {
		cfg.Metrics.FrameMs = def.Metrics.FrameMs
	}
	if cfg.Classifier.Name == "" {
		cfg.Classifier.Name = def.Classifier.Name
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers))
	}
	if cfg.WorkingRate <= 0 {
		errs = append(errs, fmt.Errorf("working_rate must be positive, got %d", cfg.WorkingRate))
	}
	if cfg.OutputRate <= 0 {
		errs = append(errs, fmt.Errorf("output_rate must be positive, got %d", cfg.OutputRate))
	}

	// Filter
	if f := cfg.Filter; f.Enabled {
		if !f.Family.IsValid() {
			errs = append(errs, fmt.Errorf("filter.family %q is invalid; valid values: iir, fir", f.Family))
		}
		if f.LowHz <= 0 || f.LowHz >= f.HighHz {
			errs = append(errs, fmt.Errorf("filter band [%.1f, %.1f] Hz is invalid; need 0 < low_hz < high_hz", f.LowHz, f.HighHz))
		}
		switch f.Family {
		case filter.FamilyIIR:
			if f.Order < 1 {
				errs = append(errs, fmt.Errorf("filter.order must be at least 1, got %d", f.Order))
			}
		case filter.FamilyFIR:
			if f.Taps < 3 || f.Taps%2 == 0 || f.Taps > maxFIRTaps {
				errs = append(errs, fmt.Errorf("filter.taps %d is invalid; need an odd length in [3, %d]", f.Taps, maxFIRTaps))
			}
			if !f.Window.IsValid() {
				errs = append(errs, fmt.Errorf("filter.window %q is invalid; valid values: hamming, blackman, blackman-harris, nuttall", f.Window))
			}
		}
	}

	// Gate
	if g := cfg.Gate; g.Enabled {
		errs = append(errs, validateFrame("gate", g.FrameMs, g.Mode)...)
		if !slices.Contains(vad.SupportedSampleRates, cfg.WorkingRate) {
			errs = append(errs, fmt.Errorf("working_rate %d is not supported by the gate; valid values: %v", cfg.WorkingRate, vad.SupportedSampleRates))
		}
		if g.HangoverMs < 0 {
			errs = append(errs, fmt.Errorf("gate.hangover_ms must not be negative, got %d", g.HangoverMs))
		}
		if g.AttenDB < 0 {
			errs = append(errs, fmt.Errorf("gate.atten_db must not be negative, got %.1f", g.AttenDB))
		}
	}

	// Loudness
	if l := cfg.Loudness; l.Enabled && l.TopDB <= 0 {
		errs = append(errs, fmt.Errorf("loudness.top_db must be positive, got %.1f", l.TopDB))
	}

	// Metrics compare at the output rate.
	if m := cfg.Metrics; m.Enabled {
		errs = append(errs, validateFrame("metrics", m.FrameMs, m.Mode)...)
		if !slices.Contains(vad.SupportedSampleRates, cfg.OutputRate) {
			errs = append(errs, fmt.Errorf("output_rate %d is not supported by the metrics gate; valid values: %v", cfg.OutputRate, vad.SupportedSampleRates))
		}
	}

	// Classifier
	if cfg.Gate.Enabled || cfg.Metrics.Enabled {
		if cfg.Classifier.Name == "" {
			errs = append(errs, errors.New("classifier.name is required when the gate or metrics are enabled"))
		} else if !slices.Contains(ValidClassifierNames, cfg.Classifier.Name) {
			slog.Warn("unknown classifier name; may be a typo or third-party classifier",
				"name", cfg.Classifier.Name,
				"known", ValidClassifierNames,
			)
		}
	}

	return errors.Join(errs...)
}

func validateFrame(section string, frameMs int, mode vad.Mode) []error {
	var errs []error
	if !slices.Contains(vad.SupportedFrameDurations, frameMs) {
		errs = append(errs, fmt.Errorf("%s.frame_ms %d is invalid; valid values: %v", section, frameMs, vad.SupportedFrameDurations))
	}
	if !mode.IsValid() {
		errs = append(errs, fmt.Errorf("%s.mode %d is out of range [0, 3]", section, int(mode)))
	}
	return errs
}
