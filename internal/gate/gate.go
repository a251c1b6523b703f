// Package gate implements the speech activity gate: it classifies fixed-length
// frames with an injected [vad.Classifier], extends speech decisions with a
// hangover, attenuates everything outside speech and reports the resulting
// speech segments.
//
// The gate never changes buffer length or timing; non-speech is squelched, not
// removed.
package gate

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// Config holds the gate parameters.
type Config struct {
	// SampleRate of the buffers the gate accepts. One of
	// [vad.SupportedSampleRates].
	SampleRate int

	// FrameMs is the classification frame length. One of
	// [vad.SupportedFrameDurations].
	FrameMs int

	// Mode is the aggressiveness the classifier was configured with. [New]
	// rejects a classifier implementing [vad.ModeReporter] whose mode differs.
	Mode vad.Mode

	// HangoverMs extends every speech decision by this much on both sides.
	HangoverMs int

	// AttenDB is the attenuation applied to non-speech samples.
	AttenDB float64
}

// Validate reports whether cfg describes a supported frame/rate combination.
func (cfg Config) Validate() error {
	if !slices.Contains(vad.SupportedFrameDurations, cfg.FrameMs) {
		return fmt.Errorf("%w: gate: frame duration %d ms not in %v", audio.ErrInvalidConfig, cfg.FrameMs, vad.SupportedFrameDurations)
	}
	if !slices.Contains(vad.SupportedSampleRates, cfg.SampleRate) {
		return fmt.Errorf("%w: gate: sample rate %d Hz not in %v", audio.ErrInvalidConfig, cfg.SampleRate, vad.SupportedSampleRates)
	}
	if !cfg.Mode.IsValid() {
		return fmt.Errorf("%w: gate: mode %d out of range [0, 3]", audio.ErrInvalidConfig, int(cfg.Mode))
	}
	if cfg.HangoverMs < 0 {
		return fmt.Errorf("%w: gate: hangover %d ms must not be negative", audio.ErrInvalidConfig, cfg.HangoverMs)
	}
	if cfg.AttenDB < 0 || math.IsNaN(cfg.AttenDB) {
		return fmt.Errorf("%w: gate: attenuation %.1f dB must not be negative", audio.ErrInvalidConfig, cfg.AttenDB)
	}
	return nil
}

// FrameLength returns the number of samples per classification frame.
func (cfg Config) FrameLength() int {
	return int(math.Round(float64(cfg.SampleRate) * float64(cfg.FrameMs) / 1000))
}

// HangoverFrames returns the hangover expressed in whole frames.
func (cfg Config) HangoverFrames() int {
	return int(math.RoundToEven(float64(cfg.HangoverMs) / float64(cfg.FrameMs)))
}

// Segment is one maximal run of speech frames, in seconds from buffer start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the output of [Gate.Apply].
type Result struct {
	// Audio is the gated buffer, same length and rate as the input.
	Audio audio.Buffer

	// Segments lists the speech runs in ascending start order.
	Segments []Segment

	// Flags holds the smoothed per-frame decisions.
	Flags Flags
}

// Gate classifies and squelches buffers. It is safe to reuse across buffers;
// concurrent use is safe only if the classifier is.
type Gate struct {
	cfg        Config
	classifier vad.Classifier
}

// New validates cfg and returns a Gate that consults classifier.
func New(cfg Config, classifier vad.Classifier) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: gate: classifier is required", audio.ErrInvalidConfig)
	}
	if r, ok := classifier.(vad.ModeReporter); ok && r.Mode() != cfg.Mode {
		return nil, fmt.Errorf("%w: gate: classifier runs in mode %s but mode %s is configured", audio.ErrInvalidConfig, r.Mode(), cfg.Mode)
	}
	return &Gate{cfg: cfg, classifier: classifier}, nil
}

// Config returns the gate's configuration.
func (g *Gate) Config() Config { return g.cfg }

// Classify runs the classifier over buf and applies the hangover. It returns
// the smoothed flags, one per frame (the final frame zero-padded).
func (g *Gate) Classify(buf audio.Buffer) (Flags, error) {
	if buf.SampleRate != g.cfg.SampleRate {
		return nil, fmt.Errorf("%w: gate: buffer rate %d Hz does not match configured %d Hz", audio.ErrInvalidConfig, buf.SampleRate, g.cfg.SampleRate)
	}
	frameLen := g.cfg.FrameLength()
	numFrames := (len(buf.Samples) + frameLen - 1) / frameLen

	padded := make([]float64, numFrames*frameLen)
	copy(padded, buf.Samples)
	pcm := audio.Quantize16(padded)

	raw := make(Flags, numFrames)
	var frame []byte
	for i := range numFrames {
		frame = audio.EncodePCM16(frame, pcm[i*frameLen:(i+1)*frameLen])
		speech, err := g.classifier.IsSpeech(frame, g.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("gate: classify frame %d: %w", i, err)
		}
		raw[i] = speech
	}
	return Dilate(raw, g.cfg.HangoverFrames()), nil
}

// Apply classifies buf, attenuates non-speech samples and extracts segments.
// A buffer without speech is a valid result: no segments and a fully
// attenuated output.
func (g *Gate) Apply(buf audio.Buffer) (Result, error) {
	flags, err := g.Classify(buf)
	if err != nil {
		return Result{}, err
	}

	mask := flags.Mask(g.cfg.FrameLength(), len(buf.Samples))
	atten := math.Pow(10, -g.cfg.AttenDB/20)
	out := make([]float64, len(buf.Samples))
	for i, s := range buf.Samples {
		if mask[i] {
			out[i] = s
		} else {
			out[i] = s * atten
		}
	}

	segments := Segments(flags, g.cfg.FrameMs)
	if len(segments) == 0 {
		slog.Debug("gate: no speech frames found", "frames", len(flags))
	}
	return Result{
		Audio:    audio.Buffer{Samples: out, SampleRate: buf.SampleRate},
		Segments: segments,
		Flags:    flags,
	}, nil
}
