// Package loudness implements the loudness normaliser. It estimates the level
// of the active (non-silent) parts of a buffer, applies a single gain to reach
// a target dBFS and then guards the result with a peak limiter.
package loudness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/MrWong99/radioclean/pkg/audio"
)

const (
	// Ceiling is the largest absolute sample value the limiter lets through.
	Ceiling = 0.999

	// rmsFloor is added to every measured RMS.
	rmsFloor = 1e-12

	// minRMS is the level below which the buffer is treated as silence and
	// left at unity gain.
	minRMS = 1e-9

	splitFrame = 2048
	splitHop   = 512
	splitAmin  = 1e-5
)

// Config holds the normaliser parameters.
type Config struct {
	// TargetDBFS is the RMS level the active regions are brought to.
	TargetDBFS float64

	// TopDB is how far below the loudest frame a frame may be and still count
	// as active.
	TopDB float64
}

// DefaultConfig returns a target of -20 dBFS with a 25 dB activity window.
func DefaultConfig() Config {
	return Config{TargetDBFS: -20, TopDB: 25}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.TopDB <= 0 || math.IsNaN(c.TopDB) {
		return fmt.Errorf("%w: loudness: top_db must be positive, got %v", audio.ErrInvalidConfig, c.TopDB)
	}
	if math.IsNaN(c.TargetDBFS) || math.IsInf(c.TargetDBFS, 0) {
		return fmt.Errorf("%w: loudness: target_dbfs must be finite", audio.ErrInvalidConfig)
	}
	return nil
}

// Result is the output of [Normalizer.Apply].
type Result struct {
	// Audio is the normalised, limited buffer.
	Audio audio.Buffer

	// Gain is the loudness-targeting gain only; limiting is not folded in.
	Gain float64

	// Limited reports whether the peak limiter rescaled the output.
	Limited bool

	// Peak is the absolute peak after Gain and before limiting.
	Peak float64
}

// GainDB returns Gain in decibels.
func (r Result) GainDB() float64 { return 20 * math.Log10(r.Gain) }

// Normalizer applies [Config] to buffers. It holds no per-buffer state.
type Normalizer struct {
	cfg Config
}

// New validates cfg and returns a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg}, nil
}

// Apply normalises buf. The input is not modified.
func (n *Normalizer) Apply(buf audio.Buffer) Result {
	x := buf.Samples
	if len(x) == 0 {
		return Result{Audio: audio.Buffer{Samples: []float64{}, SampleRate: buf.SampleRate}, Gain: 1}
	}

	level := RMS(activeSamples(x, n.cfg.TopDB))
	gain := 1.0
	if level >= minRMS {
		gain = math.Pow(10, n.cfg.TargetDBFS/20) / level
	}

	out := buf.Scaled(gain)
	peak := audio.Peak(out.Samples)
	res := Result{Audio: out, Gain: gain, Peak: peak}
	res.Limited = Limit(out.Samples)
	return res
}

// Limit rescales x in place so its absolute peak is at most [Ceiling] and
// reports whether it had to. Samples are clamped after scaling because
// Ceiling/peak*peak can round one ulp above Ceiling.
func Limit(x []float64) bool {
	peak := audio.Peak(x)
	if peak <= Ceiling {
		return false
	}
	floats.Scale(Ceiling/peak, x)
	for i, v := range x {
		x[i] = max(-Ceiling, min(Ceiling, v))
	}
	return true
}

// RMS returns the root-mean-square of x plus a 1e-12 floor. An empty slice
// yields the floor.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return rmsFloor
	}
	return math.Sqrt(floats.Dot(x, x)/float64(len(x))) + rmsFloor
}

// activeSamples concatenates the non-silent intervals of x, falling back to
// all of x when none are found.
func activeSamples(x []float64, topDB float64) []float64 {
	intervals := Split(x, topDB)
	var active []float64
	for _, iv := range intervals {
		active = append(active, x[iv.Start:iv.End]...)
	}
	if len(active) == 0 {
		return x
	}
	return active
}

// Interval is a half-open sample range [Start, End).
type Interval struct {
	Start, End int
}

// Split returns the non-silent intervals of x. Frame levels are measured over
// 2048-sample frames every 512 samples on a centred, zero-padded grid and
// compared with the loudest frame; frames more than topDB below it are
// silent.
func Split(x []float64, topDB float64) []Interval {
	n := len(x)
	if n == 0 {
		return nil
	}
	pad := splitFrame / 2
	padded := make([]float64, n+2*pad)
	copy(padded[pad:], x)

	numFrames := 1 + n/splitHop
	levels := make([]float64, numFrames)
	for t := range levels {
		frame := padded[t*splitHop : t*splitHop+splitFrame]
		levels[t] = math.Sqrt(floats.Dot(frame, frame) / splitFrame)
	}
	ref := 20 * math.Log10(math.Max(splitAmin, floats.Max(levels)))

	var intervals []Interval
	start := -1
	for t, l := range levels {
		loud := 20*math.Log10(math.Max(splitAmin, l))-ref > -topDB
		switch {
		case loud && start < 0:
			start = t
		case !loud && start >= 0:
			intervals = append(intervals, frameInterval(start, t, n))
			start = -1
		}
	}
	if start >= 0 {
		intervals = append(intervals, frameInterval(start, numFrames, n))
	}
	return intervals
}

func frameInterval(startFrame, endFrame, n int) Interval {
	return Interval{
		Start: min(startFrame*splitHop, n),
		End:   min(endFrame*splitHop, n),
	}
}
