// Package energy provides a frame-energy speech classifier that satisfies
// [vad.Classifier] without an external acoustic model.
//
// A frame is classified as speech when its RMS level, in dBFS, reaches the
// threshold selected by the aggressiveness mode. The classifier holds no
// per-stream state and is safe for concurrent use.
package energy

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// modeThresholds maps each aggressiveness mode to its speech threshold in dBFS.
var modeThresholds = [...]float64{
	vad.ModeQuality:        -55,
	vad.ModeLowBitrate:     -50,
	vad.ModeAggressive:     -45,
	vad.ModeVeryAggressive: -40,
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithThreshold overrides the mode's speech threshold, in dBFS.
func WithThreshold(dbfs float64) Option {
	return func(c *Classifier) {
		c.thresholdDBFS = dbfs
	}
}

// Classifier is an energy-threshold [vad.Classifier].
type Classifier struct {
	mode          vad.Mode
	thresholdDBFS float64
}

// New returns a Classifier for the given aggressiveness mode.
func New(mode vad.Mode, opts ...Option) (*Classifier, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: energy: mode %d out of range [0, 3]", audio.ErrInvalidConfig, int(mode))
	}
	c := &Classifier{
		mode:          mode,
		thresholdDBFS: modeThresholds[mode],
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mode returns the aggressiveness the classifier was built with.
func (c *Classifier) Mode() vad.Mode { return c.mode }

// Threshold returns the effective speech threshold in dBFS.
func (c *Classifier) Threshold() float64 { return c.thresholdDBFS }

// IsSpeech reports whether the frame's RMS level reaches the threshold.
func (c *Classifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if !slices.Contains(vad.SupportedSampleRates, sampleRate) {
		return false, fmt.Errorf("energy: unsupported sample rate %d", sampleRate)
	}
	samples := len(frame) / 2
	if len(frame)%2 != 0 || !validFrameLength(samples, sampleRate) {
		return false, fmt.Errorf("energy: frame of %d bytes is not 10, 20 or 30 ms at %d Hz", len(frame), sampleRate)
	}

	x := audio.DecodePCM16(frame)
	rms := math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	if rms <= 0 {
		return false, nil
	}
	return 20*math.Log10(rms) >= c.thresholdDBFS, nil
}

func validFrameLength(samples, sampleRate int) bool {
	for _, ms := range vad.SupportedFrameDurations {
		if samples == sampleRate*ms/1000 {
			return true
		}
	}
	return false
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
