// Package audio defines the mono sample buffer that flows through every
// conditioning stage, together with the PCM conversions and sample-rate
// conversion shared by the stages.
package audio

import (
	"errors"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration failure raised by the
// conditioning stages (unsupported frame/rate combination, bad filter edges,
// invalid resampling target). Callers test for it with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// Buffer is a block of mono floating-point audio. Samples are nominally in
// [-1, 1]. Stages never mutate a Buffer they receive; each stage returns a
// new one.
type Buffer struct {
	// Samples holds the audio in time order.
	Samples []float64

	// SampleRate in Hz. Always positive for buffers produced by this module.
	SampleRate int
}

// NewBuffer returns a Buffer that owns a copy of samples.
func NewBuffer(samples []float64, sampleRate int) Buffer {
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return Buffer{Samples: cp, SampleRate: sampleRate}
}

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy of b.
func (b Buffer) Clone() Buffer {
	return NewBuffer(b.Samples, b.SampleRate)
}

// Scaled returns a copy of b with every sample multiplied by gain.
func (b Buffer) Scaled(gain float64) Buffer {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s * gain
	}
	return Buffer{Samples: out, SampleRate: b.SampleRate}
}
