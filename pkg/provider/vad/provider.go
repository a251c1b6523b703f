// Package vad defines the Classifier interface for frame-level Voice Activity
// Detection backends.
//
// A Classifier wraps a speech/non-speech decision model (WebRTC-style energy
// and spectral detectors, neural models, or a scripted test double) and is
// consulted once per fixed-length frame. Frames are raw little-endian 16-bit
// PCM at the sample rate passed alongside them.
//
// Classifiers are constructed once, configured with their aggressiveness
// [Mode], and reused for every buffer. The gate calls IsSpeech sequentially in
// frame order, so implementations may adapt internal state across calls.
package vad

import "fmt"

// Mode is the classifier aggressiveness. Higher modes reject more non-speech
// at the cost of clipping quiet speech. Valid values are 0 through 3.
type Mode int

const (
	ModeQuality Mode = iota
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
)

// IsValid reports whether m is a recognised aggressiveness mode.
func (m Mode) IsValid() bool {
	return m >= ModeQuality && m <= ModeVeryAggressive
}

// String returns the mode number and its conventional name.
func (m Mode) String() string {
	switch m {
	case ModeQuality:
		return "0 (quality)"
	case ModeLowBitrate:
		return "1 (low-bitrate)"
	case ModeAggressive:
		return "2 (aggressive)"
	case ModeVeryAggressive:
		return "3 (very-aggressive)"
	}
	return fmt.Sprintf("%d (invalid)", int(m))
}

// SupportedSampleRates lists the sample rates a classifier must accept.
var SupportedSampleRates = []int{8000, 16000, 32000, 48000}

// SupportedFrameDurations lists the frame durations, in milliseconds, a
// classifier must accept.
var SupportedFrameDurations = []int{10, 20, 30}

// Classifier decides whether one PCM frame contains speech.
type Classifier interface {
	// IsSpeech classifies a single frame. frame holds little-endian int16 PCM
	// whose duration is one of [SupportedFrameDurations] at sampleRate.
	// Returns an error when the frame length or sample rate is unsupported or
	// the underlying model fails.
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

// ModeReporter is implemented by classifiers that know the aggressiveness
// they were built with, letting callers reject a mismatched configuration.
type ModeReporter interface {
	Mode() Mode
}

// ClassifierFunc adapts an ordinary function to the [Classifier] interface.
type ClassifierFunc func(frame []byte, sampleRate int) (bool, error)

// IsSpeech calls f(frame, sampleRate).
func (f ClassifierFunc) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	return f(frame, sampleRate)
}
