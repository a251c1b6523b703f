// Package filter designs and applies the speech band-pass filters used ahead
// of gating and loudness normalisation.
//
// Two families are supported:
//
//   - [FamilyIIR]: a Butterworth band-pass built as a cascade of second-order
//     sections and applied causally in a single pass.
//   - [FamilyFIR]: a Hamming-windowed sinc band-pass applied zero-phase
//     (forward then backward) so the output stays time-aligned with the input.
//
// Filter design does not guarantee unity passband gain. When [Spec.Equalize]
// is set, the magnitude response is measured over the inner 80% of the
// passband and the filter is rescaled so that band sits at unity.
package filter

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/MrWong99/radioclean/pkg/audio"
)

// Family selects the filter structure.
type Family string

const (
	// FamilyIIR selects a Butterworth second-order-section cascade.
	FamilyIIR Family = "iir"

	// FamilyFIR selects a linear-phase windowed-sinc kernel.
	FamilyFIR Family = "fir"
)

// IsValid reports whether f is a recognised filter family.
func (f Family) IsValid() bool {
	return f == FamilyIIR || f == FamilyFIR
}

// Window selects the taper applied to the FIR sinc kernel. Later entries
// trade a wider transition band for lower sidelobes.
type Window string

const (
	WindowHamming        Window = "hamming"
	WindowBlackman       Window = "blackman"
	WindowBlackmanHarris Window = "blackman-harris"
	WindowNuttall        Window = "nuttall"
)

var windowFuncs = map[Window]func([]float64) []float64{
	WindowHamming:        window.Hamming,
	WindowBlackman:       window.Blackman,
	WindowBlackmanHarris: window.BlackmanHarris,
	WindowNuttall:        window.Nuttall,
}

// IsValid reports whether w is a recognised window. The empty value selects
// Hamming.
func (w Window) IsValid() bool {
	_, ok := windowFuncs[w]
	return ok || w == ""
}

const (
	// nyquistGuardHz is subtracted from the Nyquist frequency when the
	// requested upper edge reaches it.
	nyquistGuardHz = 1.0

	// bandMargin shrinks the passband on each side before measuring the
	// reference gain for equalisation.
	bandMargin = 0.1

	// minReferenceGain disables equalisation when the measured passband gain
	// is too small to divide by.
	minReferenceGain = 1e-12

	// responsePoints is the FFT length of the equalisation analysis grid.
	responsePoints = 4096
)

// Spec describes a band-pass filter.
type Spec struct {
	// Family selects IIR or FIR.
	Family Family

	// LowHz and HighHz are the passband edges. HighHz is clamped below
	// Nyquist before design.
	LowHz  float64
	HighHz float64

	// Order is the Butterworth prototype order for IIR filters. The
	// resulting band-pass has Order second-order sections.
	Order int

	// Taps is the FIR kernel length. Must be odd.
	Taps int

	// Window tapers the FIR kernel. Empty selects [WindowHamming].
	Window Window

	// Equalize rescales the filter to unity passband gain.
	Equalize bool
}

// Filter is a designed band-pass filter.
type Filter interface {
	// Apply filters buf and returns a new buffer of the same length and rate.
	Apply(buf audio.Buffer) audio.Buffer

	// Response returns the magnitude response of Apply on an n-point FFT
	// grid: n/2+1 values from 0 Hz to Nyquist inclusive.
	Response(n int) []float64

	// ReferenceGain is the passband gain measured before equalisation, or 1
	// when equalisation was not requested or was skipped.
	ReferenceGain() float64
}

// Design validates spec against sampleRate and builds the filter.
func Design(spec Spec, sampleRate int) (Filter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: filter: sample rate %d must be positive", audio.ErrInvalidConfig, sampleRate)
	}
	if !spec.Family.IsValid() {
		return nil, fmt.Errorf("%w: filter: family %q is invalid; valid values: iir, fir", audio.ErrInvalidConfig, spec.Family)
	}

	nyquist := float64(sampleRate) / 2
	high := spec.HighHz
	if high >= nyquist {
		high = nyquist - nyquistGuardHz
		slog.Debug("filter: upper edge clamped below Nyquist",
			"requested_hz", spec.HighHz,
			"clamped_hz", high,
		)
	}
	low := spec.LowHz
	if low <= 0 || low >= high {
		return nil, fmt.Errorf("%w: filter: passband [%.1f, %.1f] Hz is empty or not above 0 Hz", audio.ErrInvalidConfig, low, high)
	}

	fs := float64(sampleRate)
	switch spec.Family {
	case FamilyIIR:
		if spec.Order < 1 {
			return nil, fmt.Errorf("%w: filter: iir order %d must be at least 1", audio.ErrInvalidConfig, spec.Order)
		}
		f := newIIR(spec.Order, low, high, fs)
		if spec.Equalize {
			f.equalize(low, high, fs)
		}
		return f, nil
	default:
		if spec.Taps < 3 || spec.Taps%2 == 0 || spec.Taps >= responsePoints {
			return nil, fmt.Errorf("%w: filter: fir tap count %d must be odd and in [3, %d)", audio.ErrInvalidConfig, spec.Taps, responsePoints)
		}
		if !spec.Window.IsValid() {
			return nil, fmt.Errorf("%w: filter: window %q is invalid; valid values: hamming, blackman, blackman-harris, nuttall", audio.ErrInvalidConfig, spec.Window)
		}
		f := newFIR(spec.Taps, spec.Window, low, high, fs)
		if spec.Equalize {
			f.equalize(low, high, fs)
		}
		return f, nil
	}
}

// analysisBand returns the indices of the n/2+1 FFT bins that fall inside
// [low*1.1, high*0.9].
func analysisBand(low, high, fs float64, n int) (lo, hi int) {
	bandLow := low * (1 + bandMargin)
	bandHigh := high * (1 - bandMargin)
	binHz := fs / float64(n)
	lo, hi = -1, -1
	for k := 0; k <= n/2; k++ {
		f := float64(k) * binHz
		if f < bandLow || f > bandHigh {
			continue
		}
		if lo < 0 {
			lo = k
		}
		hi = k
	}
	return lo, hi
}

// polyResponse evaluates the polynomial coeffs on an n-point FFT grid.
func polyResponse(fft *fourier.FFT, coeffs []float64, n int) []complex128 {
	seq := make([]float64, n)
	copy(seq, coeffs)
	return fft.Coefficients(nil, seq)
}
