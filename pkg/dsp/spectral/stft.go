// Package spectral computes the short-time spectra and cepstral features used
// by the quality metrics: a centred short-time Fourier transform with a
// periodic Hann window, a Slaney-style mel filterbank and MFCCs.
//
// All frame grids are centred: the signal is zero-padded by nFFT/2 on each
// side, so a signal of n samples yields 1 + n/hop frames.
package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// PeriodicHann returns an n-point Hann window suited to spectral analysis
// (the symmetric window of length n+1 with its last point dropped).
func PeriodicHann(n int) []float64 {
	w := make([]float64, n+1)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)[:n]
}

// Spectrogram holds the STFT of a signal, one slice of nFFT/2+1 bins per frame.
type Spectrogram struct {
	Frames [][]complex128
	NFFT   int
	Hop    int
}

// NumFrames returns the number of analysis frames.
func (s *Spectrogram) NumFrames() int { return len(s.Frames) }

// Power returns |X|^2 for every frame and bin.
func (s *Spectrogram) Power() [][]float64 {
	out := make([][]float64, len(s.Frames))
	for t, frame := range s.Frames {
		p := make([]float64, len(frame))
		for k, c := range frame {
			p[k] = real(c)*real(c) + imag(c)*imag(c)
		}
		out[t] = p
	}
	return out
}

// STFT computes the centred short-time Fourier transform of x.
func STFT(x []float64, nFFT, hop int) (*Spectrogram, error) {
	if nFFT < 2 || hop < 1 {
		return nil, fmt.Errorf("spectral: invalid STFT geometry nFFT=%d hop=%d", nFFT, hop)
	}
	spec := &Spectrogram{NFFT: nFFT, Hop: hop}
	if len(x) == 0 {
		return spec, nil
	}

	pad := nFFT / 2
	padded := make([]float64, len(x)+2*pad)
	copy(padded[pad:], x)

	numFrames := 1 + len(x)/hop
	win := PeriodicHann(nFFT)
	fft := fourier.NewFFT(nFFT)
	seg := make([]float64, nFFT)

	spec.Frames = make([][]complex128, numFrames)
	for t := range numFrames {
		start := t * hop
		for i := range seg {
			seg[i] = padded[start+i] * win[i]
		}
		spec.Frames[t] = fft.Coefficients(nil, seg)
	}
	return spec, nil
}
