package filter

import (
	"math"
	"math/cmplx"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/dsp"
)

// fir is a linear-phase band-pass kernel applied forward and backward.
type fir struct {
	taps    []float64
	refGain float64
}

// newFIR designs a windowed sinc band-pass of length taps, scaled to unity
// gain at the centre of the passband.
func newFIR(taps int, win Window, low, high, fs float64) *fir {
	fl := low / fs
	fh := high / fs
	alpha := float64(taps-1) / 2

	h := make([]float64, taps)
	for i := range h {
		m := float64(i) - alpha
		h[i] = 2*fh*sinc(2*fh*m) - 2*fl*sinc(2*fl*m)
	}
	if win == "" {
		win = WindowHamming
	}
	w := make([]float64, taps)
	for i := range w {
		w[i] = 1
	}
	floats.Mul(h, windowFuncs[win](w))

	centre := (fl + fh) / 2
	var scale float64
	for i, c := range h {
		scale += c * math.Cos(2*math.Pi*centre*(float64(i)-alpha))
	}
	if scale != 0 {
		floats.Scale(1/scale, h)
	}
	return &fir{taps: h, refGain: 1}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// kernelResponse returns the single-pass magnitude response on an n-point grid.
func (f *fir) kernelResponse(n int) []float64 {
	h := polyResponse(fourier.NewFFT(n), f.taps, n)
	mag := make([]float64, len(h))
	for k, c := range h {
		mag[k] = cmplx.Abs(c)
	}
	return mag
}

// equalize divides the kernel by its mean magnitude over the inner passband.
func (f *fir) equalize(low, high, fs float64) {
	mag := f.kernelResponse(responsePoints)
	lo, hi := analysisBand(low, high, fs, responsePoints)
	if lo < 0 {
		return
	}
	ref := dsp.Mean(mag[lo : hi+1])
	if ref <= minReferenceGain {
		return
	}
	f.refGain = ref
	floats.Scale(1/ref, f.taps)
}

// Apply filters buf forward and backward so the output has zero group delay.
// The ends are padded with an odd extension of the signal to suppress edge
// transients.
func (f *fir) Apply(buf audio.Buffer) audio.Buffer {
	x := buf.Samples
	n := len(x)
	if n == 0 {
		return audio.Buffer{Samples: []float64{}, SampleRate: buf.SampleRate}
	}

	pad := min(3*len(f.taps), n-1)
	ext := oddExtend(x, pad)

	y := convolve(f.taps, ext)
	slices.Reverse(y)
	y = convolve(f.taps, y)
	slices.Reverse(y)

	out := make([]float64, n)
	copy(out, y[pad:pad+n])
	return audio.Buffer{Samples: out, SampleRate: buf.SampleRate}
}

// Response returns the magnitude response of the forward-backward
// application, which is the squared kernel magnitude.
func (f *fir) Response(n int) []float64 {
	mag := f.kernelResponse(n)
	for k, m := range mag {
		mag[k] = m * m
	}
	return mag
}

func (f *fir) ReferenceGain() float64 { return f.refGain }

// convolve applies h causally to x with zero initial state, returning a
// slice of len(x).
func convolve(h, x []float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		var acc float64
		for k := 0; k < len(h) && k <= i; k++ {
			acc += h[k] * x[i-k]
		}
		y[i] = acc
	}
	return y
}

// oddExtend pads x on both sides with pad samples reflected through the end
// points.
func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := 1; i <= pad; i++ {
		ext = append(ext, 2*x[n-1]-x[n-1-i])
	}
	return ext
}
