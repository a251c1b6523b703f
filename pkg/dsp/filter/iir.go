package filter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/dsp"
)

// section is one second-order section, normalised so a[0] == 1.
type section struct {
	b [3]float64
	a [3]float64
}

// iir is a cascade of second-order sections with an optional output gain.
type iir struct {
	sections []section
	postGain float64
	refGain  float64
}

// newIIR designs a Butterworth band-pass with order sections using the
// bilinear transform with frequency pre-warping. The cascade has unity gain
// at the geometric centre of the warped band.
func newIIR(order int, low, high, fs float64) *iir {
	fs2 := 2 * fs
	wl := fs2 * math.Tan(math.Pi*low/fs)
	wh := fs2 * math.Tan(math.Pi*high/fs)
	bw := wh - wl
	w0sq := wl * wh

	bilinear := func(s complex128) complex128 {
		return (complex(fs2, 0) + s) / (complex(fs2, 0) - s)
	}

	sections := make([]section, 0, order)
	for k := range order {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		p := cmplx.Exp(complex(0, theta))
		switch {
		case imag(p) < -1e-12:
			// Covered by its conjugate in the upper half plane.
			continue
		case imag(p) <= 1e-12:
			// Real prototype pole: both band-pass poles are roots of one real
			// quadratic, so they share a section.
			half := real(p) * bw / 2
			r := cmplx.Sqrt(complex(half*half-w0sq, 0))
			z1 := bilinear(complex(half, 0) + r)
			z2 := bilinear(complex(half, 0) - r)
			sections = append(sections, section{
				b: [3]float64{1, 0, -1},
				a: [3]float64{1, -real(z1 + z2), real(z1 * z2)},
			})
		default:
			half := p * complex(bw/2, 0)
			r := cmplx.Sqrt(half*half - complex(w0sq, 0))
			for _, q := range []complex128{half + r, half - r} {
				z := bilinear(q)
				sections = append(sections, section{
					b: [3]float64{1, 0, -1},
					a: [3]float64{1, -2 * real(z), real(z)*real(z) + imag(z)*imag(z)},
				})
			}
		}
	}

	f := &iir{sections: sections, postGain: 1, refGain: 1}

	w0 := 2 * math.Atan(math.Sqrt(w0sq)/fs2)
	if g := cmplx.Abs(f.at(w0)); g > 0 {
		for i := range f.sections[0].b {
			f.sections[0].b[i] /= g
		}
	}
	return f
}

// at evaluates the cascade's transfer function at normalised angular
// frequency w (radians per sample).
func (f *iir) at(w float64) complex128 {
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	h := complex(1, 0)
	for _, s := range f.sections {
		num := complex(s.b[0], 0) + complex(s.b[1], 0)*z1 + complex(s.b[2], 0)*z2
		den := complex(s.a[0], 0) + complex(s.a[1], 0)*z1 + complex(s.a[2], 0)*z2
		h *= num / den
	}
	return h
}

// equalize measures the median magnitude over the inner passband and stores
// its inverse as the output gain.
func (f *iir) equalize(low, high, fs float64) {
	mag := f.Response(responsePoints)
	lo, hi := analysisBand(low, high, fs, responsePoints)
	if lo < 0 {
		return
	}
	ref := dsp.Median(mag[lo : hi+1])
	if ref <= minReferenceGain {
		return
	}
	f.refGain = ref
	f.postGain = 1 / ref
}

// Apply runs the cascade causally over buf using transposed direct form II.
func (f *iir) Apply(buf audio.Buffer) audio.Buffer {
	y := make([]float64, len(buf.Samples))
	copy(y, buf.Samples)
	for _, s := range f.sections {
		var z1, z2 float64
		for i, x := range y {
			out := s.b[0]*x + z1
			z1 = s.b[1]*x - s.a[1]*out + z2
			z2 = s.b[2]*x - s.a[2]*out
			y[i] = out
		}
	}
	if f.postGain != 1 {
		for i := range y {
			y[i] *= f.postGain
		}
	}
	return audio.Buffer{Samples: y, SampleRate: buf.SampleRate}
}

// Response returns |H| on an n-point grid, including the equalisation gain.
func (f *iir) Response(n int) []float64 {
	fft := fourier.NewFFT(n)
	mag := make([]float64, n/2+1)
	for k := range mag {
		mag[k] = f.postGain
	}
	for _, s := range f.sections {
		num := polyResponse(fft, s.b[:], n)
		den := polyResponse(fft, s.a[:], n)
		for k := range mag {
			mag[k] *= cmplx.Abs(num[k]) / cmplx.Abs(den[k])
		}
	}
	return mag
}

func (f *iir) ReferenceGain() float64 { return f.refGain }
