package spectral_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/MrWong99/radioclean/pkg/dsp/spectral"
)

func sine(freq float64, n, sampleRate int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return x
}

func TestPeriodicHann(t *testing.T) {
	w := spectral.PeriodicHann(8)
	if len(w) != 8 {
		t.Fatalf("len = %d, want 8", len(w))
	}
	want := []float64{0, 0.1464466, 0.5, 0.8535534, 1, 0.8535534, 0.5, 0.1464466}
	for i := range want {
		if math.Abs(w[i]-want[i]) > 1e-6 {
			t.Errorf("w[%d] = %.7f, want %.7f", i, w[i], want[i])
		}
	}
}

func TestSTFT_FrameCount(t *testing.T) {
	tests := []struct {
		n, nfft, hop, want int
	}{
		{0, 512, 128, 0},
		{1, 512, 128, 1},
		{16000, 512, 128, 126},
		{16000, 2048, 256, 63},
		{128, 512, 128, 2},
	}
	for _, tc := range tests {
		spec, err := spectral.STFT(make([]float64, tc.n), tc.nfft, tc.hop)
		if err != nil {
			t.Fatalf("STFT(%d): %v", tc.n, err)
		}
		if spec.NumFrames() != tc.want {
			t.Errorf("n=%d nfft=%d hop=%d: frames = %d, want %d", tc.n, tc.nfft, tc.hop, spec.NumFrames(), tc.want)
		}
		for _, f := range spec.Frames {
			if len(f) != tc.nfft/2+1 {
				t.Fatalf("bins = %d, want %d", len(f), tc.nfft/2+1)
			}
		}
	}
}

func TestSTFT_InvalidGeometry(t *testing.T) {
	if _, err := spectral.STFT([]float64{1}, 1, 1); err == nil {
		t.Error("expected error for nFFT < 2")
	}
	if _, err := spectral.STFT([]float64{1}, 512, 0); err == nil {
		t.Error("expected error for hop < 1")
	}
}

func TestSTFT_SinePeaksAtExpectedBin(t *testing.T) {
	const rate, nfft = 16000, 512
	spec, err := spectral.STFT(sine(1000, rate, rate), nfft, 128)
	if err != nil {
		t.Fatalf("STFT: %v", err)
	}
	frame := spec.Frames[spec.NumFrames()/2]
	best := 0
	for k := range frame {
		if cmplx.Abs(frame[k]) > cmplx.Abs(frame[best]) {
			best = k
		}
	}
	if want := 1000 * nfft / rate; best != want {
		t.Errorf("peak bin = %d, want %d", best, want)
	}
}

func TestMelScale_Inverse(t *testing.T) {
	for _, hz := range []float64{0, 200, 999, 1000, 2500, 8000} {
		if got := spectral.MelToHz(spectral.HzToMel(hz)); math.Abs(got-hz) > 1e-6 {
			t.Errorf("MelToHz(HzToMel(%v)) = %v", hz, got)
		}
	}
	if got := spectral.HzToMel(1000); math.Abs(got-15) > 1e-12 {
		t.Errorf("HzToMel(1000) = %v, want 15", got)
	}
}

func TestMelFilterbank_Shape(t *testing.T) {
	bank := spectral.MelFilterbank(16000, 2048, 40)
	if len(bank) != 40 {
		t.Fatalf("bands = %d, want 40", len(bank))
	}
	for m, row := range bank {
		if len(row) != 1025 {
			t.Fatalf("band %d has %d bins, want 1025", m, len(row))
		}
		var sum float64
		for _, w := range row {
			if w < 0 {
				t.Fatalf("band %d has negative weight %v", m, w)
			}
			sum += w
		}
		if sum == 0 {
			t.Errorf("band %d is empty", m)
		}
	}
}

func TestPowerToDB_TopDBClamp(t *testing.T) {
	db := spectral.PowerToDB([][]float64{{1, 1e-3}, {1e-12, 0}}, 80)
	want := [][]float64{{0, -30}, {-80, -80}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(db[i][j]-want[i][j]) > 1e-9 {
				t.Errorf("db[%d][%d] = %v, want %v", i, j, db[i][j], want[i][j])
			}
		}
	}
}

func TestDCT2_ConstantHasOnlyDC(t *testing.T) {
	x := []float64{2, 2, 2, 2}
	c := spectral.DCT2(x, 4)
	if math.Abs(c[0]-4) > 1e-12 {
		t.Errorf("c[0] = %v, want 4", c[0])
	}
	for k := 1; k < 4; k++ {
		if math.Abs(c[k]) > 1e-12 {
			t.Errorf("c[%d] = %v, want 0", k, c[k])
		}
	}
}

func TestMFCC_IdenticalInputsMatch(t *testing.T) {
	cfg := spectral.DefaultMFCCConfig(16000)
	x := sine(440, 8000, 16000)
	a, err := spectral.MFCC(x, cfg)
	if err != nil {
		t.Fatalf("MFCC: %v", err)
	}
	b, err := spectral.MFCC(append([]float64(nil), x...), cfg)
	if err != nil {
		t.Fatalf("MFCC: %v", err)
	}
	if len(a) != 1+8000/256 {
		t.Fatalf("frames = %d, want %d", len(a), 1+8000/256)
	}
	for i := range a {
		if len(a[i]) != 13 {
			t.Fatalf("coeffs = %d, want 13", len(a[i]))
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("frame %d coeff %d differs", i, j)
			}
		}
	}
}

func TestMFCC_InvalidConfig(t *testing.T) {
	if _, err := spectral.MFCC([]float64{0}, spectral.MFCCConfig{}); err == nil {
		t.Error("expected error for zero config")
	}
}
