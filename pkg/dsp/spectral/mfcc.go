package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MFCCConfig describes the cepstral analysis.
type MFCCConfig struct {
	SampleRate int
	NumCoeffs  int
	NumMels    int
	NFFT       int
	Hop        int

	// TopDB limits the dynamic range of the log-mel spectrogram relative to
	// its maximum. Zero disables the limit.
	TopDB float64
}

// DefaultMFCCConfig returns the analysis used by the cepstral distance: 13
// coefficients from 128 mel bands, 2048-point frames, hop 256, 80 dB range.
func DefaultMFCCConfig(sampleRate int) MFCCConfig {
	return MFCCConfig{
		SampleRate: sampleRate,
		NumCoeffs:  13,
		NumMels:    128,
		NFFT:       2048,
		Hop:        256,
		TopDB:      80,
	}
}

const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
	powerAmin    = 1e-10
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts frequency to the Slaney mel scale (linear below 1 kHz,
// logarithmic above).
func HzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

// MelToHz is the inverse of [HzToMel].
func MelToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// MelFilterbank returns numMels triangular filters over nFFT/2+1 bins spanning
// 0 Hz to Nyquist, area-normalised per band.
func MelFilterbank(sampleRate, nFFT, numMels int) [][]float64 {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	floats.Span(fftFreqs, 0, float64(sampleRate)/2)

	mels := make([]float64, numMels+2)
	floats.Span(mels, HzToMel(0), HzToMel(float64(sampleRate)/2))
	melF := make([]float64, len(mels))
	for i, m := range mels {
		melF[i] = MelToHz(m)
	}

	weights := make([][]float64, numMels)
	for i := range numMels {
		row := make([]float64, bins)
		lowerW := melF[i+1] - melF[i]
		upperW := melF[i+2] - melF[i+1]
		for k, f := range fftFreqs {
			lower := (f - melF[i]) / lowerW
			upper := (melF[i+2] - f) / upperW
			row[k] = math.Max(0, math.Min(lower, upper))
		}
		floats.Scale(2/(melF[i+2]-melF[i]), row)
		weights[i] = row
	}
	return weights
}

// PowerToDB converts a power spectrogram to decibels (reference 1.0), then
// clamps every value to at most topDB below the global maximum. The input is
// not modified.
func PowerToDB(power [][]float64, topDB float64) [][]float64 {
	out := make([][]float64, len(power))
	maxDB := math.Inf(-1)
	for t, row := range power {
		db := make([]float64, len(row))
		for k, p := range row {
			db[k] = 10 * math.Log10(math.Max(powerAmin, p))
		}
		if len(db) > 0 {
			maxDB = math.Max(maxDB, floats.Max(db))
		}
		out[t] = db
	}
	if topDB > 0 && !math.IsInf(maxDB, -1) {
		floor := maxDB - topDB
		for _, row := range out {
			for k, v := range row {
				row[k] = math.Max(v, floor)
			}
		}
	}
	return out
}

// DCT2 returns the first numCoeffs coefficients of the orthonormal DCT-II of x.
func DCT2(x []float64, numCoeffs int) []float64 {
	n := len(x)
	out := make([]float64, numCoeffs)
	if n == 0 {
		return out
	}
	scale0 := math.Sqrt(1 / float64(n))
	scale := math.Sqrt(2 / float64(n))
	for k := range numCoeffs {
		var acc float64
		for i, v := range x {
			acc += v * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		if k == 0 {
			out[k] = acc * scale0
		} else {
			out[k] = acc * scale
		}
	}
	return out
}

// MFCC returns one coefficient vector per analysis frame of x.
func MFCC(x []float64, cfg MFCCConfig) ([][]float64, error) {
	if cfg.SampleRate <= 0 || cfg.NumCoeffs < 1 || cfg.NumMels < cfg.NumCoeffs {
		return nil, fmt.Errorf("spectral: invalid MFCC config %+v", cfg)
	}
	spec, err := STFT(x, cfg.NFFT, cfg.Hop)
	if err != nil {
		return nil, err
	}
	power := spec.Power()
	bank := MelFilterbank(cfg.SampleRate, cfg.NFFT, cfg.NumMels)

	melPower := make([][]float64, len(power))
	for t, p := range power {
		row := make([]float64, cfg.NumMels)
		for m, w := range bank {
			row[m] = floats.Dot(w, p)
		}
		melPower[t] = row
	}

	logMel := PowerToDB(melPower, cfg.TopDB)
	coeffs := make([][]float64, len(logMel))
	for t, row := range logMel {
		coeffs[t] = DCT2(row, cfg.NumCoeffs)
	}
	return coeffs, nil
}
