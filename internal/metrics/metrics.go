// Package metrics implements the quality metrics engine. It compares a
// reference buffer with its processed counterpart and reports level changes
// in speech and non-speech regions, an SNR estimate, log-spectral distance and
// MFCC distance.
//
// Speech regions are found by running the speech gate over the reference
// without hangover or attenuation. Degenerate inputs never fail: the affected
// entries are left undefined.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/MrWong99/radioclean/internal/gate"
	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/dsp"
	"github.com/MrWong99/radioclean/pkg/dsp/spectral"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

const (
	eps = 1e-12

	stftSize = 512
	stftHop  = 128
)

// Config holds the engine parameters.
type Config struct {
	// FrameMs is the gate frame length used to separate speech from
	// non-speech.
	FrameMs int

	// Mode is the classifier aggressiveness.
	Mode vad.Mode
}

// DefaultConfig returns 30 ms frames in aggressive mode.
func DefaultConfig() Config {
	return Config{FrameMs: 30, Mode: vad.ModeAggressive}
}

// Engine compares buffers. It is safe for concurrent use when its classifier
// is.
type Engine struct {
	cfg        Config
	classifier vad.Classifier
}

// New returns an Engine that consults classifier for speech decisions.
func New(cfg Config, classifier vad.Classifier) (*Engine, error) {
	// Check the gate settings at a supported rate so misconfiguration
	// surfaces at construction.
	check := gate.Config{SampleRate: vad.SupportedSampleRates[0], FrameMs: cfg.FrameMs, Mode: cfg.Mode}
	if _, err := gate.New(check, classifier); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return &Engine{cfg: cfg, classifier: classifier}, nil
}

// Compare measures processed against reference. Both buffers must share a
// sample rate that the gate supports; they are truncated to the shorter length
// and scaled by the larger of their peaks (at least 1.0).
func (e *Engine) Compare(ctx context.Context, reference, processed audio.Buffer) (*Report, error) {
	if reference.SampleRate != processed.SampleRate {
		return nil, fmt.Errorf("%w: metrics: reference rate %d Hz differs from processed rate %d Hz",
			audio.ErrInvalidConfig, reference.SampleRate, processed.SampleRate)
	}
	g, err := gate.New(gate.Config{
		SampleRate: reference.SampleRate,
		FrameMs:    e.cfg.FrameMs,
		Mode:       e.cfg.Mode,
	}, e.classifier)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	n := min(reference.Len(), processed.Len())
	if n == 0 {
		slog.Debug("metrics: empty input, all entries undefined")
		return &Report{}, nil
	}
	rate := reference.SampleRate
	rawRef := audio.Buffer{Samples: reference.Samples[:n], SampleRate: rate}
	scale := max(audio.Peak(rawRef.Samples), audio.Peak(processed.Samples[:n]), 1.0)
	ref := rawRef.Scaled(1 / scale)
	proc := audio.Buffer{Samples: processed.Samples[:n], SampleRate: rate}.Scaled(1 / scale)

	levelFlags, err := g.Classify(rawRef)
	if err != nil {
		return nil, fmt.Errorf("metrics: classify reference: %w", err)
	}
	snrFlags := levelFlags
	if scale != 1 {
		if snrFlags, err = g.Classify(ref); err != nil {
			return nil, fmt.Errorf("metrics: classify reference: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		stftRef, stftProc *spectral.Spectrogram
		mfccRef, mfccProc [][]float64
	)
	mfccCfg := spectral.DefaultMFCCConfig(rate)
	var eg errgroup.Group
	eg.Go(func() (err error) {
		stftRef, err = spectral.STFT(ref.Samples, stftSize, stftHop)
		return err
	})
	eg.Go(func() (err error) {
		stftProc, err = spectral.STFT(proc.Samples, stftSize, stftHop)
		return err
	})
	eg.Go(func() (err error) {
		mfccRef, err = spectral.MFCC(ref.Samples, mfccCfg)
		return err
	})
	eg.Go(func() (err error) {
		mfccProc, err = spectral.MFCC(proc.Samples, mfccCfg)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("metrics: spectral analysis: %w", err)
	}

	r := &Report{}
	mask := levelFlags.Mask(g.Config().FrameLength(), n)
	r.NonSpeechRMSInputDB, r.NonSpeechRMSOutputDB = levelsDB(ref.Samples, proc.Samples, mask, false)
	r.NonSpeechReductionDB = diff(r.NonSpeechRMSInputDB, r.NonSpeechRMSOutputDB)
	r.SpeechRMSInputDB, r.SpeechRMSOutputDB = levelsDB(ref.Samples, proc.Samples, mask, true)
	r.SpeechLevelDeltaDB = diff(r.SpeechRMSInputDB, r.SpeechRMSOutputDB)

	r.SNRInput, r.SNROutput = snrEstimate(stftRef.Power(), stftProc.Power(), snrFlags, n, rate, e.cfg.FrameMs)
	r.SNRDelta = diff(r.SNROutput, r.SNRInput)

	r.LSDMeanDB, r.LSDMedianDB = logSpectralDistance(stftRef, stftProc)
	r.MFCCMean, r.MFCCMedian = cepstralDistance(mfccRef, mfccProc)
	return r, nil
}

// levelsDB returns the RMS level in dB of the samples of ref and proc whose
// mask value equals want, or nil when there are none.
func levelsDB(ref, proc []float64, mask []bool, want bool) (in, out *float64) {
	var sumRef, sumProc float64
	count := 0
	for i, m := range mask {
		if m != want {
			continue
		}
		sumRef += ref[i] * ref[i]
		sumProc += proc[i] * proc[i]
		count++
	}
	if count == 0 {
		return nil, nil
	}
	return ptr(rmsDB(sumRef, count)), ptr(rmsDB(sumProc, count))
}

func rmsDB(sumSquares float64, count int) float64 {
	return 20 * math.Log10(math.Sqrt(sumSquares/float64(count)+eps))
}

// snrEstimate averages per-frame speech power over a noise profile taken from
// the non-speech frames of the reference. Spectral frames are mapped onto the
// gate's coarser grid by time.
func snrEstimate(refPower, procPower [][]float64, flags gate.Flags, n, rate, frameMs int) (in, out *float64) {
	if len(flags) == 0 {
		return nil, nil
	}
	numFrames := min(len(refPower), len(procPower), (n+stftHop-1)/stftHop)
	hopMs := 1000 * float64(stftHop) / float64(rate)

	var speech, noise []int
	for t := range numFrames {
		idx := min(int(math.RoundToEven(float64(t)*hopMs/float64(frameMs))), len(flags)-1)
		if flags[idx] {
			speech = append(speech, t)
		} else {
			noise = append(noise, t)
		}
	}
	if len(speech) == 0 || len(noise) == 0 {
		slog.Debug("metrics: snr undefined", "speech_frames", len(speech), "noise_frames", len(noise))
		return nil, nil
	}

	profile := make([]float64, len(refPower[0]))
	for _, t := range noise {
		floats.Add(profile, refPower[t])
	}
	floats.Scale(1/float64(len(noise)), profile)
	floats.AddConst(eps, profile)
	noisePower := floats.Sum(profile)

	snrIn := make([]float64, len(speech))
	snrOut := make([]float64, len(speech))
	for i, t := range speech {
		snrIn[i] = 10 * math.Log10((floats.Sum(refPower[t])+eps)/noisePower)
		snrOut[i] = 10 * math.Log10((floats.Sum(procPower[t])+eps)/noisePower)
	}
	return ptr(dsp.Mean(snrIn)), ptr(dsp.Mean(snrOut))
}

// logSpectralDistance returns the mean and median over frames of the RMS
// difference between log-magnitude spectra.
func logSpectralDistance(ref, proc *spectral.Spectrogram) (mean, median *float64) {
	numFrames := min(ref.NumFrames(), proc.NumFrames())
	if numFrames == 0 {
		return nil, nil
	}
	dist := make([]float64, numFrames)
	for t := range numFrames {
		a, b := ref.Frames[t], proc.Frames[t]
		var sum float64
		for k := range a {
			d := 20*math.Log10(math.Max(cmplx.Abs(a[k]), eps)) - 20*math.Log10(math.Max(cmplx.Abs(b[k]), eps))
			sum += d * d
		}
		dist[t] = math.Sqrt(sum / float64(len(a)))
	}
	return ptr(dsp.Mean(dist)), ptr(dsp.Median(dist))
}

// cepstralDistance returns the mean and median over frames of the Euclidean
// distance between coefficient vectors.
func cepstralDistance(ref, proc [][]float64) (mean, median *float64) {
	numFrames := min(len(ref), len(proc))
	if numFrames == 0 {
		return nil, nil
	}
	dist := make([]float64, numFrames)
	for t := range numFrames {
		dist[t] = floats.Distance(ref[t], proc[t], 2)
	}
	return ptr(dsp.Mean(dist)), ptr(dsp.Median(dist))
}
