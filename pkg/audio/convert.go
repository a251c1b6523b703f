package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	resampler "github.com/tphakala/go-audio-resampler"
)

// pcm16Scale is the full-scale value used when quantising to 16-bit PCM.
const pcm16Scale = 32767.0

// Quantize16 clips samples to [-1, 1] and scales them to int16, truncating
// toward zero.
func Quantize16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(clip(s) * pcm16Scale)
	}
	return out
}

// EncodePCM16 writes samples as little-endian int16 PCM into dst and returns
// the written slice. dst is grown when its capacity is too small, so callers
// can reuse one frame buffer across calls.
func EncodePCM16(dst []byte, samples []int16) []byte {
	n := len(samples) * 2
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst
}

// DecodePCM16 converts little-endian int16 PCM to float samples in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}

// Downmix averages interleaved multi-channel samples into a mono signal.
// Mono input is returned as a copy.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// Resample converts buf to targetRate using band-limited windowed-sinc
// interpolation. When buf is already at targetRate it is returned unchanged.
func Resample(buf Buffer, targetRate int) (Buffer, error) {
	if targetRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: audio: resample target rate %d must be positive", ErrInvalidConfig, targetRate)
	}
	if buf.SampleRate == targetRate {
		return buf, nil
	}
	if buf.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: audio: source sample rate %d must be positive", ErrInvalidConfig, buf.SampleRate)
	}
	if len(buf.Samples) == 0 {
		return Buffer{Samples: []float64{}, SampleRate: targetRate}, nil
	}

	slog.Debug("audio: resampling",
		"from", buf.SampleRate,
		"to", targetRate,
		"samples", len(buf.Samples),
	)
	out, err := resampler.ResampleMono(buf.Samples, float64(buf.SampleRate), float64(targetRate), resampler.QualityHigh)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: resample %d Hz -> %d Hz: %w", buf.SampleRate, targetRate, err)
	}
	return Buffer{Samples: out, SampleRate: targetRate}, nil
}

// Peak returns the largest absolute sample value in samples.
func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

func clip(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
