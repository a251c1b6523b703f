// Package audioio decodes recordings into mono [audio.Buffer] values and
// writes processed buffers as 16-bit PCM WAV files.
//
// Supported inputs are WAV (any integer bit depth), MP3 and FLAC, selected by
// file extension. Multi-channel input is averaged down to mono.
package audioio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/MrWong99/radioclean/pkg/audio"
)

// ErrUnsupportedFormat is returned for inputs whose extension names no known
// container.
var ErrUnsupportedFormat = errors.New("audioio: unsupported format")

// Format identifies an input container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
)

// FormatOf maps a file name to its container by extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Decode reads the file at path as mono at its native rate.
func Decode(path string) (audio.Buffer, error) {
	format, err := FormatOf(path)
	if err != nil {
		return audio.Buffer{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("audioio: open %q: %w", path, err)
	}
	defer f.Close()

	buf, err := DecodeReader(f, format)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("audioio: decode %q: %w", path, err)
	}
	slog.Debug("decoded input",
		"path", path,
		"format", format,
		"sample_rate", buf.SampleRate,
		"duration", buf.Duration(),
	)
	return buf, nil
}

// DecodeReader decodes r as the given container.
func DecodeReader(r io.ReadSeeker, format Format) (audio.Buffer, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(r)
	case FormatMP3:
		return decodeMP3(r)
	case FormatFLAC:
		return decodeFLAC(r)
	}
	return audio.Buffer{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func decodeWAV(r io.ReadSeeker) (audio.Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return audio.Buffer{}, errors.New("invalid WAV file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("read PCM: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels < 1 {
		return audio.Buffer{}, errors.New("WAV file has no channels")
	}
	scale := fullScale(int(pcm.SourceBitDepth))
	interleaved := make([]float64, len(pcm.Data))
	for i, s := range pcm.Data {
		interleaved[i] = float64(s) / scale
	}
	return audio.Buffer{
		Samples:    audio.Downmix(interleaved, pcm.Format.NumChannels),
		SampleRate: pcm.Format.SampleRate,
	}, nil
}

// decodeMP3 reads the whole stream; the decoder always yields interleaved
// 16-bit stereo.
func decodeMP3(r io.Reader) (audio.Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("open mp3 stream: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("read mp3 stream: %w", err)
	}
	return audio.Buffer{
		Samples:    audio.Downmix(audio.DecodePCM16(pcm), 2),
		SampleRate: dec.SampleRate(),
	}, nil
}

func decodeFLAC(r io.Reader) (audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("open flac stream: %w", err)
	}
	channels := int(stream.Info.NChannels)
	scale := fullScale(int(stream.Info.BitsPerSample))

	var interleaved []float64
	if stream.Info.NSamples > 0 {
		interleaved = make([]float64, 0, int(stream.Info.NSamples)*channels)
	}
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("parse flac frame: %w", err)
		}
		for i := range int(frame.BlockSize) {
			for ch := range channels {
				interleaved = append(interleaved, float64(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}
	return audio.Buffer{
		Samples:    audio.Downmix(interleaved, channels),
		SampleRate: int(stream.Info.SampleRate),
	}, nil
}

// fullScale returns the magnitude of the most negative sample at bitDepth.
func fullScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float64(int64(1) << (bitDepth - 1))
}

// Encode writes buf to w as mono 16-bit PCM WAV. Samples are clipped to
// [-1, 1].
func Encode(w io.WriteSeeker, buf audio.Buffer) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("%w: audioio: sample rate %d", audio.ErrInvalidConfig, buf.SampleRate)
	}
	pcm := audio.Quantize16(buf.Samples)
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(w, buf.SampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("audioio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audioio: finalise wav: %w", err)
	}
	return nil
}

// Save writes buf to path as 16-bit PCM WAV, creating or truncating it.
func Save(path string, buf audio.Buffer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audioio: create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audioio: close %q: %w", path, cerr)
		}
	}()
	return Encode(f, buf)
}
