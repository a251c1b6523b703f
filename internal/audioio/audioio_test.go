package audioio_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/radioclean/internal/audioio"
	"github.com/MrWong99/radioclean/pkg/audio"
)

func sine(freq, amp float64, n, rate int) audio.Buffer {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return audio.Buffer{Samples: x, SampleRate: rate}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want audioio.Format
	}{
		{"a.wav", audioio.FormatWAV},
		{"dir/B.WAV", audioio.FormatWAV},
		{"x.mp3", audioio.FormatMP3},
		{"archive.flac", audioio.FormatFLAC},
	}
	for _, tc := range tests {
		got, err := audioio.FormatOf(tc.path)
		if err != nil || got != tc.want {
			t.Errorf("FormatOf(%q) = %q, %v; want %q", tc.path, got, err, tc.want)
		}
	}
	for _, bad := range []string{"notes.txt", "noext", "a.ogg"} {
		if _, err := audioio.FormatOf(bad); !errors.Is(err, audioio.ErrUnsupportedFormat) {
			t.Errorf("FormatOf(%q): expected ErrUnsupportedFormat, got %v", bad, err)
		}
	}
}

func TestSaveDecode_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sine(440, 0.5, 1600, 16000)
	if err := audioio.Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := audioio.Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 16000 || out.Len() != in.Len() {
		t.Fatalf("got rate=%d len=%d, want rate=16000 len=%d", out.SampleRate, out.Len(), in.Len())
	}
	for i := range in.Samples {
		if d := math.Abs(out.Samples[i] - in.Samples[i]); d > 1e-4 {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, out.Samples[i], in.Samples[i], d)
		}
	}
}

func TestSave_ClipsOutOfRangeSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.wav")
	if err := audioio.Save(path, audio.Buffer{Samples: []float64{2, -3, 0.25}, SampleRate: 8000}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := audioio.Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Samples[0] > 1 || out.Samples[1] < -1 {
		t.Errorf("samples not clipped: %v", out.Samples)
	}
	if math.Abs(out.Samples[0]-32767.0/32768) > 1e-9 {
		t.Errorf("positive clip = %v, want 32767/32768", out.Samples[0])
	}
}

func TestDecode_KeepsNativeRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audioio.Save(path, sine(300, 0.5, 32000, 32000)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := audioio.Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 32000 || out.Len() != 32000 {
		t.Errorf("rate=%d len=%d, want 32000/32000", out.SampleRate, out.Len())
	}
}

func TestDecode_StereoIsDownmixed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 8000},
		Data:           []int{16384, 0, -16384, -16384, 8192, 24576},
		SourceBitDepth: 16,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	out, err := audioio.Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []float64{0.25, -0.5, 0.5}
	if out.Len() != len(want) {
		t.Fatalf("len = %d, want %d", out.Len(), len(want))
	}
	for i := range want {
		if math.Abs(out.Samples[i]-want[i]) > 1e-9 {
			t.Errorf("sample %d = %v, want %v", i, out.Samples[i], want[i])
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.wav")
	if err := os.WriteFile(junk, []byte("definitely not RIFF"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := audioio.Decode(junk); err == nil {
		t.Error("expected error for invalid WAV")
	}
	if _, err := audioio.Decode(filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
	if _, err := audioio.Decode(filepath.Join(dir, "x.aac")); !errors.Is(err, audioio.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEncode_InvalidRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := audioio.Save(path, audio.Buffer{Samples: []float64{0}}); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
