package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/MrWong99/radioclean/internal/gate"
	"github.com/MrWong99/radioclean/internal/metrics"
	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
	"github.com/MrWong99/radioclean/pkg/provider/vad/energy"
)

const rate = 16000

func newEngine(t *testing.T) (*metrics.Engine, vad.Classifier) {
	t.Helper()
	cls, err := energy.New(vad.ModeAggressive)
	if err != nil {
		t.Fatalf("energy.New: %v", err)
	}
	e, err := metrics.New(metrics.DefaultConfig(), cls)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	return e, cls
}

// speechLike returns one second of a 1 kHz tone over the first half on top of
// a low noise floor that the energy classifier treats as non-speech.
func speechLike() audio.Buffer {
	x := make([]float64, rate)
	var s uint32 = 88172645
	for i := range x {
		s ^= s << 13
		s ^= s >> 17
		s ^= s << 5
		x[i] = 0.003 * (float64(s)/math.MaxUint32*2 - 1)
		if i < rate/2 {
			x[i] += 0.5 * math.Sin(2*math.Pi*1000*float64(i)/rate)
		}
	}
	return audio.Buffer{Samples: x, SampleRate: rate}
}

func value(t *testing.T, name string, v *float64) float64 {
	t.Helper()
	if v == nil {
		t.Fatalf("%s is undefined", name)
	}
	return *v
}

func TestCompare_IdenticalBuffers(t *testing.T) {
	e, _ := newEngine(t)
	x := speechLike()
	r, err := e.Compare(context.Background(), x, x.Clone())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for name, v := range map[string]*float64{
		"lsdMeanDb":          r.LSDMeanDB,
		"lsdMedDb":           r.LSDMedianDB,
		"mfccMean":           r.MFCCMean,
		"mfccMed":            r.MFCCMedian,
		"nsReductionDb":      r.NonSpeechReductionDB,
		"speechLevelDeltaDb": r.SpeechLevelDeltaDB,
		"snrDelta":           r.SNRDelta,
	} {
		if got := value(t, name, v); math.Abs(got) > 1e-9 {
			t.Errorf("%s = %v, want 0", name, got)
		}
	}
	if snr := value(t, "snrInput", r.SNRInput); snr < 5 {
		t.Errorf("snrInput = %.1f dB, want a clearly positive estimate", snr)
	}
}

func TestCompare_GatedCopyShowsNoiseReduction(t *testing.T) {
	e, cls := newEngine(t)
	x := speechLike()
	g, err := gate.New(gate.Config{SampleRate: rate, FrameMs: 30, Mode: vad.ModeAggressive, AttenDB: 20}, cls)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	gated, err := g.Apply(x)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	r, err := e.Compare(context.Background(), x, gated.Audio)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got := value(t, "nsReductionDb", r.NonSpeechReductionDB); math.Abs(got-20) > 0.01 {
		t.Errorf("nsReductionDb = %.3f, want 20", got)
	}
	if got := value(t, "speechLevelDeltaDb", r.SpeechLevelDeltaDB); math.Abs(got) > 1e-9 {
		t.Errorf("speechLevelDeltaDb = %v, want 0", got)
	}
	if got := value(t, "lsdMeanDb", r.LSDMeanDB); got <= 0 {
		t.Errorf("lsdMeanDb = %v, want > 0", got)
	}
}

func TestCompare_SilenceLeavesSpeechEntriesUndefined(t *testing.T) {
	e, _ := newEngine(t)
	x := audio.Buffer{Samples: make([]float64, rate/2), SampleRate: rate}
	r, err := e.Compare(context.Background(), x, x)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for name, v := range map[string]*float64{
		"spRmsInputDb":       r.SpeechRMSInputDB,
		"spRmsOutputDb":      r.SpeechRMSOutputDB,
		"speechLevelDeltaDb": r.SpeechLevelDeltaDB,
		"snrInput":           r.SNRInput,
		"snrOutput":          r.SNROutput,
		"snrDelta":           r.SNRDelta,
	} {
		if v != nil {
			t.Errorf("%s = %v, want undefined", name, *v)
		}
	}
	if got := value(t, "nsRmsInputDb", r.NonSpeechRMSInputDB); math.Abs(got+120) > 1e-9 {
		t.Errorf("nsRmsInputDb = %v, want -120 (epsilon floor)", got)
	}
}

func TestCompare_EmptyInput(t *testing.T) {
	e, _ := newEngine(t)
	r, err := e.Compare(context.Background(), audio.Buffer{SampleRate: rate}, speechLike())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for _, entry := range r.Entries() {
		if entry.Value != nil {
			t.Errorf("%s = %v, want undefined", entry.Key, *entry.Value)
		}
	}
}

func TestCompare_RateMismatch(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Compare(context.Background(), speechLike(), audio.Buffer{Samples: make([]float64, 100), SampleRate: 8000})
	if !errors.Is(err, audio.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCompare_UnsupportedRate(t *testing.T) {
	e, _ := newEngine(t)
	x := audio.Buffer{Samples: make([]float64, 100), SampleRate: 44100}
	if _, err := e.Compare(context.Background(), x, x); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCompare_CancelledContext(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := speechLike()
	if _, err := e.Compare(ctx, x, x); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cls, _ := energy.New(vad.ModeQuality)
	if _, err := metrics.New(metrics.Config{FrameMs: 25}, cls); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNew_ClassifierModeMismatch(t *testing.T) {
	cls, _ := energy.New(vad.ModeVeryAggressive)
	if _, err := metrics.New(metrics.DefaultConfig(), cls); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestReport_JSONUsesNullForUndefined(t *testing.T) {
	v := 3.5
	data, err := json.Marshal(&metrics.Report{SNRDelta: &v})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 13 {
		t.Errorf("keys = %d, want 13", len(decoded))
	}
	if decoded["snrDelta"] != 3.5 {
		t.Errorf("snrDelta = %v, want 3.5", decoded["snrDelta"])
	}
	if val, ok := decoded["mfccMed"]; !ok || val != nil {
		t.Errorf("mfccMed = %v (present %v), want null", val, ok)
	}
}

func TestReport_String(t *testing.T) {
	v := -1.234
	s := (&metrics.Report{LSDMeanDB: &v}).String()
	if !strings.Contains(s, "lsdMeanDb=-1.23") || !strings.Contains(s, "mfccMed=n/a") {
		t.Errorf("String() = %q", s)
	}
}
