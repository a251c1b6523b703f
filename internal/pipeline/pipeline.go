// Package pipeline sequences the conditioning stages over whole buffers:
// band-pass filter, speech gate, loudness normalisation and resampling to
// the output rate, followed by an optional quality report comparing the
// result with the untouched input.
//
// Every stage returns a new buffer; the caller's input is never modified.
// Disabled stages pass the buffer through unchanged.
package pipeline

import (
	"context"
	"fmt"

	"github.com/MrWong99/radioclean/internal/config"
	"github.com/MrWong99/radioclean/internal/gate"
	"github.com/MrWong99/radioclean/internal/loudness"
	"github.com/MrWong99/radioclean/internal/metrics"
	"github.com/MrWong99/radioclean/internal/observe"
	"github.com/MrWong99/radioclean/pkg/audio"
	"github.com/MrWong99/radioclean/pkg/dsp/filter"
	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// Classifiers holds the speech classifiers for the gate and the metrics
// engine. Metrics falls back to Gate when nil.
type Classifiers struct {
	Gate    vad.Classifier
	Metrics vad.Classifier
}

// Result is the outcome of processing one buffer.
type Result struct {
	// Output is the conditioned buffer at the configured output rate. It never
	// shares memory with the input.
	Output audio.Buffer

	// Gain is the loudness-targeting gain (1 when normalisation is off).
	Gain float64

	// Limited reports whether the peak limiter engaged.
	Limited bool

	// Segments are the speech runs found by the gate, in seconds.
	Segments []gate.Segment

	// Flags are the smoothed per-frame gate decisions.
	Flags gate.Flags

	// Report is nil when metrics are disabled.
	Report *metrics.Report
}

// Processor runs the configured stages. Filters, gate and engines are built
// once in [New] and reused for every buffer. A Processor is safe for
// concurrent use when its classifiers are.
type Processor struct {
	workingRate int
	outputRate  int

	filter  filter.Filter
	gate    *gate.Gate
	norm    *loudness.Normalizer
	engine  *metrics.Engine
	metrics *observe.Metrics
}

// New builds a Processor from cfg. m may be nil to disable instrumentation.
func New(cfg *config.Config, cls Classifiers, m *observe.Metrics) (*Processor, error) {
	p := &Processor{
		workingRate: cfg.WorkingRate,
		outputRate:  cfg.OutputRate,
		metrics:     m,
	}
	var err error
	if cfg.Filter.Enabled {
		if p.filter, err = filter.Design(cfg.Filter.Spec(), cfg.WorkingRate); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if cfg.Gate.Enabled {
		if p.gate, err = gate.New(cfg.Gate.At(cfg.WorkingRate), cls.Gate); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if cfg.Loudness.Enabled {
		if p.norm, err = loudness.New(cfg.Loudness.Normalizer()); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if cfg.Metrics.Enabled {
		mc := cls.Metrics
		if mc == nil {
			mc = cls.Gate
		}
		if p.engine, err = metrics.New(cfg.Metrics.Engine(), mc); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	return p, nil
}

// Process conditions buf. Input at a rate other than the working rate is
// resampled first.
func (p *Processor) Process(ctx context.Context, buf audio.Buffer) (*Result, error) {
	log := observe.Logger(ctx)
	res := &Result{Gain: 1}

	cur, err := p.resample(ctx, buf, p.workingRate)
	if err != nil {
		return nil, err
	}

	if p.filter != nil {
		_, end := observe.StartStage(ctx, p.metrics, observe.StageFilter)
		cur = p.filter.Apply(cur)
		end()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.gate != nil {
		_, end := observe.StartStage(ctx, p.metrics, observe.StageGate)
		gated, err := p.gate.Apply(cur)
		end()
		if err != nil {
			return nil, fmt.Errorf("pipeline: gate: %w", err)
		}
		cur = gated.Audio
		res.Segments = gated.Segments
		res.Flags = gated.Flags
		if p.metrics != nil {
			p.metrics.RecordSegments(ctx, len(gated.Segments))
		}
		log.Debug("gate applied", "segments", len(gated.Segments), "speech_frames", gated.Flags.Count(), "frames", len(gated.Flags))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.norm != nil {
		_, end := observe.StartStage(ctx, p.metrics, observe.StageLoudness)
		norm := p.norm.Apply(cur)
		end()
		cur = norm.Audio
		res.Gain = norm.Gain
		res.Limited = norm.Limited
		if p.metrics != nil {
			p.metrics.RecordGain(ctx, norm.GainDB(), norm.Limited)
		}
		if norm.Limited {
			log.Info("peak limiter engaged", "peak", norm.Peak, "gain_db", norm.GainDB())
		}
	}

	if res.Output, err = p.resample(ctx, cur, p.outputRate); err != nil {
		return nil, err
	}
	if sharesSamples(res.Output, buf) {
		res.Output = res.Output.Clone()
	}

	if p.engine != nil {
		ref, err := p.resample(ctx, buf, p.outputRate)
		if err != nil {
			return nil, err
		}
		mctx, end := observe.StartStage(ctx, p.metrics, observe.StageMetrics)
		res.Report, err = p.engine.Compare(mctx, ref, res.Output)
		end()
		if err != nil {
			return nil, fmt.Errorf("pipeline: metrics: %w", err)
		}
	}
	return res, nil
}

func sharesSamples(a, b audio.Buffer) bool {
	return len(a.Samples) > 0 && len(b.Samples) > 0 && &a.Samples[0] == &b.Samples[0]
}

// resample converts buf to rate, timing the stage only when work is done.
func (p *Processor) resample(ctx context.Context, buf audio.Buffer, rate int) (audio.Buffer, error) {
	if buf.SampleRate == rate {
		return buf, nil
	}
	_, end := observe.StartStage(ctx, p.metrics, observe.StageResample)
	defer end()
	out, err := audio.Resample(buf, rate)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("pipeline: resample to %d Hz: %w", rate, err)
	}
	return out, nil
}
