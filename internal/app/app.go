// Package app runs the conditioning pipeline over a batch of recordings.
//
// The App owns one [pipeline.Processor] and a run identifier. Run decodes
// each input file, conditions it, and writes the cleaned WAV plus a JSON
// report next to it (or into the configured output directory). Files are
// processed concurrently up to the configured worker count; a failure on one
// file does not stop the others.
//
// For testing, inject a stub processor or a fixed run id via functional
// options (WithProcessor, WithRunID).
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/radioclean/internal/audioio"
	"github.com/MrWong99/radioclean/internal/config"
	"github.com/MrWong99/radioclean/internal/gate"
	"github.com/MrWong99/radioclean/internal/health"
	"github.com/MrWong99/radioclean/internal/loudness"
	"github.com/MrWong99/radioclean/internal/metrics"
	"github.com/MrWong99/radioclean/internal/observe"
	"github.com/MrWong99/radioclean/internal/pipeline"
	"github.com/MrWong99/radioclean/pkg/audio"
)

// Output file suffixes appended to the input's base name.
const (
	CleanSuffix  = "_clean.wav"
	ReportSuffix = "_report.json"
)

// Processor conditions a single buffer. [*pipeline.Processor] is the
// production implementation.
type Processor interface {
	Process(ctx context.Context, buf audio.Buffer) (*pipeline.Result, error)
}

// FileReport is the JSON document written alongside every cleaned file.
type FileReport struct {
	RunID       string          `json:"runId"`
	Input       string          `json:"input"`
	Output      string          `json:"output"`
	InputRate   int             `json:"inputRate"`
	OutputRate  int             `json:"outputRate"`
	DurationSec float64         `json:"durationSec"`
	Gain        float64         `json:"gain"`
	GainDB      float64         `json:"gainDb"`
	Limited     bool            `json:"limited"`
	Segments    []gate.Segment  `json:"segments"`
	Metrics     *metrics.Report `json:"metrics"`
	ProcessedAt time.Time       `json:"processedAt"`
}

// App owns the processor and the batch run state.
type App struct {
	cfg     *config.Config
	proc    Processor
	metrics *observe.Metrics
	runID   string

	progress health.Progress
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProcessor injects a processor instead of building one from config.
func WithProcessor(p Processor) Option {
	return func(a *App) { a.proc = p }
}

// WithRunID fixes the run identifier instead of generating a random one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// New creates an App. The classifiers come from main.go (created via the
// config registry). m may be nil to disable instrumentation.
func New(cfg *config.Config, cls pipeline.Classifiers, m *observe.Metrics, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, metrics: m}
	for _, o := range opts {
		o(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	if a.proc == nil {
		p, err := pipeline.New(cfg, cls, m)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.proc = p
	}
	return a, nil
}

// RunID returns the identifier stamped on every report of this run.
func (a *App) RunID() string { return a.runID }

// Progress returns the live file counters of the current run.
func (a *App) Progress() *health.Progress { return &a.progress }

// Run processes every path and returns the joined per-file errors. Files that
// succeed are written even when others fail.
func (a *App) Run(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("app: no input files")
	}
	if a.cfg.OutputDir != "" {
		if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("app: create output dir: %w", err)
		}
	}

	a.progress.Start(a.runID, len(paths))
	slog.Info("run started", "run_id", a.runID, "files", len(paths), "workers", a.cfg.Workers)
	start := time.Now()

	errs := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(max(a.cfg.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			_, err := a.ProcessFile(ctx, path)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
			}
			a.progress.Complete(err != nil)
			return nil
		})
	}
	_ = g.Wait()

	snap := a.progress.Snapshot()
	slog.Info("run finished", "run_id", a.runID, "files", snap.Done, "failed", snap.Failed, "elapsed", time.Since(start))
	return errors.Join(errs...)
}

// ProcessFile conditions one file and writes its outputs. It returns the
// report that was written.
func (a *App) ProcessFile(ctx context.Context, path string) (_ *FileReport, err error) {
	ctx, span := observe.StartSpan(ctx, "app.process_file")
	defer span.End()
	log := observe.Logger(ctx).With("run_id", a.runID, "input", path)

	defer func() {
		if a.metrics == nil {
			return
		}
		status := observe.StatusOK
		if err != nil {
			status = observe.StatusError
		}
		a.metrics.RecordFile(ctx, status)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := audioio.Decode(path)
	if err != nil {
		return nil, err
	}
	res, err := a.proc.Process(ctx, buf)
	if err != nil {
		log.Error("processing failed", "err", err)
		return nil, err
	}

	cleanPath, reportPath := a.outputPaths(path)
	if err := audioio.Save(cleanPath, res.Output); err != nil {
		return nil, err
	}

	segments := res.Segments
	if segments == nil {
		segments = []gate.Segment{}
	}
	rep := &FileReport{
		RunID:       a.runID,
		Input:       path,
		Output:      cleanPath,
		InputRate:   buf.SampleRate,
		OutputRate:  res.Output.SampleRate,
		DurationSec: res.Output.Duration().Seconds(),
		Gain:        res.Gain,
		GainDB:      loudness.Result{Gain: res.Gain}.GainDB(),
		Limited:     res.Limited,
		Segments:    segments,
		Metrics:     res.Report,
		ProcessedAt: time.Now().UTC(),
	}
	if err := writeReport(reportPath, rep); err != nil {
		return nil, err
	}
	log.Info("file processed", "output", cleanPath, "segments", len(res.Segments), "gain_db", rep.GainDB, "limited", res.Limited)
	return rep, nil
}

// outputPaths returns the cleaned-audio and report paths for input.
func (a *App) outputPaths(input string) (clean, report string) {
	dir := a.cfg.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+CleanSuffix), filepath.Join(dir, base+ReportSuffix)
}

func writeReport(path string, rep *FileReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("app: encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("app: write report: %w", err)
	}
	return nil
}
