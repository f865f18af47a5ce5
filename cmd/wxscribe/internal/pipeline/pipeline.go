// Package pipeline runs the speech recognition phases in order: model load,
// audio load, inference and best-effort alignment. Each phase reports its
// progress on its own slice of the global progress bar.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/audio"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/degradation"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/progress"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/whisper"
	"github.com/houzhh15/wxscribe/pkg/logger"
	"github.com/houzhh15/wxscribe/pkg/metrics"
)

// Request selects what to transcribe and how.
type Request struct {
	AudioPath   string
	Model       string
	Language    string
	Device      string
	ComputeType string
	BatchSize   int
}

// Outcome is the result of a pipeline run.
type Outcome struct {
	// Segments are the aligned segments, or the raw inference segments when
	// alignment degraded.
	Segments  []whisper.Segment
	Language  string
	Alignment degradation.Outcome[[]whisper.Segment]
	Audio     *audio.Buffer
}

// PhaseError reports the phase a run failed in.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

var requiredPhases = []string{
	progress.PhaseModelLoad,
	progress.PhaseAudioLoad,
	progress.PhaseInference,
	progress.PhaseAlignment,
}

// Pipeline drives a whisper.Engine through the transcription phases.
type Pipeline struct {
	engine whisper.Engine
	plan   progress.Plan
	out    io.Writer
	logger *slog.Logger
}

// New validates plan and returns a pipeline writing progress to out.
func New(engine whisper.Engine, plan progress.Plan, out io.Writer, log *slog.Logger) (*Pipeline, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	for _, name := range requiredPhases {
		if _, ok := plan.Lookup(name); !ok {
			return nil, fmt.Errorf("progress plan has no %s phase", name)
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{engine: engine, plan: plan, out: out, logger: log}, nil
}

// Run executes the phases. Failures of model load, audio load and inference
// end the run with a *PhaseError; alignment failures fall back to the raw
// segments. The model and aligner are released on every path.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	var (
		model   whisper.Model
		aligner whisper.Aligner
	)
	defer func() { p.release(model, aligner) }()

	// model load
	bar, start := p.begin(progress.PhaseModelLoad)
	model, err := p.engine.Load(ctx, whisper.LoadOptions{
		Model:       req.Model,
		Device:      req.Device,
		ComputeType: req.ComputeType,
		Language:    req.Language,
	})
	if err != nil {
		model = nil
		return nil, p.fail(progress.PhaseModelLoad, start, err)
	}
	p.end(bar, progress.PhaseModelLoad, start)

	// audio load
	bar, start = p.begin(progress.PhaseAudioLoad)
	buf, err := p.engine.LoadAudio(ctx, req.AudioPath)
	if err != nil {
		return nil, p.fail(progress.PhaseAudioLoad, start, err)
	}
	p.end(bar, progress.PhaseAudioLoad, start)
	if buf.Silent() {
		fmt.Fprintln(p.out, "  Warning: the audio appears to be silent.")
		p.logger.Warn("audio is silent", "path", buf.Path, "frames", buf.Frames)
	}

	// inference
	bar, start = p.begin(progress.PhaseInference)
	res, err := model.Transcribe(ctx, buf, whisper.TranscribeOptions{
		BatchSize: req.BatchSize,
		Language:  req.Language,
	}, bar.Report)
	if err != nil {
		return nil, p.fail(progress.PhaseInference, start, err)
	}
	p.end(bar, progress.PhaseInference, start)

	language := res.Language
	if language == "" {
		language = req.Language
	}
	fmt.Fprintf(p.out, "  Language: %s, Segments: %d\n", language, len(res.Segments))

	// alignment
	bar, _ = p.begin(progress.PhaseAlignment)
	raw := res.Segments
	alignment, err := degradation.Attempt(ctx, p.logger, progress.PhaseAlignment, func() ([]whisper.Segment, error) {
		a, err := p.engine.LoadAligner(ctx, language, req.Device)
		if err != nil {
			return nil, err
		}
		aligner = a
		return a.Align(ctx, append([]whisper.Segment(nil), raw...), buf, bar.Report)
	}, raw)
	if err != nil {
		fmt.Fprintln(p.out)
		return nil, &PhaseError{Phase: progress.PhaseAlignment, Err: err}
	}
	if alignment.IsDegraded() {
		fmt.Fprintf(p.out, "\n  Warning: alignment failed (%v), using raw segments.\n", alignment.Reason)
	}
	bar.Finish()

	return &Outcome{
		Segments:  alignment.Value,
		Language:  language,
		Alignment: alignment,
		Audio:     buf,
	}, nil
}

// Plan returns the validated progress plan.
func (p *Pipeline) Plan() progress.Plan {
	return p.plan
}

func (p *Pipeline) begin(name string) (*progress.Aggregator, time.Time) {
	ph, _ := p.plan.Lookup(name)
	bar, err := progress.ForPhase(p.out, ph)
	if err != nil {
		// New validated the plan
		panic(err)
	}
	bar.Start()
	return bar, time.Now()
}

func (p *Pipeline) end(bar *progress.Aggregator, name string, start time.Time) {
	bar.Finish()
	elapsed := time.Since(start)
	metrics.RecordPhase(name, metrics.OutcomeSuccess, elapsed.Seconds())
	logger.LogPhase(p.logger, name, logger.ActionCompleted, elapsed.Milliseconds(), "")
}

func (p *Pipeline) fail(name string, start time.Time, err error) error {
	fmt.Fprintln(p.out)
	elapsed := time.Since(start)
	metrics.RecordPhase(name, metrics.OutcomeFailed, elapsed.Seconds())
	logger.LogPhase(p.logger, name, logger.ActionFailed, elapsed.Milliseconds(), "PHASE_FAILED")
	return &PhaseError{Phase: name, Err: err}
}

func (p *Pipeline) release(model whisper.Model, aligner whisper.Aligner) {
	if model != nil {
		if err := model.Close(); err != nil {
			p.logger.Warn("release model", "error", err)
		}
	}
	if aligner != nil {
		if err := aligner.Close(); err != nil {
			p.logger.Warn("release aligner", "error", err)
		}
	}
	runtime.GC()
}
