// Package runner sequences one transcription run: input checks, the
// temporary workspace, media normalization, the pipeline and the export.
// Execute is the error boundary the CLI calls.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/export"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/media"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/pipeline"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/progress"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/whisper"
	"github.com/houzhh15/wxscribe/pkg/logger"
	"github.com/houzhh15/wxscribe/pkg/metrics"
)

// ErrNoInput ends a run without error when no recording was chosen.
var ErrNoInput = errors.New("no input file selected")

// Process exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// Run statuses recorded in metrics.
const (
	statusCompleted   = "completed"
	statusFailed      = "failed"
	statusInterrupted = "interrupted"
	statusNoInput     = "no_input"
)

const rule = "============================================"

// EngineFactory creates the inference engine for one run. workspace is the
// run's temporary directory.
type EngineFactory func(workspace string, log *slog.Logger) whisper.Engine

// Settings are the fixed parameters of every run.
type Settings struct {
	Device            string
	ComputeType       string
	BatchSize         int
	CompressThreshold int64
	// Binaries maps tool names to explicit paths.
	Binaries    map[string]string
	MetricsFile string
}

// Input names the recording and the choices made for it.
type Input struct {
	Path     string
	Model    string // name or menu key
	Language string // ISO code or menu key
}

// Report summarizes a completed run.
type Report struct {
	RunID      string
	OutputPath string
	Language   string
	Segments   int
	Elapsed    time.Duration
	Degraded   bool
}

// Controller runs transcriptions. Runs are independent; a controller may
// execute several in sequence.
type Controller struct {
	settings   Settings
	executor   dependency.DependencyExecutor
	engines    EngineFactory
	exporter   *export.Exporter
	out        io.Writer
	logger     *slog.Logger
	plan       progress.Plan
	throughput *catalog.ThroughputTable
	tempRoot   string
	stat       func(string) (os.FileInfo, error)
	reveal     func(ctx context.Context, path string) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithTempRoot sets where run workspaces are created (default os.TempDir).
func WithTempRoot(dir string) Option {
	return func(c *Controller) { c.tempRoot = dir }
}

// WithStat replaces os.Stat for the size checks.
func WithStat(stat func(string) (os.FileInfo, error)) Option {
	return func(c *Controller) { c.stat = stat }
}

// WithReveal shows the exported file after a successful run.
func WithReveal(reveal func(ctx context.Context, path string) error) Option {
	return func(c *Controller) { c.reveal = reveal }
}

// WithPlan overrides progress.DefaultPlan.
func WithPlan(plan progress.Plan) Option {
	return func(c *Controller) { c.plan = plan }
}

// New creates a controller printing its console output to out.
func New(settings Settings, executor dependency.DependencyExecutor, engines EngineFactory, exporter *export.Exporter, out io.Writer, log *slog.Logger, opts ...Option) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		settings:   settings,
		executor:   executor,
		engines:    engines,
		exporter:   exporter,
		out:        out,
		logger:     log,
		plan:       progress.DefaultPlan,
		throughput: catalog.DefaultThroughput,
		stat:       os.Stat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run transcribes in.Path. The workspace is removed on every return path.
func (c *Controller) Run(ctx context.Context, in Input) (*Report, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, ErrNoInput
	}
	model, err := catalog.LookupModel(orDefault(in.Model, catalog.DefaultModel))
	if err != nil {
		return nil, err
	}
	lang, err := catalog.LookupLanguage(orDefault(in.Language, catalog.DefaultLanguage))
	if err != nil {
		return nil, err
	}

	info, err := c.stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", in.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", in.Path)
	}
	if !catalog.IsSupported(in.Path) {
		return nil, fmt.Errorf("unsupported format: %s", strings.ToLower(filepath.Ext(in.Path)))
	}

	runID := uuid.NewString()[:8]
	log := c.logger.With("run_id", runID)
	start := time.Now()

	ws, err := newWorkspace(c.tempRoot, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			log.Warn("remove workspace", "dir", ws.dir, "error", err)
		}
	}()
	log.Info("run started", "input", in.Path, "model", model.Name, "language", lang.Code, "workspace", ws.dir)

	execCfg := dependency.ExecutorConfig{
		WorkspaceDir:     ws.dir,
		LocalBinaryPaths: c.settings.Binaries,
	}
	client := dependency.NewClientWithExecutor(c.executor, execCfg, log)

	fmt.Fprintf(c.out, "  File: %s (%.1f MB)\n", filepath.Base(in.Path), float64(info.Size())/(1024*1024))
	duration, known := client.ProbeDuration(ctx, in.Path)
	if known {
		est, ok := c.throughput.Estimate(duration, model.Name)
		fmt.Fprintf(c.out, "  Duration: %s\n", export.FormatTimestamp(duration))
		fmt.Fprintf(c.out, "  Estimated processing time: %s\n", catalog.FormatEstimate(est, ok))
	}
	fmt.Fprintf(c.out, "  Device: %s\n", strings.ToUpper(c.settings.Device))
	fmt.Fprintf(c.out, "  Compute: %s\n\n", c.settings.ComputeType)
	fmt.Fprintln(c.out, "Processing started...")
	fmt.Fprintln(c.out)

	normalizer := media.NewNormalizer(client, client.PathManager(), c.out, log,
		media.WithThreshold(c.settings.CompressThreshold), media.WithStat(c.stat))
	norm, err := normalizer.Normalize(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	if norm.Path != in.Path {
		// the converted file gives a more accurate length
		if d, ok := client.ProbeDuration(ctx, norm.Path); ok {
			duration, known = d, true
		}
	}

	engine := c.engines(ws.dir, log)
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("close engine", "error", err)
		}
	}()
	p, err := pipeline.New(engine, c.plan, c.out, log)
	if err != nil {
		return nil, err
	}
	outcome, err := p.Run(ctx, pipeline.Request{
		AudioPath:   norm.Path,
		Model:       model.Name,
		Language:    lang.Code,
		Device:      c.settings.Device,
		ComputeType: c.settings.ComputeType,
		BatchSize:   c.settings.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	languageName := lang.Name()
	if detected, err := catalog.LookupLanguage(outcome.Language); err == nil {
		languageName = detected.Name()
	} else if outcome.Language != "" {
		languageName = outcome.Language
	}
	meta := export.NewRunMetadata(in.Path, duration, known, model.Name, languageName)
	path, err := c.export(outcome.Segments, meta, log)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out, "  DONE!")
	fmt.Fprintf(c.out, "  Processing time: %s\n", export.FormatTimestamp(elapsed.Seconds()))
	fmt.Fprintf(c.out, "  Output: %s\n", path)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out)

	if c.reveal != nil {
		if err := c.reveal(ctx, path); err != nil {
			log.Debug("reveal output", "error", err)
		}
	}

	log.Info("run completed", "output", path, "segments", len(outcome.Segments),
		"degraded", outcome.Alignment.IsDegraded(), "elapsed_ms", elapsed.Milliseconds())
	return &Report{
		RunID:      runID,
		OutputPath: path,
		Language:   outcome.Language,
		Segments:   len(outcome.Segments),
		Elapsed:    elapsed,
		Degraded:   outcome.Alignment.IsDegraded(),
	}, nil
}

func (c *Controller) export(segments []whisper.Segment, meta export.RunMetadata, log *slog.Logger) (string, error) {
	ph, ok := c.plan.Lookup(progress.PhaseExport)
	if !ok {
		return "", fmt.Errorf("progress plan has no %s phase", progress.PhaseExport)
	}
	bar, err := progress.ForPhase(c.out, ph)
	if err != nil {
		return "", err
	}

	segments = append([]whisper.Segment(nil), segments...)
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	start := time.Now()
	bar.Start()
	path, err := c.exporter.Export(segments, meta)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintln(c.out)
		metrics.RecordPhase(progress.PhaseExport, metrics.OutcomeFailed, elapsed.Seconds())
		logger.LogPhase(log, progress.PhaseExport, logger.ActionFailed, elapsed.Milliseconds(), "PHASE_FAILED")
		return "", &pipeline.PhaseError{Phase: progress.PhaseExport, Err: err}
	}
	bar.Finish()
	metrics.RecordPhase(progress.PhaseExport, metrics.OutcomeSuccess, elapsed.Seconds())
	logger.LogPhase(log, progress.PhaseExport, logger.ActionCompleted, elapsed.Milliseconds(), "")
	return path, nil
}

// Execute runs in and converts the outcome into a process exit code. It
// never panics and writes the metrics textfile when one is configured.
func (c *Controller) Execute(ctx context.Context, in Input) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(c.out, "\n\n  ERROR: internal error: %v\n", r)
			c.logger.Error("run panicked", "panic", r, "stack", string(debug.Stack()))
			metrics.RecordRun(statusFailed)
			code = ExitFailure
		}
		c.writeMetrics()
	}()

	_, err := c.Run(ctx, in)
	switch {
	case err == nil:
		metrics.RecordRun(statusCompleted)
		return ExitOK
	case errors.Is(err, ErrNoInput):
		fmt.Fprintln(c.out, "\n  No file selected. Exiting.")
		metrics.RecordRun(statusNoInput)
		return ExitOK
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		fmt.Fprintln(c.out, "\n\n  Interrupted by user.")
		c.logger.Info("run interrupted", "error", err)
		metrics.RecordRun(statusInterrupted)
		return ExitInterrupted
	default:
		c.reportFailure(err)
		metrics.RecordRun(statusFailed)
		return ExitFailure
	}
}

func (c *Controller) reportFailure(err error) {
	fmt.Fprintf(c.out, "\n\n  ERROR: %v\n", err)
	attrs := []any{"error", err}
	var pe *pipeline.PhaseError
	if errors.As(err, &pe) {
		fmt.Fprintf(c.out, "  Phase: %s\n", pe.Phase)
		attrs = append(attrs, "phase", pe.Phase)
	}
	if cause := rootCause(err); cause != err {
		fmt.Fprintf(c.out, "  Cause: %v\n", cause)
	}
	var he *whisper.HelperError
	if errors.As(err, &he) {
		attrs = append(attrs, "helper_cmd", he.Cmd)
	}
	c.logger.Error("run failed", attrs...)
}

func (c *Controller) writeMetrics() {
	if c.settings.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(c.settings.MetricsFile); err != nil {
		c.logger.Warn("write metrics", "error", err)
	}
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
