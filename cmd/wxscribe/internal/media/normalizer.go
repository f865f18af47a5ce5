// Package media turns an arbitrary input recording into an audio file the
// transcription pipeline can load: video inputs get their audio track
// extracted, oversized files get a compressed copy.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/progress"
	"github.com/houzhh15/wxscribe/pkg/logger"
	"github.com/houzhh15/wxscribe/pkg/metrics"
)

// DefaultCompressThreshold is the input size above which a compressed copy is
// made.
const DefaultCompressThreshold int64 = 500 * 1024 * 1024

// Tools is the subset of the dependency client the normalizer needs.
type Tools interface {
	ProbeDuration(ctx context.Context, path string) (float64, bool)
	ConvertVideo(ctx context.Context, inputPath, outputPath string, onTime func(seconds float64)) error
	CompressAudio(ctx context.Context, inputPath, outputPath string) error
}

// Result describes the normalized audio.
type Result struct {
	Path       string
	Converted  bool
	Compressed bool
}

// Normalizer prepares input files. It writes only inside its workspace.
type Normalizer struct {
	tools     Tools
	paths     *dependency.PathManager
	out       io.Writer
	logger    *slog.Logger
	threshold int64
	stat      func(string) (os.FileInfo, error)
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithThreshold overrides DefaultCompressThreshold.
func WithThreshold(bytes int64) Option {
	return func(n *Normalizer) {
		if bytes > 0 {
			n.threshold = bytes
		}
	}
}

// WithStat replaces os.Stat, so tests can fake file sizes.
func WithStat(stat func(string) (os.FileInfo, error)) Option {
	return func(n *Normalizer) { n.stat = stat }
}

// NewNormalizer creates a Normalizer writing console output to out.
func NewNormalizer(tools Tools, paths *dependency.PathManager, out io.Writer, log *slog.Logger, opts ...Option) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	n := &Normalizer{
		tools:     tools,
		paths:     paths,
		out:       out,
		logger:    log,
		threshold: DefaultCompressThreshold,
		stat:      os.Stat,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns the path of audio ready for transcription. Video inputs
// are converted first; the size check then applies to whatever path is
// current. Inputs that need neither step are returned unchanged.
func (n *Normalizer) Normalize(ctx context.Context, src string) (Result, error) {
	res := Result{Path: src}

	if catalog.IsVideo(src) {
		converted, err := n.convert(ctx, src)
		if err != nil {
			return Result{}, err
		}
		res.Path = converted
		res.Converted = true
	}

	info, err := n.stat(res.Path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", res.Path, err)
	}
	if info.Size() <= n.threshold {
		return res, nil
	}

	compressed, err := n.compress(ctx, res.Path, info.Size())
	if err != nil {
		return Result{}, err
	}
	res.Path = compressed
	res.Compressed = true
	return res, nil
}

func (n *Normalizer) convert(ctx context.Context, src string) (string, error) {
	fmt.Fprintln(n.out, "  Video detected, extracting audio...")

	duration, known := n.tools.ProbeDuration(ctx, src)
	bar, err := progress.ForPhase(n.out, progress.VideoConversion)
	if err != nil {
		return "", err
	}
	bar.Start()

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	dst := n.paths.ConvertedAudioPath(stem)
	start := time.Now()

	err = n.tools.ConvertVideo(ctx, src, dst, func(sec float64) {
		if !known {
			return
		}
		bar.Report(math.Min(sec/duration*100, 100))
	})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintln(n.out)
		metrics.RecordPhase(progress.PhaseConversion, metrics.OutcomeFailed, elapsed.Seconds())
		logger.LogPhase(n.logger, progress.PhaseConversion, logger.ActionFailed, elapsed.Milliseconds(), "CONVERSION_FAILED")
		return "", fmt.Errorf("video conversion failed: %w", err)
	}

	bar.Finish()
	metrics.RecordPhase(progress.PhaseConversion, metrics.OutcomeSuccess, elapsed.Seconds())
	logger.LogPhase(n.logger, progress.PhaseConversion, logger.ActionCompleted, elapsed.Milliseconds(), "")
	return dst, nil
}

func (n *Normalizer) compress(ctx context.Context, src string, size int64) (string, error) {
	fmt.Fprintf(n.out, "  Large file (%.0f MB), compressing...\n", megabytes(size))

	dst := n.paths.CompressedAudioPath()
	if err := n.tools.CompressAudio(ctx, src, dst); err != nil {
		return "", fmt.Errorf("audio compression failed: %w", err)
	}

	info, err := n.stat(dst)
	if err != nil {
		return "", fmt.Errorf("stat compressed audio: %w", err)
	}
	fmt.Fprintf(n.out, "  Compressed: %.0f MB -> %.0f MB\n", megabytes(size), megabytes(info.Size()))
	n.logger.Info("audio compressed", "source_bytes", size, "compressed_bytes", info.Size())
	return dst, nil
}

func megabytes(b int64) float64 {
	return float64(b) / (1024 * 1024)
}
