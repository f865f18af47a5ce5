// Package export writes a transcript as a Word document with a metadata
// table, one timestamped paragraph per segment and a generation footer.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/whisper"
)

// maxCollisions bounds the retries when another process claims the
// resolved name between resolution and creation.
const maxCollisions = 100

// Exporter writes transcripts into one output directory.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock replaces time.Now for the date row and the footer.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Exporter) { e.logger = log }
}

// NewExporter returns an exporter writing into dir.
func NewExporter(dir string, opts ...Option) *Exporter {
	e := &Exporter{dir: dir, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dir returns the output directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes segments to a new document named after meta.Title and returns
// its path. Existing files are never overwritten.
func (e *Exporter) Export(segments []whisper.Segment, meta RunMetadata) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	f, path, err := e.create(meta.Title)
	if err != nil {
		return "", err
	}

	doc, err := render(segments, meta, e.now())
	if err == nil {
		err = doc.Write(f)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	e.logger.Info("transcript exported", "path", path, "segments", len(segments))
	return path, nil
}

// create opens the first free output path exclusively.
func (e *Exporter) create(stem string) (*os.File, string, error) {
	for i := 0; i < maxCollisions; i++ {
		path, err := ResolveOutputPath(e.dir, stem)
		if err != nil {
			return nil, "", err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free output name for %q in %s", stem, e.dir)
}
