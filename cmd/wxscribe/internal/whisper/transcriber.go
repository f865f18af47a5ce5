// Package whisper defines the speech recognition engine used by the
// transcription pipeline and implements it on top of WhisperX, driven through
// a Python helper process.
package whisper

import (
	"context"
	"errors"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/audio"
)

// ErrAlignmentUnavailable is returned when no alignment model can be loaded
// for a language or the alignment itself fails.
var ErrAlignmentUnavailable = errors.New("alignment unavailable")

// Word is one word with its aligned timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score,omitempty"`
}

// Segment is a continuous stretch of speech. Start and End are seconds from
// the beginning of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	// Words is empty unless the segment went through alignment.
	Words []Word `json:"words,omitempty"`
}

// TranscriptionResult is the raw output of the inference step.
type TranscriptionResult struct {
	Segments []Segment `json:"segments"`
	// Language is the detected language code; empty when the model did not
	// report one.
	Language string `json:"language"`
}

// ProgressFunc receives a phase-local completion percentage in [0,100].
type ProgressFunc func(percent float64)

// LoadOptions selects the model to load.
type LoadOptions struct {
	Model       string
	Device      string
	ComputeType string
	Language    string
}

// TranscribeOptions tunes one inference call.
type TranscribeOptions struct {
	BatchSize int
	Language  string
}

// Engine loads the pieces of the recognition pipeline.
type Engine interface {
	// Load loads an inference model.
	Load(ctx context.Context, opts LoadOptions) (Model, error)

	// LoadAudio loads the audio at path as a 16 kHz mono waveform.
	LoadAudio(ctx context.Context, path string) (*audio.Buffer, error)

	// LoadAligner loads the word alignment model for a language. Failures
	// wrap ErrAlignmentUnavailable.
	LoadAligner(ctx context.Context, language, device string) (Aligner, error)

	// Close releases the engine and everything it loaded.
	Close() error
}

// Model is a loaded inference model.
type Model interface {
	// Transcribe runs inference. onProgress may be nil; it is only called
	// while Transcribe runs.
	Transcribe(ctx context.Context, buf *audio.Buffer, opts TranscribeOptions, onProgress ProgressFunc) (*TranscriptionResult, error)
	Close() error
}

// Aligner refines segment timings to word level.
type Aligner interface {
	// Align returns refined segments. onProgress may be nil; it is only
	// called while Align runs.
	Align(ctx context.Context, segments []Segment, buf *audio.Buffer, onProgress ProgressFunc) ([]Segment, error)
	Close() error
}
