// Package whispertest provides an in-memory whisper.Engine for tests of the
// pipeline and the run controller.
package whispertest

import (
	"context"
	"sync"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/audio"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/whisper"
)

// FakeEngine replays canned results. The zero value transcribes to no
// segments and aligns by returning its input.
type FakeEngine struct {
	mu sync.Mutex

	Result   whisper.TranscriptionResult
	Aligned  []whisper.Segment // nil: Align returns its input
	Duration float64           // seconds reported by LoadAudio

	LoadErr       error
	AudioErr      error
	TranscribeErr error
	AlignerErr    error
	AlignErr      error

	// TranscribeProgress and AlignProgress are reported, in order, during
	// the corresponding call.
	TranscribeProgress []float64
	AlignProgress      []float64

	// BeforeTranscribe runs inside Transcribe, e.g. to cancel a context.
	BeforeTranscribe func()

	Calls         []string
	LoadOptions   whisper.LoadOptions
	AlignLanguage string
	ModelClosed   bool
	AlignerClosed bool
	EngineClosed  bool
}

func (f *FakeEngine) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}

func (f *FakeEngine) Load(ctx context.Context, opts whisper.LoadOptions) (whisper.Model, error) {
	f.record("load")
	f.LoadOptions = opts
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fakeModel{f: f}, nil
}

func (f *FakeEngine) LoadAudio(ctx context.Context, path string) (*audio.Buffer, error) {
	f.record("load-audio")
	if f.AudioErr != nil {
		return nil, f.AudioErr
	}
	frames := int64(f.Duration * audio.SampleRate)
	return &audio.Buffer{Path: path, SampleRate: audio.SampleRate, Channels: audio.Channels, BitsPerSample: 32, Frames: frames, Peak: -1}, nil
}

func (f *FakeEngine) LoadAligner(ctx context.Context, language, device string) (whisper.Aligner, error) {
	f.record("load-aligner")
	f.AlignLanguage = language
	if f.AlignerErr != nil {
		return nil, f.AlignerErr
	}
	return &fakeAligner{f: f}, nil
}

func (f *FakeEngine) Close() error {
	f.record("close")
	f.EngineClosed = true
	return nil
}

type fakeModel struct{ f *FakeEngine }

func (m *fakeModel) Transcribe(ctx context.Context, buf *audio.Buffer, opts whisper.TranscribeOptions, onProgress whisper.ProgressFunc) (*whisper.TranscriptionResult, error) {
	m.f.record("transcribe")
	if m.f.BeforeTranscribe != nil {
		m.f.BeforeTranscribe()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range m.f.TranscribeProgress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if m.f.TranscribeErr != nil {
		return nil, m.f.TranscribeErr
	}
	res := m.f.Result
	res.Segments = append([]whisper.Segment(nil), m.f.Result.Segments...)
	return &res, nil
}

func (m *fakeModel) Close() error {
	m.f.record("close-model")
	m.f.ModelClosed = true
	return nil
}

type fakeAligner struct{ f *FakeEngine }

func (a *fakeAligner) Align(ctx context.Context, segments []whisper.Segment, buf *audio.Buffer, onProgress whisper.ProgressFunc) ([]whisper.Segment, error) {
	a.f.record("align")
	for _, p := range a.f.AlignProgress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if a.f.AlignErr != nil {
		return nil, a.f.AlignErr
	}
	if a.f.Aligned != nil {
		return a.f.Aligned, nil
	}
	return segments, nil
}

func (a *fakeAligner) Close() error {
	a.f.record("close-aligner")
	a.f.AlignerClosed = true
	return nil
}
