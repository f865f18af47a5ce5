// Package audio describes the waveform handed to the speech recognition
// engine and inspects PCM WAV files without an external tool.
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/youpy/go-wav"
)

// Canonical format expected by the recognizer.
const (
	SampleRate = 16000
	Channels   = 1
)

// ErrUnsupportedFormat is returned for WAV files that are not integer PCM.
var ErrUnsupportedFormat = errors.New("unsupported wav format")

const (
	// formatPCM is the WAVE_FORMAT_PCM tag.
	formatPCM = 1
	// readChunk is the number of frames read per ReadSamples call.
	readChunk = 4096
)

// Buffer describes loaded audio. Frames counts samples per channel.
type Buffer struct {
	Path          string
	SampleRate    int
	Channels      int
	BitsPerSample int
	Frames        int64
	// Peak is the largest absolute sample value scaled to [0,1]; -1 when
	// unknown.
	Peak float64
}

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames) / float64(b.SampleRate)
}

// Canonical reports whether the audio is already 16 kHz mono.
func (b *Buffer) Canonical() bool {
	return b.SampleRate == SampleRate && b.Channels == Channels
}

// Silent reports whether every sample is zero. Unknown peaks are not silent.
func (b *Buffer) Silent() bool {
	return b.Peak == 0 && b.Frames > 0
}

// IsWAV reports whether path has a .wav extension.
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// Inspect reads a PCM WAV file completely and returns its format, length and
// peak level. Samples are not retained.
func Inspect(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("read wav header of %s: %w", path, err)
	}
	if format.AudioFormat != formatPCM {
		return nil, fmt.Errorf("%w: format tag %d in %s", ErrUnsupportedFormat, format.AudioFormat, path)
	}
	switch format.BitsPerSample {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per sample in %s", ErrUnsupportedFormat, format.BitsPerSample, path)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return nil, fmt.Errorf("%w: %d channels in %s", ErrUnsupportedFormat, format.NumChannels, path)
	}

	buf := &Buffer{
		Path:          path,
		SampleRate:    int(format.SampleRate),
		Channels:      int(format.NumChannels),
		BitsPerSample: int(format.BitsPerSample),
	}
	scale := math.Ldexp(1, int(format.BitsPerSample)-1)
	var peak float64

	for {
		samples, err := reader.ReadSamples(readChunk)
		for _, s := range samples {
			for ch := 0; ch < buf.Channels; ch++ {
				if v := math.Abs(float64(s.Values[ch])) / scale; v > peak {
					peak = v
				}
			}
		}
		buf.Frames += int64(len(samples))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read samples of %s: %w", path, err)
		}
		if len(samples) == 0 {
			break
		}
	}

	buf.Peak = math.Min(peak, 1)
	return buf, nil
}
