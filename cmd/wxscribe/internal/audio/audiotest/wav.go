// Package audiotest writes WAV fixtures for tests.
package audiotest

import (
	"math"
	"os"
	"testing"

	"github.com/youpy/go-wav"
)

// WriteTone writes a 16-bit PCM WAV of the given length holding a 440 Hz sine
// at half scale, or silence when amplitude is zero.
func WriteTone(t testing.TB, path string, seconds float64, sampleRate uint32, channels uint16, amplitude float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	n := uint32(seconds * float64(sampleRate))
	samples := make([]wav.Sample, n)
	for i := range samples {
		v := int(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		samples[i].Values[0] = v
		if channels > 1 {
			samples[i].Values[1] = v
		}
	}

	w := wav.NewWriter(f, n, channels, sampleRate, 16)
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}
