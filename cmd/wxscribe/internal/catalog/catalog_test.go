package catalog

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("/tmp/talk.MP4"))
	assert.True(t, IsVideo("meeting.webm"))
	assert.False(t, IsVideo("talk.wav"))
	assert.False(t, IsVideo("notes.txt"))
}

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"a.mp3", "a.WAV", "a.m4a", "a.mkv", "a.wmv"} {
		assert.True(t, IsSupported(name), name)
	}
	for _, name := range []string{"a.docx", "a", "a.wav.bak"} {
		assert.False(t, IsSupported(name), name)
	}
	assert.Len(t, SupportedExtensions(), 13)
}

func TestLookupLanguage(t *testing.T) {
	l, err := LookupLanguage("1")
	require.NoError(t, err)
	assert.Equal(t, "nl", l.Code)
	assert.Equal(t, "Nederlands", l.Name())
	assert.Equal(t, "Dutch", l.EnglishName())

	l, err = LookupLanguage("EN")
	require.NoError(t, err)
	assert.Equal(t, "2", l.Key)
	assert.Equal(t, "English", l.Name())

	_, err = LookupLanguage("xx")
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
	assert.Len(t, Languages(), 10)
}

func TestLookupModel(t *testing.T) {
	m, err := LookupModel("4")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, m.Name)

	m, err = LookupModel("large-v3")
	require.NoError(t, err)
	assert.Equal(t, "6", m.Key)

	_, err = LookupModel("huge")
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestNewThroughputTable_MissingEntry(t *testing.T) {
	rtf := map[string]float64{"tiny": 0.6, "base": 1.0}

	_, err := NewThroughputTable(rtf)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Contains(t, err.Error(), "medium")
	assert.Contains(t, err.Error(), "large-v3")
}

func TestNewThroughputTable_InvalidEntries(t *testing.T) {
	rtf := map[string]float64{}
	for k, v := range defaultRTF {
		rtf[k] = v
	}
	rtf["small"] = 0
	rtf["gigantic"] = 9

	_, err := NewThroughputTable(rtf)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "small")
	assert.Contains(t, err.Error(), "gigantic")
}

func TestEstimate(t *testing.T) {
	d, ok := DefaultThroughput.Estimate(100, "medium")
	require.True(t, ok)
	assert.Equal(t, 300*time.Second, d)

	for _, dur := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, ok := DefaultThroughput.Estimate(dur, "tiny")
		assert.False(t, ok, "duration %v", dur)
	}

	_, ok = DefaultThroughput.Estimate(10, "huge")
	assert.False(t, ok)
}

func TestFormatEstimate(t *testing.T) {
	tests := []struct {
		d    time.Duration
		ok   bool
		want string
	}{
		{36 * time.Second, true, "~36 seconds"},
		{150 * time.Second, true, "~2 minutes"},
		{5400 * time.Second, true, "~1.5 hours"},
		{0, false, UnknownPlaceholder},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatEstimate(tt.d, tt.ok))
	}
}
