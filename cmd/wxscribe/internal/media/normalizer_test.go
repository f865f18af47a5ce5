package media

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency/deptest"
)

const mb = 1024 * 1024

type fakeInfo struct {
	name string
	size int64
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

// sizes fakes os.Stat from a path -> size table.
func sizes(table map[string]int64) func(string) (os.FileInfo, error) {
	return func(path string) (os.FileInfo, error) {
		size, ok := table[path]
		if !ok {
			return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
		}
		return fakeInfo{name: path, size: size}, nil
	}
}

func newNormalizer(t *testing.T, fake *deptest.FakeExecutor, stat map[string]int64) (*Normalizer, *dependency.PathManager, *bytes.Buffer) {
	t.Helper()
	ws := t.TempDir()
	client := dependency.NewClientWithExecutor(fake, dependency.ExecutorConfig{WorkspaceDir: ws}, nil)
	var out bytes.Buffer
	n := NewNormalizer(client, client.PathManager(), &out, nil, WithStat(sizes(stat)))
	return n, client.PathManager(), &out
}

func TestNormalize_SmallAudioUnchanged(t *testing.T) {
	fake := &deptest.FakeExecutor{}
	n, _, out := newNormalizer(t, fake, map[string]int64{"/rec/talk.mp3": 12 * mb})

	res, err := n.Normalize(context.Background(), "/rec/talk.mp3")

	require.NoError(t, err)
	assert.Equal(t, Result{Path: "/rec/talk.mp3"}, res)
	assert.Empty(t, fake.ExecutedCommands)
	assert.Empty(t, out.String())
}

func TestNormalize_CompressThreshold(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		compress bool
	}{
		{"499 MB stays", 499 * mb, false},
		{"exactly 500 MB stays", 500 * mb, false},
		{"501 MB compresses", 501 * mb, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &deptest.FakeExecutor{ResponseToReturn: dependency.CommandResponse{Success: true}}
			table := map[string]int64{"/rec/long.flac": tt.size}
			n, paths, out := newNormalizer(t, fake, table)
			table[paths.CompressedAudioPath()] = 120 * mb

			res, err := n.Normalize(context.Background(), "/rec/long.flac")

			require.NoError(t, err)
			assert.Equal(t, tt.compress, res.Compressed)
			if !tt.compress {
				assert.Equal(t, "/rec/long.flac", res.Path)
				assert.Empty(t, fake.ExecutedCommands)
				return
			}
			assert.Equal(t, paths.CompressedAudioPath(), res.Path)
			assert.Equal(t, []string{"ffmpeg"}, fake.Commands())
			assert.Contains(t, out.String(), "Large file (501 MB), compressing...")
			assert.Contains(t, out.String(), "Compressed: 501 MB -> 120 MB")
		})
	}
}

func TestNormalize_VideoProgress(t *testing.T) {
	// Arrange: 60 s video, ffmpeg reports 30 s, 60 s and an overshoot
	fake := &deptest.FakeExecutor{
		Handler: func(req dependency.CommandRequest) (dependency.CommandResponse, error) {
			if req.Command == "ffprobe" {
				return dependency.CommandResponse{Success: true, Stdout: "60.0\n"}, nil
			}
			return dependency.CommandResponse{Success: true}, nil
		},
		StderrLines: []string{"out_time=00:00:30.000000", "out_time=00:01:00.000000", "out_time=00:01:30.000000"},
	}
	table := map[string]int64{}
	n, paths, out := newNormalizer(t, fake, table)
	table[paths.ConvertedAudioPath("meeting")] = 2 * mb

	// Act
	res, err := n.Normalize(context.Background(), "/rec/meeting.mp4")

	// Assert
	require.NoError(t, err)
	assert.True(t, res.Converted)
	assert.False(t, res.Compressed)
	assert.Equal(t, paths.ConvertedAudioPath("meeting"), res.Path)
	assert.Equal(t, []string{"ffprobe", "ffmpeg"}, fake.Commands())

	s := out.String()
	assert.Contains(t, s, "Video conversion: [")
	assert.Contains(t, s, "   5.00%")
	assert.Contains(t, s, "  10.00%")
	assert.True(t, strings.HasSuffix(s, "  15.00%\n"), s)
}

func TestNormalize_VideoUnknownDuration(t *testing.T) {
	fake := &deptest.FakeExecutor{
		Handler: func(req dependency.CommandRequest) (dependency.CommandResponse, error) {
			if req.Command == "ffprobe" {
				return dependency.CommandResponse{Success: true, Stdout: "N/A\n"}, nil
			}
			return dependency.CommandResponse{Success: true}, nil
		},
		StderrLines: []string{"out_time=00:00:30.000000"},
	}
	table := map[string]int64{}
	n, paths, out := newNormalizer(t, fake, table)
	table[paths.ConvertedAudioPath("clip")] = mb

	_, err := n.Normalize(context.Background(), "/rec/clip.mov")

	require.NoError(t, err)
	// only the start and the finish of the bar are rendered
	assert.Equal(t, 2, strings.Count(out.String(), "Video conversion:"))
	assert.True(t, strings.HasSuffix(out.String(), " 15.00%\n"))
}

func TestNormalize_VideoConversionFails(t *testing.T) {
	fake := &deptest.FakeExecutor{
		Handler: func(req dependency.CommandRequest) (dependency.CommandResponse, error) {
			if req.Command == "ffprobe" {
				return dependency.CommandResponse{Success: true, Stdout: "10\n"}, nil
			}
			return dependency.CommandResponse{ExitCode: 1, Stderr: "clip.mkv: Invalid data found when processing input"}, nil
		},
	}
	n, _, _ := newNormalizer(t, fake, map[string]int64{})

	_, err := n.Normalize(context.Background(), "/rec/clip.mkv")

	require.Error(t, err)
	assert.True(t, errors.Is(err, dependency.ErrToolFailed))
	assert.Contains(t, err.Error(), "video conversion failed")
}

func TestNormalize_MissingFile(t *testing.T) {
	n, _, _ := newNormalizer(t, &deptest.FakeExecutor{}, map[string]int64{})

	_, err := n.Normalize(context.Background(), "/rec/gone.wav")

	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
