package dependency_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency/deptest"
)

func newClient(t *testing.T, fake *deptest.FakeExecutor) (*dependency.DependencyClient, string) {
	t.Helper()
	ws := t.TempDir()
	config := dependency.ExecutorConfig{WorkspaceDir: ws}
	return dependency.NewClientWithExecutor(fake, config, nil), ws
}

func TestDependencyClient_ProbeDuration_Success(t *testing.T) {
	// Arrange
	fake := &deptest.FakeExecutor{
		ResponseToReturn: dependency.CommandResponse{Success: true, Stdout: "125.480000\n"},
	}
	client, _ := newClient(t, fake)

	// Act
	dur, ok := client.ProbeDuration(context.Background(), "/media/talk.mp3")

	// Assert
	require.True(t, ok)
	assert.InDelta(t, 125.48, dur, 1e-9)
	require.Len(t, fake.ExecutedCommands, 1)
	req := fake.ExecutedCommands[0]
	assert.Equal(t, "ffprobe", req.Command)
	assert.Equal(t, []string{"-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0", "-i", "/media/talk.mp3"}, req.Args)
}

func TestDependencyClient_ProbeDuration_DashPrefixedName(t *testing.T) {
	fake := &deptest.FakeExecutor{
		ResponseToReturn: dependency.CommandResponse{Success: true, Stdout: "3.5\n"},
	}
	client, _ := newClient(t, fake)

	dur, ok := client.ProbeDuration(context.Background(), "-x.mp3")

	require.True(t, ok)
	assert.InDelta(t, 3.5, dur, 1e-9)
	args := fake.ExecutedCommands[0].Args
	assert.Equal(t, []string{"-i", "-x.mp3"}, args[len(args)-2:])
}

func TestDependencyClient_ProbeDuration_Unknown(t *testing.T) {
	tests := []struct {
		name string
		resp dependency.CommandResponse
		err  error
	}{
		{"executor error", dependency.CommandResponse{}, errors.New("exec: \"ffprobe\": executable file not found")},
		{"non-zero exit", dependency.CommandResponse{ExitCode: 1, Stderr: "Invalid data"}, nil},
		{"empty output", dependency.CommandResponse{Success: true, Stdout: "\n"}, nil},
		{"not a number", dependency.CommandResponse{Success: true, Stdout: "N/A\n"}, nil},
		{"zero", dependency.CommandResponse{Success: true, Stdout: "0.000000\n"}, nil},
		{"negative", dependency.CommandResponse{Success: true, Stdout: "-3\n"}, nil},
		{"nan", dependency.CommandResponse{Success: true, Stdout: "NaN\n"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &deptest.FakeExecutor{ResponseToReturn: tt.resp, ErrorToReturn: tt.err}
			client, _ := newClient(t, fake)

			dur, ok := client.ProbeDuration(context.Background(), "/media/x.mp3")

			assert.False(t, ok)
			assert.Zero(t, dur)
		})
	}
}

func TestDependencyClient_ConvertVideo_Success(t *testing.T) {
	// Arrange
	fake := &deptest.FakeExecutor{
		ResponseToReturn: dependency.CommandResponse{Success: true},
		StderrLines: []string{
			"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'talk.mp4':",
			"out_time=00:00:30.000000",
			"size=N/A time=00:01:00.00 bitrate=N/A speed=12x",
			"progress=end",
		},
	}
	client, ws := newClient(t, fake)
	out := client.PathManager().ConvertedAudioPath("talk")
	var positions []float64

	// Act
	err := client.ConvertVideo(context.Background(), "/media/talk.mp4", out, func(sec float64) {
		positions = append(positions, sec)
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 60}, positions)
	assert.Equal(t, filepath.Join(ws, "talk.wav"), out)
	req := fake.ExecutedCommands[0]
	assert.Equal(t, "ffmpeg", req.Command)
	assert.Equal(t, []string{
		"-i", "/media/talk.mp4", "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1",
		"-y", "-progress", "pipe:2", out,
	}, req.Args)
	assert.Equal(t, out, req.Output)
}

func TestDependencyClient_ConvertVideo_ToolFailure(t *testing.T) {
	fake := &deptest.FakeExecutor{
		ResponseToReturn: dependency.CommandResponse{ExitCode: 1, Stderr: "talk.mp4: Invalid data found when processing input"},
	}
	client, _ := newClient(t, fake)

	err := client.ConvertVideo(context.Background(), "/media/talk.mp4", client.PathManager().ConvertedAudioPath("talk"), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, dependency.ErrToolFailed))
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Contains(t, err.Error(), "exit code 1")
}

func TestDependencyClient_ConvertVideo_OutputOutsideWorkspace(t *testing.T) {
	fake := &deptest.FakeExecutor{ResponseToReturn: dependency.CommandResponse{Success: true}}
	client, _ := newClient(t, fake)

	err := client.ConvertVideo(context.Background(), "/media/talk.mp4", filepath.Join(t.TempDir(), "talk.wav"), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside workspace")
	assert.Empty(t, fake.ExecutedCommands)
}

func TestDependencyClient_ConvertVideo_Cancelled(t *testing.T) {
	fake := &deptest.FakeExecutor{ResponseToReturn: dependency.CommandResponse{Success: true}}
	client, _ := newClient(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.ConvertVideo(ctx, "/media/talk.mp4", client.PathManager().ConvertedAudioPath("talk"), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, dependency.ErrToolFailed))
}

func TestDependencyClient_CompressAudio(t *testing.T) {
	fake := &deptest.FakeExecutor{ResponseToReturn: dependency.CommandResponse{Success: true, Duration: 2 * time.Second}}
	client, _ := newClient(t, fake)
	out := client.PathManager().CompressedAudioPath()

	err := client.CompressAudio(context.Background(), "/media/huge.flac", out)

	require.NoError(t, err)
	assert.Equal(t, []string{"-i", "/media/huge.flac", "-ar", "16000", "-ac", "1", "-acodec", "pcm_s16le", "-y", out},
		fake.ExecutedCommands[0].Args)

	fake.ResponseToReturn = dependency.CommandResponse{ExitCode: 1, Stderr: "line one\nNo space left on device\n"}
	err = client.CompressAudio(context.Background(), "/media/huge.flac", out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dependency.ErrToolFailed))
	assert.Contains(t, err.Error(), "No space left on device")
}

func TestDependencyClient_HealthCheck(t *testing.T) {
	fake := &deptest.FakeExecutor{ErrorToReturn: errors.New("ffmpeg not found")}
	client, _ := newClient(t, fake)

	err := client.HealthCheck(context.Background())

	assert.Error(t, err)
	assert.True(t, fake.HealthCheckCalled)
}

func TestParseProgressTime(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"out_time=00:00:05.500000", 5.5, true},
		{"frame=  10 size=N/A time=01:02:03.25 bitrate=N/A", 3723.25, true},
		{"out_time=N/A", 0, false},
		{"out_time_ms=5000000", 0, false},
		{"progress=continue", 0, false},
	}
	for _, tt := range tests {
		got, ok := dependency.ParseProgressTime(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.InDelta(t, tt.want, got, 1e-9, tt.line)
	}
}

func TestParseDuration(t *testing.T) {
	d, ok := dependency.ParseDuration("  61.5\r\n")
	assert.True(t, ok)
	assert.Equal(t, 61.5, d)

	_, ok = dependency.ParseDuration("+Inf")
	assert.False(t, ok)
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "third", dependency.LastLine("first\nsecond\r\nthird\n\n"))
	assert.Equal(t, "", dependency.LastLine("\n \n"))
}

func TestCheckEnvironment(t *testing.T) {
	// Arrange: ffprobe missing, everything else present
	fake := &deptest.FakeExecutor{
		Handler: func(req dependency.CommandRequest) (dependency.CommandResponse, error) {
			switch {
			case req.Command == "ffmpeg":
				return dependency.CommandResponse{Success: true, Stdout: "ffmpeg version 6.1.1 Copyright (c) 2000-2023\n"}, nil
			case req.Command == "ffprobe":
				return dependency.CommandResponse{}, errors.New("executable file not found in $PATH")
			case len(req.Args) > 0 && req.Args[0] == "--version":
				return dependency.CommandResponse{Success: true, Stdout: "Python 3.11.6\n"}, nil
			default:
				return dependency.CommandResponse{Success: true}, nil
			}
		},
	}

	// Act
	status := dependency.CheckEnvironment(context.Background(), fake, dependency.DefaultChecks())

	// Assert: ffprobe is optional, so the environment stays ready
	assert.True(t, status.Ready)
	assert.Empty(t, status.Issues)
	require.Len(t, status.Warnings, 1)
	assert.Contains(t, status.Warnings[0], "ffprobe")
	require.Len(t, status.Tools, 4)
	assert.Equal(t, "6.1.1", status.Tools[0].Version)
	assert.Equal(t, "3.11.6", status.Tools[2].Version)
	assert.Equal(t, "installed", status.Tools[3].Version)
}

func TestCheckEnvironment_MissingWhisperX(t *testing.T) {
	fake := &deptest.FakeExecutor{
		Handler: func(req dependency.CommandRequest) (dependency.CommandResponse, error) {
			if len(req.Args) == 2 && req.Args[0] == "-c" {
				return dependency.CommandResponse{ExitCode: 1, Stderr: "ModuleNotFoundError: No module named 'whisperx'\n"}, nil
			}
			return dependency.CommandResponse{Success: true, Stdout: "x version 1\n"}, nil
		},
	}

	status := dependency.CheckEnvironment(context.Background(), fake, dependency.DefaultChecks())

	assert.False(t, status.Ready)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "No module named 'whisperx'")
}
