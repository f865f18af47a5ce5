package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/runner"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestModelsCommand(t *testing.T) {
	code, out, _ := runCLI(t, "models")

	assert.Equal(t, runner.ExitOK, code)
	assert.Contains(t, out, "REAL-TIME FACTOR")
	assert.Contains(t, out, "medium (default)")
	assert.Contains(t, out, "0.6x")
	assert.Equal(t, 7, strings.Count(out, "\n"))
}

func TestLanguagesCommand(t *testing.T) {
	code, out, _ := runCLI(t, "languages")

	assert.Equal(t, runner.ExitOK, code)
	assert.Contains(t, out, "Nederlands")
	assert.Contains(t, out, "Dutch")
	assert.Equal(t, 11, strings.Count(out, "\n"))
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	code, _, stderr := runCLI(t, "--batch-size", "-1", "--model", "huge", "--no-interactive", "talk.wav")

	assert.Equal(t, runner.ExitUsage, code)
	assert.Contains(t, stderr, "invalid batch_size: -1")
	assert.Contains(t, stderr, "invalid model: huge")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	code, _, stderr := runCLI(t, "--frobnicate")

	assert.Equal(t, runner.ExitUsage, code)
	assert.Contains(t, stderr, "unknown flag")
}

func TestWatchNeedsDirectory(t *testing.T) {
	code, _, _ := runCLI(t, "watch")

	assert.Equal(t, runner.ExitUsage, code)
}
