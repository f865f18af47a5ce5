package prompt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDialog struct {
	path string
	err  error
}

func (s stubDialog) Choose(context.Context) (string, error) { return s.path, s.err }

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	return path
}

func TestLanguage_DefaultOnEmptyAnswer(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("\n"), &out, nil)

	l, err := p.Language(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "nl", l.Code)
	assert.Contains(t, out.String(), "   1. Nederlands (nl) (default)\n")
	assert.Contains(t, out.String(), "  10. ")
	assert.Contains(t, out.String(), "  Language [1]: ")
	assert.Contains(t, out.String(), "  -> Nederlands\n")
}

func TestLanguage_ByKeyAndInvalid(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("2\n"), &out, nil)
	l, err := p.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "en", l.Code)

	out.Reset()
	p = New(strings.NewReader("42\n"), &out, nil)
	l, err = p.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nl", l.Code)
	assert.Contains(t, out.String(), "Invalid choice, using Nederlands.")
}

func TestModel_Menu(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("1\n"), &out, nil)

	m, err := p.Model(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tiny", m.Name)
	assert.Contains(t, out.String(), "  4. medium     - ")
	assert.Contains(t, out.String(), "(default)")

	p = New(strings.NewReader("gigantic\n"), &out, nil)
	m, err = p.Model(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "medium", m.Name)
	assert.Contains(t, out.String(), "Invalid choice, using 'medium'.")
}

func TestFile_FromDialog(t *testing.T) {
	path := touch(t, "talk.mp3")
	p := New(strings.NewReader(""), &bytes.Buffer{}, stubDialog{path: path})

	got, err := p.File(context.Background())

	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestFile_ManualFallback(t *testing.T) {
	path := touch(t, "talk.wav")
	var out bytes.Buffer
	p := New(strings.NewReader(`"`+path+`"`+"\n"), &out, stubDialog{err: errors.New("zenity: not found")})

	got, err := p.File(context.Background())

	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Contains(t, out.String(), "File selection failed: zenity: not found")
	assert.Contains(t, out.String(), "No file selected in the dialog.")
}

func TestFile_ManualRejects(t *testing.T) {
	unsupported := touch(t, "notes.TXT")
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"empty", "\n", ""},
		{"missing", "/does/not/exist.wav\n", "File not found."},
		{"unsupported", unsupported + "\n", "Unsupported format: .txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out, nil)

			got, err := p.File(context.Background())

			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Contains(t, out.String(), tt.msg)
		})
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestReadLine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(blockingReader{}, &bytes.Buffer{}, nil)

	_, err := p.Model(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeDialog_Commands(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("/Users/me/talk.m4a\n"), nil
	}

	d := &NativeDialog{Timeout: time.Second, GOOS: "darwin", Run: run}
	path, err := d.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/Users/me/talk.m4a", path)
	assert.Equal(t, "osascript", gotName)
	assert.Contains(t, gotArgs[1], `of type {"mp3", "wav"`)

	d.GOOS = "linux"
	_, err = d.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "zenity", gotName)
	assert.Contains(t, gotArgs, "--file-selection")
	assert.Contains(t, gotArgs[2], "*.webm *.WEBM")

	d.GOOS = "plan9"
	_, err = d.Choose(context.Background())
	assert.ErrorIs(t, err, ErrNoDialog)
}

func TestNativeDialog_TimeoutIsNoSelection(t *testing.T) {
	run := func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d := &NativeDialog{Timeout: 20 * time.Millisecond, GOOS: "linux", Run: run}

	path, err := d.Choose(context.Background())

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestNativeDialog_CancelledByUser(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return nil, &exec.ExitError{}
	}
	d := &NativeDialog{Timeout: time.Second, GOOS: "linux", Run: run}

	path, err := d.Choose(context.Background())

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestRevealer(t *testing.T) {
	var calls [][]string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return nil, nil
	}

	require.NoError(t, (&Revealer{GOOS: "darwin", Run: run}).Reveal(context.Background(), "/out/talk.docx"))
	require.NoError(t, (&Revealer{GOOS: "linux", Run: run}).Reveal(context.Background(), "/out/talk.docx"))

	assert.Equal(t, [][]string{{"open", "-R", "/out/talk.docx"}, {"xdg-open", "/out"}}, calls)
}
