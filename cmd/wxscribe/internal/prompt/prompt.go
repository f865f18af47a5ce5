// Package prompt asks for the run parameters on the terminal: the
// language, the model and the recording to transcribe.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/catalog"
)

// Prompter reads answers line by line from in and writes menus to out.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	dialog FileDialog
}

// New returns a prompter. A nil dialog skips straight to manual path entry.
func New(in io.Reader, out io.Writer, dialog FileDialog) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, dialog: dialog}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns one trimmed line. EOF with no input yields "".
// Cancellation returns ctx.Err() while the read stays pending.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		ch <- lineResult{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

func (p *Prompter) ask(ctx context.Context, label, def string) (string, error) {
	fmt.Fprintf(p.out, "  %s [%s]: ", label, def)
	answer, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Language shows the language menu. An invalid choice selects the default.
func (p *Prompter) Language(ctx context.Context) (catalog.Language, error) {
	def, _ := catalog.LookupLanguage(catalog.DefaultLanguage)

	fmt.Fprintln(p.out, "Choose the language of the recording:")
	fmt.Fprintln(p.out)
	for _, l := range catalog.Languages() {
		suffix := ""
		if l.Code == def.Code {
			suffix = " (default)"
		}
		fmt.Fprintf(p.out, "  %2s. %s (%s)%s\n", l.Key, l.Name(), l.Code, suffix)
	}
	fmt.Fprintln(p.out)

	answer, err := p.ask(ctx, "Language", def.Key)
	if err != nil {
		return catalog.Language{}, err
	}
	l, err := catalog.LookupLanguage(answer)
	if err != nil {
		fmt.Fprintf(p.out, "  Invalid choice, using %s.\n", def.Name())
		l = def
	}
	fmt.Fprintf(p.out, "  -> %s\n\n", l.Name())
	return l, nil
}

// Model shows the model menu. An invalid choice selects the default.
func (p *Prompter) Model(ctx context.Context) (catalog.Model, error) {
	def, _ := catalog.LookupModel(catalog.DefaultModel)

	fmt.Fprintln(p.out, "Choose the Whisper model:")
	fmt.Fprintln(p.out)
	for _, m := range catalog.Models() {
		suffix := ""
		if m.Name == def.Name {
			suffix = " (default)"
		}
		fmt.Fprintf(p.out, "  %s. %-10s - %s%s\n", m.Key, m.Name, m.Description, suffix)
	}
	fmt.Fprintln(p.out)

	answer, err := p.ask(ctx, "Model", def.Key)
	if err != nil {
		return catalog.Model{}, err
	}
	m, err := catalog.LookupModel(answer)
	if err != nil {
		fmt.Fprintf(p.out, "  Invalid choice, using '%s'.\n", def.Name)
		m = def
	}
	fmt.Fprintf(p.out, "  -> %s\n\n", m.Name)
	return m, nil
}

// File asks for the recording: first through the file dialog, then by path
// entry. It returns "" when nothing usable was chosen.
func (p *Prompter) File(ctx context.Context) (string, error) {
	fmt.Fprintln(p.out, "Select an audio or video file...")
	if p.dialog != nil {
		fmt.Fprintln(p.out, "(a file dialog will open)")
		fmt.Fprintln(p.out)
		path, err := p.dialog.Choose(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			fmt.Fprintf(p.out, "  File selection failed: %v\n", err)
		}
		if path != "" {
			if msg := CheckFile(path); msg == "" {
				return path, nil
			}
		}
		fmt.Fprintln(p.out, "  No file selected in the dialog.")
	} else {
		fmt.Fprintln(p.out)
	}
	return p.manual(ctx)
}

func (p *Prompter) manual(ctx context.Context) (string, error) {
	fmt.Fprintln(p.out, "  Enter the path to the audio/video file:")
	fmt.Fprint(p.out, "  Path: ")
	line, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	path := strings.Trim(line, `'"`)
	if path == "" {
		return "", nil
	}
	if msg := CheckFile(path); msg != "" {
		fmt.Fprintf(p.out, "  %s\n", msg)
		return "", nil
	}
	return path, nil
}

// CheckFile returns a user-facing reason why path cannot be transcribed, or
// "" when it can.
func CheckFile(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "File not found."
	}
	if !catalog.IsSupported(path) {
		return fmt.Sprintf("Unsupported format: %s", strings.ToLower(filepath.Ext(path)))
	}
	return ""
}
