package whisper

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/audio"
	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/dependency"
	"github.com/houzhh15/wxscribe/pkg/metrics"
)

//go:embed assets/whisperx_helper.py
var helperScript []byte

// HelperScriptName is the file name the helper is written to before start.
const HelperScriptName = "whisperx_helper.py"

// shutdownGrace is how long Close waits for the helper to exit on its own.
const shutdownGrace = 10 * time.Second

var percentPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// responsePrefix starts every response object the helper writes.
const responsePrefix = `{"id"`

// Helper commands.
const (
	cmdLoadModel     = "load_model"
	cmdLoadAudio     = "load_audio"
	cmdTranscribe    = "transcribe"
	cmdLoadAligner   = "load_aligner"
	cmdAlign         = "align"
	cmdUnloadModel   = "unload_model"
	cmdUnloadAligner = "unload_aligner"
)

// HelperConfig configures a HelperEngine.
type HelperConfig struct {
	// Python is the interpreter (default "python3").
	Python string
	// ScriptDir receives the helper script; normally the run workspace.
	ScriptDir string
	// Env holds extra environment variables for the helper.
	Env map[string]string
	Logger *slog.Logger
}

// HelperError is a failure reported by the helper itself.
type HelperError struct {
	Cmd     string
	Message string
}

func (e *HelperError) Error() string {
	return fmt.Sprintf("helper %s: %s", e.Cmd, e.Message)
}

// HelperEngine runs WhisperX inside one long-lived Python process. Requests
// and responses are JSON objects, one per line; any other stdout line is
// treated as progress text from WhisperX and scanned for "<float>%" tokens.
// Calls are serialized.
type HelperEngine struct {
	cfg    HelperConfig
	logger *slog.Logger

	mu     sync.Mutex
	proc   *helperProcess
	nextID int
}

// NewHelperEngine creates an engine. The helper starts on the first Load.
func NewHelperEngine(cfg HelperConfig) *HelperEngine {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = os.TempDir()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HelperEngine{cfg: cfg, logger: log}
}

type request struct {
	ID          int       `json:"id"`
	Cmd         string    `json:"cmd"`
	Model       string    `json:"model,omitempty"`
	Device      string    `json:"device,omitempty"`
	ComputeType string    `json:"compute_type,omitempty"`
	Language    string    `json:"language,omitempty"`
	Audio       string    `json:"audio,omitempty"`
	BatchSize   int       `json:"batch_size,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`
}

type response struct {
	ID     int             `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Load starts the helper if needed and loads the model.
func (e *HelperEngine) Load(ctx context.Context, opts LoadOptions) (Model, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	req := request{
		Cmd:         cmdLoadModel,
		Model:       opts.Model,
		Device:      opts.Device,
		ComputeType: opts.ComputeType,
		Language:    opts.Language,
	}
	if err := e.call(ctx, req, nil, nil); err != nil {
		return nil, fmt.Errorf("load model %s: %w", opts.Model, err)
	}
	return &helperModel{engine: e}, nil
}

// LoadAudio has the helper decode path to 16 kHz mono and keep it for the
// following calls. WAV inputs are also inspected locally to learn their
// peak level.
func (e *HelperEngine) LoadAudio(ctx context.Context, path string) (*audio.Buffer, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	var res struct {
		Samples    int64 `json:"samples"`
		SampleRate int   `json:"sample_rate"`
	}
	if err := e.call(ctx, request{Cmd: cmdLoadAudio, Audio: path}, nil, &res); err != nil {
		return nil, fmt.Errorf("load audio %s: %w", path, err)
	}

	buf := &audio.Buffer{
		Path:          path,
		SampleRate:    res.SampleRate,
		Channels:      audio.Channels,
		BitsPerSample: 32,
		Frames:        res.Samples,
		Peak:          -1,
	}
	if audio.IsWAV(path) {
		info, err := audio.Inspect(path)
		if err != nil {
			e.logger.Warn("local wav inspection failed", "path", path, "error", err)
		} else {
			buf.Peak = info.Peak
		}
	}
	return buf, nil
}

// LoadAligner loads the alignment model for language.
func (e *HelperEngine) LoadAligner(ctx context.Context, language, device string) (Aligner, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	req := request{Cmd: cmdLoadAligner, Language: language, Device: device}
	if err := e.call(ctx, req, nil, nil); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAlignmentUnavailable, err)
	}
	return &helperAligner{engine: e}, nil
}

// Close asks the helper to exit by closing its stdin and kills it if it does
// not within the grace period.
func (e *HelperEngine) Close() error {
	e.mu.Lock()
	p := e.proc
	e.proc = nil
	e.mu.Unlock()
	if p == nil {
		return nil
	}

	_ = p.stdin.Close()
	select {
	case <-p.done:
	case <-time.After(shutdownGrace):
		e.logger.Warn("helper did not exit, killing it")
		p.kill()
		<-p.done
	}
	if err := os.Remove(p.script); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Debug("remove helper script", "error", err)
	}
	return nil
}

func (e *HelperEngine) ensureStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil {
		select {
		case <-e.proc.done:
			return fmt.Errorf("helper exited: %v: %s", e.proc.exitErr, e.proc.lastLine())
		default:
			return nil
		}
	}
	p, err := e.start()
	if err != nil {
		metrics.RecordCommandExecution(dependency.CommandPython, "error")
		return err
	}
	e.proc = p
	return nil
}

// call sends one request and waits for its response. onProgress receives
// progress only for the duration of this call.
func (e *HelperEngine) call(ctx context.Context, req request, onProgress ProgressFunc, out any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.proc
	if p == nil {
		return errors.New("helper not running")
	}
	e.nextID++
	req.ID = e.nextID

	p.setProgress(onProgress)
	defer p.setProgress(nil)

	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", req.Cmd, err)
	}
	start := time.Now()
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		// let the stderr drain finish so the error carries the cause
		select {
		case <-p.done:
		case <-time.After(time.Second):
		}
		return fmt.Errorf("send %s request: %w: %s", req.Cmd, err, p.lastLine())
	}

	for {
		select {
		case resp := <-p.responses:
			if resp.ID != req.ID {
				e.logger.Debug("dropping stale helper response", "id", resp.ID, "want", req.ID)
				continue
			}
			e.logger.Debug("helper call finished", "cmd", req.Cmd, "ok", resp.OK, "duration_ms", time.Since(start).Milliseconds())
			if !resp.OK {
				metrics.RecordCommandExecution(dependency.CommandPython, "failed")
				return &HelperError{Cmd: req.Cmd, Message: resp.Error}
			}
			metrics.RecordCommandExecution(dependency.CommandPython, "success")
			if out != nil && len(resp.Result) > 0 {
				if err := json.Unmarshal(resp.Result, out); err != nil {
					return fmt.Errorf("decode %s result: %w", req.Cmd, err)
				}
			}
			return nil
		case <-p.done:
			metrics.RecordCommandExecution(dependency.CommandPython, "error")
			return fmt.Errorf("helper exited during %s: %v: %s", req.Cmd, p.exitErr, p.lastLine())
		case <-ctx.Done():
			p.kill()
			return ctx.Err()
		}
	}
}

type helperProcess struct {
	cmd       *exec.Cmd
	script    string
	cancel    context.CancelFunc
	stdin     io.WriteCloser
	responses chan response
	done      chan struct{}
	exitErr   error
	logger    *slog.Logger

	mu         sync.Mutex
	onProgress ProgressFunc
	lastStderr string
}

func (e *HelperEngine) start() (*helperProcess, error) {
	script := filepath.Join(e.cfg.ScriptDir, HelperScriptName)
	if err := os.WriteFile(script, helperScript, 0o644); err != nil {
		return nil, fmt.Errorf("write helper script: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, e.cfg.Python, "-u", script)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	for k, v := range e.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	dependency.ConfigureProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("helper stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("helper stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start helper with %s: %w", e.cfg.Python, err)
	}
	e.logger.Debug("helper started", "python", e.cfg.Python, "pid", cmd.Process.Pid)

	p := &helperProcess{
		cmd:       cmd,
		script:    script,
		cancel:    cancel,
		stdin:     stdin,
		responses: make(chan response, 8),
		done:      make(chan struct{}),
		logger:    e.logger,
	}

	var g errgroup.Group
	g.Go(func() error { return p.readStdout(stdout) })
	g.Go(func() error {
		dependency.ScanLines(stderr, p.onStderr)
		return nil
	})
	go func() {
		if err := g.Wait(); err != nil {
			p.logger.Debug("helper output drain", "error", err)
		}
		p.exitErr = cmd.Wait()
		cancel()
		close(p.done)
	}()
	return p, nil
}

func (p *helperProcess) readStdout(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		p.handleLine(line)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *helperProcess) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	// a response may follow unterminated progress text on the same line
	if i := strings.Index(line, responsePrefix); i > 0 {
		p.reportProgress(line[:i])
		line = line[i:]
	}
	if strings.HasPrefix(line, "{") {
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			p.logger.Debug("undecodable helper line", "error", err)
			return
		}
		select {
		case p.responses <- resp:
		default:
			p.logger.Warn("helper response dropped", "id", resp.ID)
		}
		return
	}
	p.reportProgress(line)
}

func (p *helperProcess) reportProgress(text string) {
	fn := p.progress()
	if fn == nil {
		return
	}
	for _, m := range percentPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			fn(v)
		}
	}
}

func (p *helperProcess) onStderr(line string) {
	p.mu.Lock()
	p.lastStderr = line
	p.mu.Unlock()
	p.logger.Debug("helper", "stderr", line)
}

func (p *helperProcess) lastLine() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStderr
}

func (p *helperProcess) setProgress(fn ProgressFunc) {
	p.mu.Lock()
	p.onProgress = fn
	p.mu.Unlock()
}

func (p *helperProcess) progress() ProgressFunc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onProgress
}

func (p *helperProcess) kill() {
	p.cancel()
}

type helperModel struct {
	engine *HelperEngine
}

func (m *helperModel) Transcribe(ctx context.Context, buf *audio.Buffer, opts TranscribeOptions, onProgress ProgressFunc) (*TranscriptionResult, error) {
	req := request{Cmd: cmdTranscribe, Audio: buf.Path, BatchSize: opts.BatchSize, Language: opts.Language}
	var res TranscriptionResult
	if err := m.engine.call(ctx, req, onProgress, &res); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return &res, nil
}

func (m *helperModel) Close() error {
	return m.engine.release(cmdUnloadModel)
}

type helperAligner struct {
	engine *HelperEngine
}

func (a *helperAligner) Align(ctx context.Context, segments []Segment, buf *audio.Buffer, onProgress ProgressFunc) ([]Segment, error) {
	req := request{Cmd: cmdAlign, Audio: buf.Path, Segments: segments}
	var res struct {
		Segments []Segment `json:"segments"`
	}
	if err := a.engine.call(ctx, req, onProgress, &res); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAlignmentUnavailable, err)
	}
	return res.Segments, nil
}

func (a *helperAligner) Close() error {
	return a.engine.release(cmdUnloadAligner)
}

// release unloads a model. A helper that is already gone has nothing to
// release.
func (e *HelperEngine) release(cmd string) error {
	e.mu.Lock()
	running := e.proc != nil
	e.mu.Unlock()
	if !running {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.call(ctx, request{Cmd: cmd}, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}
