// Package pybridge runs a long-lived Python helper that answers JSON requests,
// one per line, on its stdin and stdout.
//
// The helper must print {"ready": true} once its models are loaded, or
// {"error": "..."} and exit when loading fails. Every request line is answered
// by exactly one response line; a response carrying a non-empty "error" field
// is returned to the caller as an error.
package pybridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config describes the helper to run.
type Config struct {
	PythonPath string
	// Script is written to ScriptDir/ScriptName before the helper starts.
	Script     []byte
	ScriptName string
	ScriptDir  string
	Args       []string
	Env        map[string]string
	// StartTimeout bounds how long loading may take. Zero waits for ctx only.
	StartTimeout time.Duration
}

// Process is a running helper. Calls are serialized.
type Process struct {
	name string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	stderr *tailBuffer

	done    chan struct{}
	waitErr error
}

type envelope struct {
	Ready bool   `json:"ready"`
	Error string `json:"error"`
}

// DefaultPython returns the interpreter to use when none is configured.
func DefaultPython() string {
	if p := os.Getenv("SCRIBE_PYTHON"); p != "" {
		return p
	}
	if runtime.GOOS == "windows" {
		return "python.exe"
	}
	return "python3"
}

// Start extracts the script, launches the helper and waits for it to report ready.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if cfg.ScriptName == "" {
		return nil, errors.New("script name is required")
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = filepath.Join(os.TempDir(), "scribe")
	}
	if cfg.PythonPath == "" {
		cfg.PythonPath = DefaultPython()
	}
	if err := os.MkdirAll(cfg.ScriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure script directory: %w", err)
	}
	scriptPath := filepath.Join(cfg.ScriptDir, cfg.ScriptName)
	if err := ensureScript(scriptPath, cfg.Script); err != nil {
		return nil, err
	}

	args := append([]string{scriptPath}, cfg.Args...)
	cmd := exec.Command(cfg.PythonPath, args...)
	env := append([]string{}, os.Environ()...)
	env = append(env, "PYTHONIOENCODING=utf-8", "PYTHONUNBUFFERED=1")
	for key, value := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	tail := newTailBuffer(4096)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.ScriptName, err)
	}

	p := &Process{
		name:   cfg.ScriptName,
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte, 16),
		stderr: tail,
		done:   make(chan struct{}),
	}
	go p.pump(cmd, stdout)

	waitCtx := ctx
	if cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.StartTimeout)
		defer cancel()
	}

	line, err := p.readLine(waitCtx)
	if err != nil {
		p.kill()
		return nil, fmt.Errorf("%s did not become ready: %w: %s", cfg.ScriptName, err, strings.TrimSpace(tail.String()))
	}
	var ready envelope
	if err := json.Unmarshal(line, &ready); err != nil {
		p.kill()
		return nil, fmt.Errorf("%s handshake: %w", cfg.ScriptName, err)
	}
	if ready.Error != "" || !ready.Ready {
		p.kill()
		msg := ready.Error
		if msg == "" {
			msg = "helper did not report ready"
		}
		return nil, errors.New(msg)
	}

	log.Debug().Str("helper", cfg.ScriptName).Int("pid", cmd.Process.Pid).Msg("python helper ready")
	return p, nil
}

// Call sends req and decodes the helper's answer into resp. When ctx ends
// before the answer arrives the helper is killed, since its stream position
// is no longer known.
func (p *Process) Call(ctx context.Context, req any, resp any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return errors.New("helper closed")
	}
	select {
	case <-p.done:
		return p.exitError()
	default:
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := p.stdin.Write(payload); err != nil {
		return fmt.Errorf("write to %s: %w", p.name, err)
	}

	line, err := p.readLine(ctx)
	if err != nil {
		if ctx.Err() != nil {
			p.kill()
			return ctx.Err()
		}
		return p.exitError()
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", p.name, err)
	}
	if env.Error != "" {
		return errors.New(env.Error)
	}
	if resp == nil {
		return nil
	}
	return json.Unmarshal(line, resp)
}

// Close asks the helper to exit by closing its stdin and waits briefly before killing it.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	_ = p.stdin.Close()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	p.cmd = nil
	return nil
}

// pump forwards protocol lines until stdout closes, then reaps the process.
func (p *Process) pump(cmd *exec.Cmd, stdout io.Reader) {
	r := bufio.NewReader(stdout)
	for {
		line, err := r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		// helpers may print banners; only JSON objects are protocol lines
		if len(line) > 0 && line[0] == '{' {
			select {
			case p.lines <- line:
			default:
				log.Warn().Str("helper", p.name).Msg("dropping unsolicited helper output")
			}
		}
		if err != nil {
			break
		}
	}
	close(p.lines)
	p.waitErr = cmd.Wait()
	close(p.done)
}

func (p *Process) readLine(ctx context.Context) ([]byte, error) {
	select {
	case line, ok := <-p.lines:
		if !ok {
			return nil, io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Process) kill() {
	if p.cmd == nil {
		return
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.done
	p.cmd = nil
}

func (p *Process) exitError() error {
	<-p.done
	msg := strings.TrimSpace(p.stderr.String())
	if p.waitErr != nil {
		return fmt.Errorf("%s exited: %v: %s", p.name, p.waitErr, msg)
	}
	return fmt.Errorf("%s exited: %s", p.name, msg)
}

func ensureScript(path string, content []byte) error {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		current, readErr := os.ReadFile(path)
		if readErr == nil && bytes.Equal(current, content) {
			return nil
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write helper script: %w", err)
	}
	return nil
}

// tailBuffer keeps the last n bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
