// Package pyrun runs embedded python helper scripts for the local speech
// backends. A helper is started once, loads its model, and then answers
// JSON requests one line at a time over stdin and stdout.
package pyrun

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// InterpreterEnv overrides the python interpreter for all helpers.
const InterpreterEnv = "MINUTES_PYTHON"

// DefaultInterpreter is used when neither the caller nor the environment
// names one.
const DefaultInterpreter = "python3"

// waitDelay bounds how long output pipes are drained after a killed helper
// exits.
const waitDelay = time.Second

// closeGrace is how long a helper gets to exit after its stdin closes.
const closeGrace = 5 * time.Second

// maxStderr caps how much helper stderr is quoted in errors.
const maxStderr = 2 << 10

// maxLine caps a single response line. Transcripts of long meetings are
// large.
const maxLine = 64 << 20

// Script is a helper program shipped inside the binary.
type Script struct {
	// Name identifies the helper in temp file names and errors.
	Name string

	// Source is the program text.
	Source []byte

	// Interpreter runs the program. Empty falls back to $MINUTES_PYTHON,
	// then python3.
	Interpreter string
}

func (s Script) interpreter() string {
	if s.Interpreter != "" {
		return s.Interpreter
	}
	if v := os.Getenv(InterpreterEnv); v != "" {
		return v
	}
	return DefaultInterpreter
}

func (s Script) writeTemp() (string, error) {
	f, err := os.CreateTemp("", "minutes-"+s.Name+"-*.py")
	if err != nil {
		return "", fmt.Errorf("%s: write helper script: %w", s.Name, err)
	}
	if _, err := f.Write(s.Source); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%s: write helper script: %w", s.Name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%s: write helper script: %w", s.Name, err)
	}
	return f.Name(), nil
}

type request struct {
	ID     uint64 `json:"id"`
	Params any    `json:"params"`
}

// response is one line of helper output. The helper announces readiness
// with id 0 once its model is loaded.
type response struct {
	ID     uint64          `json:"id"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Process is a running helper. Calls are answered in order, one at a time.
type Process struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr tailBuffer

	mu  sync.Mutex
	seq uint64

	responses chan response
	done      chan struct{}
	exited    chan struct{}
	waitErr   error
	closeOnce sync.Once
}

// Start launches the script with args and waits until it reports that its
// model is loaded. The process outlives ctx; stop it with Close.
func (s Script) Start(ctx context.Context, args ...string) (*Process, error) {
	path, err := s.writeTemp()
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	cmd := exec.Command(s.interpreter(), append([]string{path}, args...)...)
	cmd.WaitDelay = waitDelay
	p := &Process{
		name:      s.Name,
		cmd:       cmd,
		responses: make(chan response),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
	cmd.Stderr = &p.stderr
	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, fmt.Errorf("%s: run helper: %w", s.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: run helper: %w", s.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: run helper: %w", s.Name, err)
	}
	go p.read(stdout)

	select {
	case r := <-p.responses:
		if r.Error != "" {
			p.Close()
			return nil, fmt.Errorf("%s failed: %s", s.Name, r.Error)
		}
		return p, nil
	case <-p.exited:
		return nil, p.exitErr()
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		p.Close()
		return nil, ctx.Err()
	}
}

func (p *Process) read(stdout io.Reader) {
	defer close(p.exited)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	for sc.Scan() {
		var r response
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		select {
		case p.responses <- r:
		case <-p.done:
		}
	}
	_, _ = io.Copy(io.Discard, stdout)
	p.waitErr = p.cmd.Wait()
}

// Call sends params to the helper and decodes its result into out. A call
// abandoned through ctx leaves the helper running; its late answer is
// discarded by the next call.
func (p *Process) Call(ctx context.Context, params, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	id := p.seq
	line, err := json.Marshal(request{ID: id, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", p.name, err)
	}
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		select {
		case <-p.exited:
			return p.exitErr()
		default:
			return fmt.Errorf("%s: send request: %w", p.name, err)
		}
	}

	for {
		select {
		case r := <-p.responses:
			if r.ID != id {
				continue
			}
			if r.Error != "" {
				return fmt.Errorf("%s failed: %s", p.name, r.Error)
			}
			if err := json.Unmarshal(r.Result, out); err != nil {
				return fmt.Errorf("%s: parse helper output: %w", p.name, err)
			}
			return nil
		case <-p.exited:
			return p.exitErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close asks the helper to exit by closing its stdin and kills it if it
// does not within a grace period.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(closeGrace):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
	})
	return nil
}

func (p *Process) exitErr() error {
	if msg := tail(p.stderr.String()); msg != "" {
		return fmt.Errorf("%s exited: %s", p.name, msg)
	}
	if p.waitErr != nil {
		return fmt.Errorf("%s exited: %w", p.name, p.waitErr)
	}
	return fmt.Errorf("%s exited", p.name)
}

// tailBuffer keeps the most recent helper stderr.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > 2*maxStderr {
		b.buf = append(b.buf[:0], b.buf[len(b.buf)-maxStderr:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}
