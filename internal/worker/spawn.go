package worker

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/errors"
)

// Proc is one running worker as seen by its owner.
type Proc interface {
	Queues() *Queues
	// Done is closed once the worker has exited and released its models.
	Done() <-chan struct{}
	// Err is the exit error, valid after Done.
	Err() error
	// Kill terminates the worker without waiting for the running task.
	Kill()
	// PID is the operating system process hosting the worker.
	PID() int
}

type Spawner interface {
	Spawn(ctx context.Context) (Proc, error)
}

type SpawnerFunc func(ctx context.Context) (Proc, error)

func (f SpawnerFunc) Spawn(ctx context.Context) (Proc, error) { return f(ctx) }

// LocalSpawner runs the worker on a goroutine in the current process.
type LocalSpawner struct {
	Load Loader
	Now  func() time.Time
}

type localProc struct {
	q      *Queues
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (s *LocalSpawner) Spawn(context.Context) (Proc, error) {
	// the worker outlives the caller's context
	ctx, cancel := context.WithCancel(context.Background())
	p := &localProc{q: NewQueues(s.Now), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer cancel()
		p.err = Serve(ctx, s.Load, p.q)
		if p.err == context.Canceled {
			p.err = errors.WorkerExited(p.err)
		}
	}()
	return p, nil
}

func (p *localProc) Queues() *Queues      { return p.q }
func (p *localProc) Done() <-chan struct{} { return p.done }
func (p *localProc) Err() error            { return p.err }
func (p *localProc) Kill()                 { p.cancel() }
func (p *localProc) PID() int              { return os.Getpid() }

// ProcessSpawner runs each worker as a child process executing Path with
// Args, which must end up calling ServeStdio. Releasing the models is then
// guaranteed by process exit.
type ProcessSpawner struct {
	Path string
	Args []string
	Env  []string
	Now  func() time.Time
}

func (s *ProcessSpawner) Spawn(ctx context.Context) (Proc, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		path = exe
	}

	cmd := exec.Command(path, s.Args...)
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.WorkerExited(err)
	}
	log.Debug().Int("pid", cmd.Process.Pid).Msg("spawned model worker process")

	kill := func() { _ = cmd.Process.Kill() }
	return startPipeProc(stdin, stdout, cmd.Wait, kill, cmd.Process.Pid, s.Now), nil
}

// frame is one line of the worker control channel.
type frame struct {
	Request  *Request  `json:"request,omitempty"`
	State    *Snapshot `json:"state,omitempty"`
	Response *Response `json:"response,omitempty"`
	Fatal    string    `json:"fatal,omitempty"`
	Kind     string    `json:"kind,omitempty"`
}

// pipeProc is the owner side of a worker reached over a byte stream.
type pipeProc struct {
	q     *Queues
	stdin io.WriteCloser
	kill  func()
	pid   int
	done  chan struct{}
	err   error
}

func startPipeProc(stdin io.WriteCloser, stdout io.Reader, wait func() error, kill func(), pid int, now func() time.Time) *pipeProc {
	p := &pipeProc{
		q:     NewQueues(now),
		stdin: stdin,
		kill:  kill,
		pid:   pid,
		done:  make(chan struct{}),
	}
	go p.writeLoop()
	go p.readLoop(stdout, wait)
	return p
}

func (p *pipeProc) writeLoop() {
	enc := json.NewEncoder(p.stdin)
	for {
		select {
		case req := <-p.q.Requests:
			if err := enc.Encode(frame{Request: &req}); err != nil {
				log.Debug().Err(err).Msg("worker control channel closed")
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *pipeProc) readLoop(stdout io.Reader, wait func() error) {
	var fatal error
	dec := json.NewDecoder(stdout)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if err != io.EOF {
				log.Error().Err(err).Msg("malformed frame from model worker")
				p.kill()
			}
			break
		}
		switch {
		case f.State != nil:
			p.q.State.apply(*f.State)
		case f.Response != nil:
			select {
			case p.q.Responses <- *f.Response:
			default:
				log.Warn().Str("task", f.Response.Task.String()).Msg("dropping unsolicited worker response")
			}
		case f.Fatal != "":
			fatal = errors.Restore(f.Kind, f.Fatal)
		}
	}

	waitErr := wait()
	_ = p.stdin.Close()
	p.q.State.apply(Snapshot{})
	switch {
	case fatal != nil:
		p.err = fatal
	case waitErr != nil:
		p.err = errors.WorkerExited(waitErr)
	}
	close(p.done)
}

func (p *pipeProc) Queues() *Queues      { return p.q }
func (p *pipeProc) Done() <-chan struct{} { return p.done }
func (p *pipeProc) Err() error            { return p.err }
func (p *pipeProc) Kill()                 { p.kill() }
func (p *pipeProc) PID() int              { return p.pid }

// ServeStdio is the child side of ProcessSpawner: it runs Serve with requests
// read from r and state changes and responses written to w. Closing r stops
// the worker.
func ServeStdio(ctx context.Context, load Loader, r io.Reader, w io.Writer) error {
	q := NewQueues(time.Now)
	// unbuffered so a response is handed to the writer before Serve can drain it
	q.Responses = make(chan Response)

	var mu sync.Mutex
	enc := json.NewEncoder(w)
	send := func(f frame) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(f); err != nil {
			log.Debug().Err(err).Msg("write to worker owner failed")
		}
	}
	q.State.onChange = func(s Snapshot) { send(frame{State: &s}) }

	served := make(chan struct{})
	go func() {
		dec := json.NewDecoder(r)
		for {
			var f frame
			if err := dec.Decode(&f); err != nil {
				break
			}
			if f.Request == nil {
				continue
			}
			select {
			case q.Requests <- *f.Request:
			case <-served:
				return
			}
		}
		// owner went away
		select {
		case q.Requests <- StopRequest():
		case <-served:
		}
	}()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for resp := range q.Responses {
			resp := resp
			send(frame{Response: &resp})
		}
	}()

	err := Serve(ctx, load, q)
	close(served)
	close(q.Responses)
	<-forwarded

	if err != nil && ctx.Err() == nil {
		send(frame{Fatal: err.Error(), Kind: errors.KindOf(err)})
	}
	return err
}
