package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/errors"
)

// stopGrace bounds how long a stopping worker may take to unload before it is killed.
const stopGrace = 30 * time.Second

// Handle owns at most one live worker. It spawns the worker on demand and
// serializes submissions, since a worker answers one request at a time and
// responses carry no request id.
type Handle struct {
	spawner Spawner

	// mu is held for the whole of a submission and during eviction.
	mu sync.Mutex

	pmu  sync.RWMutex
	proc Proc

	spawns atomic.Int64
}

func NewHandle(s Spawner) *Handle {
	return &Handle{spawner: s}
}

// Submit runs req on the worker, spawning it first if none is alive, and
// blocks until the response arrives. Cancelling ctx while the task runs
// kills the worker; the task's result is lost.
//
// Input errors are returned before a worker is spawned. Errors for which
// errors.IsFatal holds mean the worker is gone; the next Submit spawns a new
// one.
func (h *Handle) Submit(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Task == TaskStop {
		return &Response{Task: TaskStop}, h.Stop(ctx)
	}
	for _, src := range req.Sources {
		if err := audio.Check(src); err != nil {
			return nil, err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	proc, err := h.ensure(ctx)
	if err != nil {
		return nil, err
	}
	q := proc.Queues()

	select {
	case q.Requests <- req:
	case <-proc.Done():
		return nil, h.lost(proc)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-q.Responses:
		return &resp, resp.Err()
	case <-proc.Done():
		return nil, h.lost(proc)
	case <-ctx.Done():
		log.Warn().Str("task", req.Task.String()).Msg("request abandoned, killing model worker")
		proc.Kill()
		<-proc.Done()
		h.setProc(nil)
		return nil, ctx.Err()
	}
}

// ensure returns the live worker, spawning one and waiting for its models
// to load when needed. Callers hold h.mu.
func (h *Handle) ensure(ctx context.Context) (Proc, error) {
	if proc := h.current(); proc != nil {
		select {
		case <-proc.Done():
			h.setProc(nil)
		default:
			return proc, nil
		}
	}

	proc, err := h.spawner.Spawn(ctx)
	if err != nil {
		if !errors.IsFatal(err) {
			err = errors.WorkerExited(err)
		}
		return nil, err
	}
	n := h.spawns.Add(1)
	log.Info().Int64("spawn", n).Int("pid", proc.PID()).Msg("model worker starting")

	select {
	case <-proc.Queues().State.Ready():
		h.setProc(proc)
		return proc, nil
	case <-proc.Done():
		err := proc.Err()
		if !errors.IsFatal(err) {
			err = errors.ModelLoad(err)
		}
		return nil, err
	case <-ctx.Done():
		proc.Kill()
		<-proc.Done()
		return nil, ctx.Err()
	}
}

func (h *Handle) lost(proc Proc) error {
	h.setProc(nil)
	err := proc.Err()
	if errors.IsFatal(err) {
		return err
	}
	return errors.WorkerExited(err)
}

// Stop asks the live worker, if any, to unload and waits for it to exit.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked(ctx)
}

func (h *Handle) stopLocked(ctx context.Context) error {
	proc := h.current()
	if proc == nil {
		return nil
	}
	defer h.setProc(nil)

	select {
	case proc.Queues().Requests <- StopRequest():
	case <-proc.Done():
		return nil
	default:
		proc.Kill()
	}

	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case <-proc.Done():
	case <-timer.C:
		log.Warn().Msg("model worker did not stop in time, killing it")
		proc.Kill()
		<-proc.Done()
	case <-ctx.Done():
		proc.Kill()
		<-proc.Done()
		return ctx.Err()
	}
	return nil
}

// EvictIdle stops the worker when it is loaded, not running and has been
// idle for longer than timeout at now. It never waits for a submission in
// progress and reports whether the worker was stopped.
func (h *Handle) EvictIdle(timeout time.Duration, now time.Time) bool {
	if !h.mu.TryLock() {
		return false
	}
	defer h.mu.Unlock()

	proc := h.current()
	if proc == nil {
		return false
	}
	st := proc.Queues().State
	if !st.Loaded() || st.Running() {
		return false
	}
	idle := now.Sub(st.LastActive())
	if idle <= timeout {
		return false
	}

	log.Warn().Dur("idle", idle).Dur("timeout", timeout).Msg("model worker idle, unloading models to free memory")
	if err := h.stopLocked(context.Background()); err != nil {
		log.Err(err).Msg("failed to stop idle model worker")
	}
	return true
}

// Status describes the worker for monitoring.
type Status struct {
	Alive      bool      `json:"alive"`
	Loaded     bool      `json:"loaded"`
	Running    bool      `json:"running"`
	LastActive time.Time `json:"last_active,omitempty"`
	PID        int       `json:"pid,omitempty"`
	RSSBytes   uint64    `json:"rss_bytes,omitempty"`
	Spawns     int64     `json:"spawns"`
}

// Status does not wait for a running submission.
func (h *Handle) Status() Status {
	st := Status{Spawns: h.spawns.Load()}
	proc := h.current()
	if proc == nil {
		return st
	}
	select {
	case <-proc.Done():
		return st
	default:
	}

	snap := proc.Queues().State.Snapshot()
	st.Alive = true
	st.Loaded = snap.Loaded
	st.Running = snap.Running
	st.LastActive = snap.LastActive
	st.PID = proc.PID()
	if p, err := process.NewProcess(int32(st.PID)); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			st.RSSBytes = mem.RSS
		}
	}
	return st
}

func (h *Handle) current() Proc {
	h.pmu.RLock()
	defer h.pmu.RUnlock()
	return h.proc
}

func (h *Handle) setProc(p Proc) {
	h.pmu.Lock()
	h.proc = p
	h.pmu.Unlock()
}
