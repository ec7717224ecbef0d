package worker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of a worker's State.
type Snapshot struct {
	Loaded     bool      `json:"loaded"`
	Running    bool      `json:"running"`
	LastActive time.Time `json:"last_active"`
}

// State holds the flags a worker shares with its owner: whether models are
// loaded, whether a task is running and when the worker last finished work.
type State struct {
	loaded     atomic.Bool
	running    atomic.Bool
	lastActive atomic.Int64

	now      func() time.Time
	ready    chan struct{}
	once     sync.Once
	onChange func(Snapshot)
}

func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{now: now, ready: make(chan struct{})}
}

func (s *State) Loaded() bool  { return s.loaded.Load() }
func (s *State) Running() bool { return s.running.Load() }

func (s *State) LastActive() time.Time {
	ns := s.lastActive.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Ready is closed the first time the worker reports its models loaded.
func (s *State) Ready() <-chan struct{} { return s.ready }

func (s *State) Snapshot() Snapshot {
	return Snapshot{Loaded: s.Loaded(), Running: s.Running(), LastActive: s.LastActive()}
}

func (s *State) setLoaded(v bool) {
	s.loaded.Store(v)
	if v {
		s.once.Do(func() { close(s.ready) })
	}
	s.changed()
}

func (s *State) setRunning(v bool) {
	s.running.Store(v)
	s.changed()
}

func (s *State) touch() {
	s.lastActive.Store(s.now().UnixNano())
}

// apply mirrors a snapshot reported by a worker in another process.
func (s *State) apply(snap Snapshot) {
	if !snap.LastActive.IsZero() {
		s.lastActive.Store(snap.LastActive.UnixNano())
	}
	s.running.Store(snap.Running)
	s.setLoaded(snap.Loaded)
}

func (s *State) changed() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}

// Queues bundles everything shared between a worker and its owner. Each
// spawned worker gets a fresh bundle.
type Queues struct {
	Requests  chan Request
	Responses chan Response
	State     *State
}

func NewQueues(now func() time.Time) *Queues {
	return &Queues{
		Requests:  make(chan Request, 4),
		Responses: make(chan Response, 1),
		State:     NewState(now),
	}
}

func (q *Queues) drain() {
	for {
		select {
		case <-q.Requests:
		case <-q.Responses:
		default:
			return
		}
	}
}
