package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Supervisor evicts the worker of a Handle after a period without work.
// Eviction is cooperative: a running task always completes first.
type Supervisor struct {
	h       *Handle
	timeout time.Duration
	now     func() time.Time
}

// NewSupervisor returns a supervisor for h. A timeout of zero or less
// disables eviction.
func NewSupervisor(h *Handle, timeout time.Duration) *Supervisor {
	return &Supervisor{h: h, timeout: timeout, now: time.Now}
}

// Run polls every timeout until ctx ends.
func (s *Supervisor) Run(ctx context.Context) {
	if s.timeout <= 0 {
		return
	}
	log.Debug().Dur("timeout", s.timeout).Msg("idle supervisor started")
	ticker := time.NewTicker(s.timeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick performs one eviction check and reports whether the worker was stopped.
func (s *Supervisor) Tick() bool {
	if s.timeout <= 0 {
		return false
	}
	return s.h.EvictIdle(s.timeout, s.now())
}
