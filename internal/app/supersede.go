package app

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Supersede.Run when a newer run started before
// this one finished. Its result must be discarded.
var ErrSuperseded = errors.New("search superseded by a newer request")

// Supersede runs one job at a time in the sense that matters to callers:
// starting a job cancels the one before it, and only the latest job's result
// is ever delivered.
type Supersede struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Run cancels any in-flight job and runs fn with a context derived from ctx.
// When fn succeeds and no newer job has started, deliver (if non-nil) is
// called before Run returns. It runs under the same lock that starting a job
// takes, so a result is never delivered after a newer job began.
func (s *Supersede) Run(ctx context.Context, fn func(context.Context) error, deliver func()) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	err := fn(runCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		cancel()
		return ErrSuperseded
	}
	cancel()
	s.cancel = nil
	if err == nil && deliver != nil {
		deliver()
	}
	return err
}

// Stop cancels the in-flight job, if any.
func (s *Supersede) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
