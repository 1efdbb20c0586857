// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package chrono

import (
	"sync"
	"time"
)

// Service runs the periodic registrations backing the Every DSL operation.
// Each registration owns a ticker from the Service's Clock and a 1-buffered relay channel: a
// tick that arrives while the previous one is still being delivered is
// dropped rather than queued, so a slow reaction never accumulates a
// backlog of stale ticks.
type Service struct {
	clock Clock

	mu   sync.Mutex
	regs map[int64]*registration
}

// New returns a Service driven by clock.
func New(clock Clock) *Service {
	return &Service{clock: clock, regs: map[int64]*registration{}}
}

type registration struct {
	ticker Ticker
	done   chan struct{}
}

// Register starts a periodic source for reactionID with the given period.
// onTick is called from a dedicated goroutine, at most once per period and
// never concurrently with itself; ticks that arrive while onTick is still
// running for a prior one are coalesced away. Register panics if
// reactionID is already registered.
//
// The returned stop function unregisters the source and blocks until its
// goroutine has exited. It is idempotent.
func (s *Service) Register(reactionID int64, period time.Duration, onTick func(time.Time)) (stop func()) {
	ticker, ch := s.clock.NewTicker(period)
	r := &registration{ticker: ticker, done: make(chan struct{})}

	s.mu.Lock()
	if _, exists := s.regs[reactionID]; exists {
		s.mu.Unlock()
		panic("chrono: reactionID already registered")
	}
	s.regs[reactionID] = r
	s.mu.Unlock()

	relay := make(chan time.Time, 1)
	stopRelay := make(chan struct{})

	// Pump: forwards ticks into the 1-buffered relay, dropping one if the
	// buffer is already full (the consumer hasn't caught up yet).
	go func() {
		for {
			select {
			case t, ok := <-ch:
				if !ok {
					return
				}
				select {
				case relay <- t:
				default:
				}
			case <-stopRelay:
				return
			}
		}
	}()

	// Consumer: delivers at most one tick at a time to onTick.
	go func() {
		defer close(r.done)
		for {
			select {
			case t := <-relay:
				onTick(t)
			case <-stopRelay:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopRelay)
			<-r.done

			s.mu.Lock()
			delete(s.regs, reactionID)
			s.mu.Unlock()
		})
	}
}

// Len reports the number of currently registered periodic sources, for
// diagnostics.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regs)
}
