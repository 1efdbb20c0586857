// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package chronotest provides a controllable fake [chrono.Clock] for tests
// that need deterministic control over when periodic sources tick.
package chronotest

import (
	"sync"
	"time"

	"nuclear.run/internal/chrono"
)

// Clock is a fake chrono.Clock that only advances when Advance is called.
// Every ticker created from it shares the same simulated timeline.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// New returns a Clock whose simulated time starts at start.
func New(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTicker(d time.Duration) (chrono.Ticker, <-chan time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	t := &fakeTicker{c: c, period: d, next: c.now.Add(d), ch: ch}
	c.tickers = append(c.tickers, t)
	return t, ch
}

// Advance moves the simulated clock forward by d, firing every ticker whose
// next trigger time falls at or before the new time, possibly more than
// once each.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		t.fireUpTo(c.now)
	}
}

type fakeTicker struct {
	c      *Clock
	mu     sync.Mutex
	period time.Duration
	next   time.Time
	ch     chan time.Time
	stopped bool
}

func (t *fakeTicker) fireUpTo(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.stopped && !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.period)
	}
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
