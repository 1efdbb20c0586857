// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package ioready defines the backend contract the IO DSL operation
// dispatches through, plus a portable reference backend built on
// runtime-level polling rather than a platform syscall, so the runtime
// itself stays portable while still letting a host swap in a real epoll or
// kqueue backend where one is available.
package ioready

import (
	"context"
	"sync"
)

// Event is a bit set of the readiness conditions a Backend reports.
type Event uint8

const (
	Readable Event = 1 << iota
	Writable
	Closed
	Errored
)

// Token identifies one registration with a Backend, returned by Register
// and passed back to Unregister.
type Token int64

// Backend is the contract an IO readiness source must satisfy. fd is an
// opaque, backend-specific descriptor (a file descriptor on Unix, a handle
// on other platforms); the runtime never interprets it directly.
type Backend interface {
	// Register arranges for notify to be called, with the readiness
	// conditions that occurred, every time fd becomes ready for any of the
	// events in interest. Register returns a Token for later Unregister.
	Register(fd int, interest Event, notify func(Event)) (Token, error)
	// Unregister stops delivering notifications for token. It is a no-op if
	// token is unknown.
	Unregister(token Token)
	// Close shuts the backend down, unregistering everything.
	Close() error
}

// PollFunc reports the current readiness of fd for the given interest, used
// by the reference backend in place of a real OS poll syscall.
type PollFunc func(fd int, interest Event) (Event, error)

// ReferenceBackend is a portable Backend that re-evaluates every
// registration's PollFunc on each Poll call, rather than blocking in a
// syscall. A host embeds it behind its own wakeup loop (a ticker, a
// netpoller callback, or a real epoll wait) by calling Poll whenever it
// believes some fd's readiness may have changed.
type ReferenceBackend struct {
	mu        sync.Mutex
	nextToken Token
	regs      map[Token]*registration
}

type registration struct {
	fd       int
	interest Event
	poll     PollFunc
	notify   func(Event)
	last     Event
}

// NewReferenceBackend returns an empty ReferenceBackend.
func NewReferenceBackend() *ReferenceBackend {
	return &ReferenceBackend{regs: map[Token]*registration{}}
}

// RegisterFunc is like Register but additionally takes the PollFunc used to
// evaluate this fd's readiness; ReferenceBackend has no way to discover
// readiness on its own.
func (b *ReferenceBackend) RegisterFunc(fd int, interest Event, poll PollFunc, notify func(Event)) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken++
	tok := b.nextToken
	b.regs[tok] = &registration{fd: fd, interest: interest, poll: poll, notify: notify}
	return tok
}

// Register implements Backend using a constant "never ready" PollFunc; most
// callers of ReferenceBackend should use RegisterFunc directly so they can
// supply real readiness evaluation.
func (b *ReferenceBackend) Register(fd int, interest Event, notify func(Event)) (Token, error) {
	return b.RegisterFunc(fd, interest, func(int, Event) (Event, error) { return 0, nil }, notify), nil
}

func (b *ReferenceBackend) Unregister(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.regs, token)
}

// Poll re-evaluates every registration and calls notify for any whose
// readiness (intersected with its interest) is both non-zero and different
// from what was last reported, so a level-triggered condition that never
// changes doesn't spam the same notification forever.
func (b *ReferenceBackend) Poll() error {
	b.mu.Lock()
	regs := make([]*registration, 0, len(b.regs))
	for _, r := range b.regs {
		regs = append(regs, r)
	}
	b.mu.Unlock()

	for _, r := range regs {
		ev, err := r.poll(r.fd, r.interest)
		if err != nil {
			return err
		}
		ready := ev & r.interest
		if ready != 0 && ready != r.last {
			r.last = ready
			r.notify(ready)
		} else if ready == 0 {
			r.last = 0
		}
	}
	return nil
}

func (b *ReferenceBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs = map[Token]*registration{}
	return nil
}

// Run polls the backend every time ticks fires, until ctx is cancelled. Intended for a host that doesn't have its own readiness-driven
// wakeup source and is content with a coarse polling interval instead.
func Run(ctx context.Context, b *ReferenceBackend, ticks <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			if err := b.Poll(); err != nil {
				return err
			}
		}
	}
}
