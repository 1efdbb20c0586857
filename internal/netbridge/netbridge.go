// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package netbridge defines the backend contract the Network emit handler
// dispatches through, plus a loopback reference implementation for tests
// and single-process deployments.
package netbridge

import (
	"encoding/gob"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// Backend is the contract a network transport must satisfy to carry emits
// tagged Network to other processes, and deliver ones received from them.
type Backend interface {
	// Send encodes and transmits v, whose concrete type is t.
	Send(t reflect.Type, v any) error
	// SetDeliver registers the callback invoked for every value this
	// backend receives from a remote peer. deliver's t identifies the
	// concrete decoded type.
	SetDeliver(deliver func(t reflect.Type, v any))
	Close() error
}

// Loopback is a Backend that delivers every Send back to its own
// SetDeliver callback, synchronously, as if a single peer sent it to
// itself. It is the default backend when no real transport is configured,
// and is sufficient for single-process deployments and tests.
type Loopback struct {
	mu      sync.Mutex
	deliver func(reflect.Type, any)
}

func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) Send(t reflect.Type, v any) error {
	l.mu.Lock()
	d := l.deliver
	l.mu.Unlock()
	if d != nil {
		d(t, v)
	}
	return nil
}

func (l *Loopback) SetDeliver(deliver func(reflect.Type, any)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliver = deliver
}

func (l *Loopback) Close() error { return nil }

// GobStream is a Backend that encodes values with encoding/gob over an
// io.ReadWriter shared with one remote peer. The zero value is not usable;
// construct with NewGobStream. Types exchanged over a GobStream must be
// registered with gob.Register before use, matching gob's usual rules for
// encoding values behind an interface.
type GobStream struct {
	enc *gob.Encoder
	mu  sync.Mutex

	deliverFn func(reflect.Type, any)
	done      chan struct{}
}

type envelope struct {
	Value any
}

// NewGobStream starts decoding rw in a background goroutine, calling
// deliver for every successfully decoded envelope, until rw returns an
// error (typically io.EOF on peer disconnect).
func NewGobStream(rw io.ReadWriter, onError func(error)) *GobStream {
	g := &GobStream{enc: gob.NewEncoder(rw), done: make(chan struct{})}
	go func() {
		defer close(g.done)
		dec := gob.NewDecoder(rw)
		for {
			var e envelope
			if err := dec.Decode(&e); err != nil {
				if onError != nil && err != io.EOF {
					onError(err)
				}
				return
			}
			g.mu.Lock()
			d := g.deliverFn
			g.mu.Unlock()
			if d != nil {
				d(reflect.TypeOf(e.Value), e.Value)
			}
		}
	}()
	return g
}

func (g *GobStream) Send(t reflect.Type, v any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enc.Encode(envelope{Value: v}); err != nil {
		return fmt.Errorf("netbridge: encode %s: %w", t, err)
	}
	return nil
}

func (g *GobStream) SetDeliver(deliver func(reflect.Type, any)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deliverFn = deliver
}

func (g *GobStream) Close() error { return nil }
