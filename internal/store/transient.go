// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package store

import (
	"reflect"
	"sync"

	"github.com/petermattis/goid"
)

// transientStore holds, per goroutine and per type, the thread-local value
// visible only to the reaction currently executing on that goroutine. It
// backs readiness events (timer ticks, I/O events) that are never written to
// the latest/history slots: a transient is a one-shot value scoped to a
// single callback invocation.
type transientStore struct {
	mu   sync.Mutex
	vals map[int64]map[reflect.Type]any
}

func (t *transientStore) set(typ reflect.Type, v any) {
	gid := goid.Get()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.vals == nil {
		t.vals = map[int64]map[reflect.Type]any{}
	}
	m, ok := t.vals[gid]
	if !ok {
		m = map[reflect.Type]any{}
		t.vals[gid] = m
	}
	m[typ] = v
}

func (t *transientStore) clear(typ reflect.Type) {
	gid := goid.Get()
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.vals[gid]
	if m == nil {
		return
	}
	delete(m, typ)
	if len(m) == 0 {
		delete(t.vals, gid)
	}
}

func (t *transientStore) get(typ reflect.Type) (any, bool) {
	gid := goid.Get()
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.vals[gid]
	if m == nil {
		return nil, false
	}
	v, ok := m[typ]
	return v, ok
}

// WithTransient installs v as the calling goroutine's transient value of
// type T for the duration of fn, restoring the prior state (absent, in
// practice always absent, since transients are not expected to nest for the
// same type) on every exit path including panics.
func WithTransient[T any](s *TypeStore, v T, fn func()) {
	t := reflect.TypeFor[T]()
	s.transient.set(t, v)
	defer s.transient.clear(t)
	fn()
}

// GetTransient returns the calling goroutine's transient value of type T, if
// one is currently installed via [WithTransient].
func GetTransient[T any](s *TypeStore) (T, bool) {
	t := reflect.TypeFor[T]()
	v, ok := s.transient.get(t)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}
