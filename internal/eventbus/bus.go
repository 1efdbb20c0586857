// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package eventbus implements the type-indexed event bus: a map from event
// type to the ordered list of reaction records bound to it. Iteration order
// over subscribers for a single emit is bind order, and concurrent
// subscribe/unsubscribe never invalidates an in-progress snapshot iteration.
package eventbus

import (
	"reflect"
	"slices"
	"sync"

	"nuclear.run/internal/registry"
)

// Bus maintains, for each event type, the ordered list of reaction records
// bound to it.
type Bus struct {
	mu     sync.Mutex
	topics map[reflect.Type][]*registry.Record

	routeDebug hook[RoutedEvent]
}

// RoutedEvent describes one emit's fan-out, for debugging/introspection
// only; it plays no part in the normal dispatch path.
type RoutedEvent struct {
	Type reflect.Type
	To   []*registry.Record
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{topics: map[reflect.Type][]*registry.Record{}}
}

// Subscribe appends r to the list of records bound to t. Multiple
// subscriptions for the same record across different types are independent
// entries; the record's own TriggerTypes set is what coordinates them.
func (b *Bus) Subscribe(t reflect.Type, r *registry.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[t] = append(b.topics[t], r)
}

// Unsubscribe removes r from t's list, if present. The topic slice is
// replaced wholesale (copy-on-write) rather than mutated in place, so a
// ForEach snapshot taken concurrently is unaffected.
func (b *Bus) Unsubscribe(t reflect.Type, r *registry.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.topics[t]
	i := slices.Index(list, r)
	if i < 0 {
		return
	}
	b.topics[t] = slices.Delete(slices.Clone(list), i, i+1)
}

// ForEach calls fn once for every record currently bound to t, in bind
// order, over a point-in-time snapshot: a concurrent Subscribe/Unsubscribe
// racing with this call can neither shrink nor grow the slice ForEach is
// iterating, since Unsubscribe always allocates a fresh slice rather than
// mutating in place.
func (b *Bus) ForEach(t reflect.Type, fn func(*registry.Record)) {
	b.mu.Lock()
	snapshot := b.topics[t]
	b.mu.Unlock()

	if b.routeDebug.active() {
		to := make([]*registry.Record, len(snapshot))
		copy(to, snapshot)
		b.routeDebug.run(RoutedEvent{Type: t, To: to})
	}

	for _, r := range snapshot {
		fn(r)
	}
}

// Subscribers reports the number of records currently bound to t, for
// diagnostics.
func (b *Bus) Subscribers(t reflect.Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[t])
}

// OnRoute registers fn to be called with each emit's fan-out list. It
// returns a function that unregisters fn. Intended for debugging tools, not
// the hot dispatch path.
func (b *Bus) OnRoute(fn func(RoutedEvent)) (remove func()) {
	return b.routeDebug.add(fn)
}
