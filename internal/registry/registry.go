// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"reflect"
	"sync"
	"sync/atomic"

	"nuclear.run/internal/set"
)

// Bus is the subset of the event bus that the registry needs: indexing and
// removing a record under its trigger types. Kept as an interface so the
// registry has no import-time dependency on the eventbus package.
type Bus interface {
	Subscribe(t reflect.Type, r *Record)
	Unsubscribe(t reflect.Type, r *Record)
}

// Registry allocates records, assigns monotonically increasing ids, wires
// them into a Bus under each of their trigger types, and hands back
// Handles. It is the single owner of Record values; the bus, handles, and
// in-flight tasks all resolve a record by following a pointer the registry
// itself created, rather than owning the record's lifetime independently.
type Registry struct {
	bus    Bus
	nextID atomic.Int64

	mu      sync.Mutex
	records map[int64]*Record
}

// New returns a Registry that indexes records into bus.
func New(bus Bus) *Registry {
	return &Registry{bus: bus, records: map[int64]*Record{}}
}

// Bind allocates a new record, subscribes it to the bus under every trigger
// type, and returns a Handle. invoke is called with the resolved argument
// list built from args at dispatch time.
func (reg *Registry) Bind(label string, triggers, withs []reflect.Type, args []ArgSource, opts Options, invoke func([]any)) *Handle {
	id := reg.nextID.Add(1)
	r := newRecord(id, label, triggers, withs, args, opts, invoke)

	reg.mu.Lock()
	reg.records[id] = r
	reg.mu.Unlock()

	for _, t := range dedupTypes(triggers) {
		reg.bus.Subscribe(t, r)
	}

	r.onUnbound = func() {
		reg.mu.Lock()
		delete(reg.records, id)
		reg.mu.Unlock()
	}

	return &Handle{reg: reg, record: r}
}

// Lookup returns the live record for id, or nil if it has been unbound and
// reclaimed.
func (reg *Registry) Lookup(id int64) *Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.records[id]
}

// Len reports the number of currently bound records, for diagnostics.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.records)
}

// Unbind removes r from the bus and from the registry's id index at once;
// tasks that still hold r keep it alive until they finish. Exported for callers (the dispatch path's
// Once post-condition) that hold a *Record directly rather than a Handle.
func (reg *Registry) Unbind(r *Record) { reg.unbind(r) }

func (reg *Registry) unbind(r *Record) {
	if !r.bound.CompareAndSwap(true, false) {
		return // already unbound; Unbind is idempotent
	}
	for _, t := range dedupTypes(r.TriggerTypes) {
		reg.bus.Unsubscribe(t, r)
	}
	if r.onUnbound != nil {
		r.onUnbound()
	}
}

func dedupTypes(ts []reflect.Type) []reflect.Type {
	if len(ts) < 2 {
		return ts
	}
	seen := make(set.Set[reflect.Type], len(ts))
	out := ts[:0:0]
	for _, t := range ts {
		if !seen.Contains(t) {
			seen.Add(t)
			out = append(out, t)
		}
	}
	return out
}
