// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package registry

// Handle is an opaque, copyable reference to a bound reaction. All
// operations are thread-safe and idempotent.
type Handle struct {
	reg    *Registry
	record *Record
}

// Record returns the handle's underlying record, for collaborators (bus,
// scheduler) that need direct access. Not part of the public DSL surface.
func (h *Handle) Record() *Record { return h.record }

// Enable flips the record back to dispatch-eligible.
func (h *Handle) Enable() { h.record.enabled.Store(true) }

// Disable stops future dispatch attempts from running. Tasks already
// queued for this record are still dequeued by a worker, but are dropped at
// the enabled/bound gate instead of executing.
func (h *Handle) Disable() { h.record.enabled.Store(false) }

// Enabled reports the record's current enabled state.
func (h *Handle) Enabled() bool { return h.record.Enabled() }

// Unbind removes the reaction from the bus. It is idempotent: calling it
// more than once, or on an already-unbound handle, has no further effect.
// A task already past the enabled/bound gate runs to completion; a task
// still waiting in the queue is dropped at that gate. The record is
// reclaimed once no task refers to it any more.
func (h *Handle) Unbind() { h.reg.unbind(h.record) }

// ID returns the record's runtime-unique ascending identifier.
func (h *Handle) ID() int64 { return h.record.ID }

// Label returns the human-readable diagnostic label, if any.
func (h *Handle) Label() string { return h.record.Label }
