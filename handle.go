// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import "nuclear.run/internal/registry"

// Handle is an opaque, copyable reference to a reaction bound with
// [Reactor.On]. Every operation is thread-safe and idempotent: calling
// Unbind twice, or Disable on an already-disabled handle, has no further
// effect beyond the first call.
type Handle registry.Handle

func (h *Handle) inner() *registry.Handle { return (*registry.Handle)(h) }

// Enable flips the reaction back to dispatch-eligible. A reaction starts
// enabled; Enable only matters after a prior Disable.
func (h *Handle) Enable() { h.inner().Enable() }

// Disable stops future dispatch attempts for this reaction from running.
// A task already queued for it is still dequeued by a worker, but dropped
// at the enabled/bound gate instead of invoking the callback.
func (h *Handle) Disable() { h.inner().Disable() }

// Enabled reports the reaction's current enabled state.
func (h *Handle) Enabled() bool { return h.inner().Enabled() }

// Unbind removes the reaction from the event bus. For an Every or IO
// source, the timer or readiness registration stays active until Shutdown;
// the tasks it produces after Unbind are dropped at the bound gate. A task
// already past the enabled/bound gate runs to completion; a task still
// waiting in the queue is dropped at that gate. The underlying record is
// reclaimed once no task refers to it any more.
func (h *Handle) Unbind() { h.inner().Unbind() }

// ID returns the reaction's runtime-unique ascending identifier.
func (h *Handle) ID() int64 { return h.inner().ID() }

// Label returns the reaction's human-readable diagnostic label, if any.
func (h *Handle) Label() string { return h.inner().Label() }
