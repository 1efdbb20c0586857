// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package registry owns reaction records and hands out opaque handles. A
// record is created by Bind and lives until Unbind plus drain of its
// in-flight tasks; the registry is the single owner that resolves bus,
// handle, and task references back to a live record, avoiding cyclic
// ownership between those collaborators (see the design notes on reaction
// ownership).
package registry

import (
	"reflect"
	"sync/atomic"
)

// Priority orders ready tasks; REALTIME is highest, IDLE is lowest.
type Priority int

const (
	REALTIME Priority = iota
	HIGH
	DEFAULT
	LOW
	IDLE
)

func (p Priority) String() string {
	switch p {
	case REALTIME:
		return "REALTIME"
	case HIGH:
		return "HIGH"
	case DEFAULT:
		return "DEFAULT"
	case LOW:
		return "LOW"
	case IDLE:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// Options carries the bind-time modifiers of a reaction that aren't
// argument sources: priority, sync group membership, single-flight, and
// once-only.
type Options struct {
	Priority  Priority
	SyncGroup string // empty means "no sync group"
	Single    bool
	Once      bool
}

// ArgSource resolves one position of a reaction's argument list at dispatch
// time. It is built at bind time by the DSL modifiers, which close over the
// concrete Go type they bind, so that Record itself never needs to know the
// user's types — only the small closure interface described in the design
// notes.
type ArgSource struct {
	// Type is the event type this source reads, used for diagnostics and
	// for deciding whether this is the argument position a given emit's
	// cause type fills.
	Type reflect.Type
	// IsTrigger reports whether Type is one of the reaction's trigger
	// types (as opposed to a With/Last join that never itself fires the
	// reaction).
	IsTrigger bool
	// Get resolves the value for this position given the current
	// dispatch cause. ok is false if the value is required and absent;
	// Optional-wrapped sources never return ok=false.
	Get func(cause Cause) (value any, ok bool)
}

// Cause describes what triggered one particular task, and is threaded
// through to every ArgSource.Get call for that task.
type Cause struct {
	// Type is the trigger type that caused this dispatch attempt (the
	// just-emitted type, the chrono tick type, or the IO event type).
	Type reflect.Type
	// Value is Type's value for this dispatch: the emitted value, the
	// synthetic tick value, or the IO readiness event.
	Value any
	// Claim arbitrates first-to-claim delivery among multiple Raw
	// subscribers of the same emitted value. Set on every event-bus
	// dispatch; nil for Startup/Shutdown/Every/IO tasks, for which Take
	// always reports true.
	Claim *RawClaim
}

// RawClaim is a single-use, one-winner gate shared by every task spawned
// from one emit of a raw-consumed type. The first ArgSource to call Take
// wins; every later caller observes the type as absent.
type RawClaim struct {
	taken atomic.Bool
}

// Take reports whether the caller is the first to claim ownership.
func (c *RawClaim) Take() bool {
	if c == nil {
		return true
	}
	return c.taken.CompareAndSwap(false, true)
}

// Record is a bound reaction: the runtime-owned state backing a Handle.
// See the data model's invariants on bound/inflight/once/single.
type Record struct {
	ID    int64
	Label string

	TriggerTypes []reflect.Type
	WithTypes    []reflect.Type // informational; argument sources are canonical
	Args         []ArgSource    // argument list, in declared order
	Options      Options

	enabled     atomic.Bool
	bound       atomic.Bool
	inflight    atomic.Int64
	onceClaimed atomic.Bool

	// Invoke runs the user callback given a fully resolved argument list.
	// Built at bind time via reflection over the callback's signature.
	Invoke func(args []any)

	// onUnbound, if set, is called exactly once when the record transitions
	// bound=false (whether via explicit Unbind or a Once post-condition),
	// after the caller has already flipped the bus/registry bookkeeping.
	// Used by the registry to release id-indexed storage.
	onUnbound func()
}

func newRecord(id int64, label string, triggers, withs []reflect.Type, args []ArgSource, opts Options, invoke func([]any)) *Record {
	r := &Record{
		ID:           id,
		Label:        label,
		TriggerTypes: triggers,
		WithTypes:    withs,
		Args:         args,
		Options:      opts,
		Invoke:       invoke,
	}
	r.enabled.Store(true)
	r.bound.Store(true)
	return r
}

// Enabled reports whether the record currently accepts dispatch.
func (r *Record) Enabled() bool { return r.enabled.Load() }

// Bound reports whether the record is still reachable from the bus.
func (r *Record) Bound() bool { return r.bound.Load() }

// Inflight reports the number of queued-or-executing tasks for this record.
func (r *Record) Inflight() int64 { return r.inflight.Load() }

// TryReserveInflight reserves an in-flight slot for a new task derived from
// r. For ordinary records this always succeeds. For single=true records it
// succeeds only if no task is currently queued or executing, enforcing that
// new tasks are dropped at creation time rather than at dispatch (per the
// scheduler's single-flight rule).
func (r *Record) TryReserveInflight() bool {
	if !r.Options.Single {
		r.inflight.Add(1)
		return true
	}
	return r.inflight.CompareAndSwap(0, 1)
}

// ReleaseInflight decrements the in-flight counter after a task finishes
// executing or is dropped post-creation.
func (r *Record) ReleaseInflight() { r.inflight.Add(-1) }

// TryClaimOnce reports whether the caller is the first task execution to
// claim the right to run a once=true record's callback. Always true for
// records that aren't once=true. This is checked at task-execution entry,
// not at task creation, because multiple tasks for the same once record can
// already be queued or executing concurrently (e.g. a burst of emits, or a
// thread pool of more than one worker); without this atomic claim, a second
// worker could invoke the callback before the first one's post-condition
// has unbound the record.
func (r *Record) TryClaimOnce() bool {
	if !r.Options.Once {
		return true
	}
	return r.onceClaimed.CompareAndSwap(false, true)
}
