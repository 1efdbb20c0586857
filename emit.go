// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import (
	"reflect"

	"nuclear.run/internal/registry"
	"nuclear.run/internal/scheduler"
	"nuclear.run/internal/store"
)

// Emit is EmitLocal under its default name: it stores v as T's latest
// value and schedules a dispatch attempt for every reaction currently
// bound to T, in bind order, fanning out one task per subscriber. It is
// fire-and-forget from the caller's perspective — Emit returns as soon as
// every task has been queued, not executed, and a callback failure is
// never surfaced back to the emitter.
func Emit[T any](pp *PowerPlant, v T) error {
	return EmitLocal(pp, v)
}

// EmitLocal is Emit spelled out, for call sites that want to contrast it
// with EmitDirect, EmitInitialize, or EmitNetwork.
func EmitLocal[T any](pp *PowerPlant, v T) error {
	if !pp.sched.Accepting() {
		return ErrClosed
	}
	store.Set(pp.store, v)
	pp.dispatch(reflect.TypeFor[T](), v)
	return nil
}

// EmitDirect stores v exactly as EmitLocal does, but instead of queuing
// tasks for the scheduler's workers, it runs every currently bound
// subscriber's argument resolution and callback synchronously on the
// calling goroutine, in bind order. For a single subscriber with no sync
// group and no SingleFlight, this has the same observable effect on state
// as EmitLocal followed by a scheduler drain. A panicking callback is
// recovered the same way a scheduled one is.
func EmitDirect[T any](pp *PowerPlant, v T) error {
	if !pp.sched.Accepting() {
		return ErrClosed
	}
	store.Set(pp.store, v)
	t := reflect.TypeFor[T]()
	cause := registry.Cause{Type: t, Value: v, Claim: &registry.RawClaim{}}
	pp.bus.ForEach(t, func(r *registry.Record) {
		if !r.TryReserveInflight() {
			pp.metrics.SingleDropped(r.Label)
			return
		}
		func() {
			defer r.ReleaseInflight()
			if !r.Enabled() || !r.Bound() {
				return
			}
			pp.dispatchOne(r, cause)()
		}()
	})
	return nil
}

// EmitInitialize, if called before Start, queues v without storing it. When
// Start begins, it stores each queued value and submits its dispatch tasks,
// in call order, before it submits any Startup reaction. Called after Start
// has already begun, it behaves exactly like EmitLocal.
func EmitInitialize[T any](pp *PowerPlant, v T) error {
	pp.mu.Lock()
	if pp.started {
		pp.mu.Unlock()
		return EmitLocal(pp, v)
	}
	pp.initPending = append(pp.initPending, initEmit{t: reflect.TypeFor[T](), v: v})
	pp.mu.Unlock()
	return nil
}

// EmitNetwork hands v to the PowerPlant's configured NetworkBackend for
// transmission to remote peers. It does not itself store v in the
// TypeStore or dispatch any local reaction; a backend that also wants
// local delivery, as [nuclear.NetworkBackend]'s default loopback
// implementation does, calls back into the PowerPlant to do so.
func EmitNetwork[T any](pp *PowerPlant, v T) error {
	if !pp.sched.Accepting() {
		return ErrClosed
	}
	return pp.net.Send(reflect.TypeFor[T](), v)
}

// dispatch schedules one task per reaction currently bound to t, in bind
// order, for the just-stored value v. Single-flight drops and Raw
// first-bound-wins claims are resolved per emit, across every subscriber
// of this one call, not per reaction.
func (p *PowerPlant) dispatch(t reflect.Type, v any) {
	cause := registry.Cause{Type: t, Value: v, Claim: &registry.RawClaim{}}
	p.bus.ForEach(t, func(r *registry.Record) {
		if !r.TryReserveInflight() {
			p.metrics.SingleDropped(r.Label)
			return
		}
		p.sched.Submit(&scheduler.Task{
			Record:    r,
			Priority:  r.Options.Priority,
			SyncGroup: r.Options.SyncGroup,
			Run:       p.dispatchOne(r, cause),
		})
	})
}

// dispatchOne returns the closure that resolves r's arguments against
// cause, invokes the callback with panics recovered into a log line and
// the callback-failures counter, and runs the Once post-condition. The
// caller is responsible for having already reserved (and, outside the
// scheduler, for releasing) r's in-flight slot.
//
// The Once claim is attempted here, after resolveArgs has already
// succeeded, not before: a dispatch attempt whose With/Optional joins
// aren't satisfied yet must not burn the once-claim, or the reaction would
// never get a chance to run on a later, complete emit. Attempting the
// claim only once args are known to resolve also keeps multiple
// concurrent dispatch attempts for the same record race-free — only an
// attempt that would actually invoke the callback competes for the claim,
// and exactly one of them wins it.
func (p *PowerPlant) dispatchOne(r *registry.Record, cause registry.Cause) func() {
	return func() {
		args, ok := resolveArgs(r.Args, cause)
		if !ok {
			p.metrics.DispatchSkipped(r.Label)
			return
		}
		if !r.TryClaimOnce() {
			return
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					p.metrics.CallbackFailure(r.Label)
					p.logf("nuclear: reaction %q (id=%d) panicked: %v", r.Label, r.ID, rec)
				}
			}()
			store.WithTransient(p.store, cause, func() {
				r.Invoke(args)
			})
		}()
		if r.Options.Once {
			p.reg.Unbind(r)
		}
	}
}
