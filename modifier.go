// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"nuclear.run/internal/registry"
	"nuclear.run/internal/store"
)

// sourceKind distinguishes the four ways a reaction can be dispatched
// outside the ordinary type-indexed event bus.
type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceStartup
	sourceShutdown
	sourceEvery
	sourceIO
)

type sourceSpec struct {
	kind   sourceKind
	period time.Duration // sourceEvery
	fd     int           // sourceIO
	events Event         // sourceIO
}

// bindCtx accumulates the effect of every Modifier passed to On before the
// reaction is actually bound to the registry.
type bindCtx struct {
	store *store.TypeStore

	args       []registry.ArgSource
	paramTypes []reflect.Type // callback parameter type expected at each position, parallel to args
	triggers   []reflect.Type
	withs      []reflect.Type
	opts       registry.Options
	label      string
	source     *sourceSpec

	sourceConflict bool // true once a second Startup/Shutdown/Every/IO modifier has been applied
}

// setSource installs spec as bc's targeted dispatch source, or records a
// conflict if one was already installed by an earlier modifier. Checked by
// Reactor.On after every modifier has run.
func (bc *bindCtx) setSource(spec *sourceSpec) {
	if bc.source != nil {
		bc.sourceConflict = true
		return
	}
	bc.source = spec
}

// Modifier configures one aspect of a reaction passed to [Reactor.On]:
// either a positional argument (Trigger, With, Last, Optional, Raw) or a
// non-positional option (Priority, SyncGroup, SingleFlight, OnlyOnce,
// Label) or a targeted dispatch source (Startup, Shutdown, Every, IO).
type Modifier interface {
	apply(*bindCtx)
}

// argModifier builds one positional argument: the ArgSource bound into the
// registry, and the reflect.Type the callback's corresponding parameter
// must have.
type argModifier func(*bindCtx) (registry.ArgSource, reflect.Type)

func (m argModifier) apply(bc *bindCtx) {
	src, pt := m(bc)
	bc.args = append(bc.args, src)
	bc.paramTypes = append(bc.paramTypes, pt)
}

type optionModifier func(*bindCtx)

func (m optionModifier) apply(bc *bindCtx) { m(bc) }

// Trigger declares that T causes this reaction to dispatch, and supplies
// T's value as the corresponding callback argument.
func Trigger[T any]() Modifier {
	return argModifier(func(bc *bindCtx) (registry.ArgSource, reflect.Type) {
		t := reflect.TypeFor[T]()
		bc.triggers = append(bc.triggers, t)
		return registry.ArgSource{
			Type:      t,
			IsTrigger: true,
			Get: func(cause registry.Cause) (any, bool) {
				if cause.Type == t {
					return cause.Value, true
				}
				return store.GetLatest[T](bc.store)
			},
		}, t
	})
}

// With declares a data join: T's latest value is supplied as an argument,
// but T emits never by themselves dispatch this reaction.
func With[T any]() Modifier {
	return argModifier(func(bc *bindCtx) (registry.ArgSource, reflect.Type) {
		t := reflect.TypeFor[T]()
		bc.withs = append(bc.withs, t)
		return registry.ArgSource{
			Type:      t,
			IsTrigger: false,
			Get: func(cause registry.Cause) (any, bool) {
				if cause.Type == t {
					return cause.Value, true
				}
				return store.GetLatest[T](bc.store)
			},
		}, t
	})
}

// Last supplies the n most recent values of T, oldest first, as a []T
// argument. It is a data join like With: it never dispatches the reaction
// by itself. Last configures T's history depth to at least n.
func Last[T any](n int) Modifier {
	return argModifier(func(bc *bindCtx) (registry.ArgSource, reflect.Type) {
		t := reflect.TypeFor[T]()
		bc.withs = append(bc.withs, t)
		store.SetHistoryDepth[T](bc.store, n)
		return registry.ArgSource{
			Type:      t,
			IsTrigger: false,
			Get: func(cause registry.Cause) (any, bool) {
				return store.GetLastN[T](bc.store, n), true
			},
		}, reflect.TypeFor[[]T]()
	})
}

// Optional wraps another positional modifier (Trigger, With, or Last) so
// that absence of T is observable as Opt[T]{Present: false} instead of
// preventing dispatch. The callback's corresponding parameter must be typed
// Opt[T].
func Optional[T any](inner Modifier) Modifier {
	am, ok := inner.(argModifier)
	if !ok {
		panic("nuclear: Optional must wrap an argument modifier (Trigger, With, or Last)")
	}
	return argModifier(func(bc *bindCtx) (registry.ArgSource, reflect.Type) {
		src, _ := am(bc)
		get := src.Get
		return registry.ArgSource{
			Type:      src.Type,
			IsTrigger: src.IsTrigger,
			Get: func(cause registry.Cause) (any, bool) {
				v, ok := get(cause)
				if !ok {
					return Opt[T]{}, true
				}
				return Opt[T]{Value: v.(T), Present: true}, true
			},
		}, reflect.TypeFor[Opt[T]]()
	})
}

// Raw wraps a Trigger or With modifier for T so that, for any single emit,
// only the first task to resolve this argument observes the value; every
// later resolver for that same emit sees T as absent. Tasks resolve in the
// order the scheduler runs them (priority, then arrival), so with more than
// one worker the winner is not necessarily the earliest-bound reaction. Raw has
// no effect on reads of T that aren't the dispatch's own cause (i.e.
// ordinary With joins against an older "latest" value are never claimed).
func Raw[T any](inner Modifier) Modifier {
	am, ok := inner.(argModifier)
	if !ok {
		panic("nuclear: Raw must wrap an argument modifier (Trigger or With)")
	}
	return argModifier(func(bc *bindCtx) (registry.ArgSource, reflect.Type) {
		src, pt := am(bc)
		get := src.Get
		return registry.ArgSource{
			Type:      src.Type,
			IsTrigger: src.IsTrigger,
			Get: func(cause registry.Cause) (any, bool) {
				if cause.Type == src.Type && !cause.Claim.Take() {
					return nil, false
				}
				return get(cause)
			},
		}, pt
	})
}

// Priority sets the reaction's scheduling priority. Default is
// [registry.DEFAULT].
func Priority(p registry.Priority) Modifier {
	return optionModifier(func(bc *bindCtx) { bc.opts.Priority = p })
}

// SyncGroup serializes this reaction against every other bound reaction
// sharing the same non-empty group name: at most one task from the group
// executes at a time, in FIFO order of arrival.
func SyncGroup(name string) Modifier {
	return optionModifier(func(bc *bindCtx) { bc.opts.SyncGroup = name })
}

// NewSyncGroup returns a fresh, process-wide-unique sync group name. Useful
// when two or more reactions bound in the same function need to share a
// group but the caller has no natural name for it.
func NewSyncGroup() string {
	return uuid.NewString()
}

// SingleFlight drops a new dispatch for this reaction while a previous one
// is still queued or executing, instead of queuing it behind the first.
func SingleFlight() Modifier {
	return optionModifier(func(bc *bindCtx) { bc.opts.Single = true })
}

// OnlyOnce unbinds the reaction automatically after its first successful
// dispatch attempt (whether or not the callback panicked).
func OnlyOnce() Modifier {
	return optionModifier(func(bc *bindCtx) { bc.opts.Once = true })
}

// Label attaches a human-readable name to the reaction, surfaced in
// diagnostics and panic logs.
func Label(name string) Modifier {
	return optionModifier(func(bc *bindCtx) { bc.label = name })
}

// Startup dispatches the reaction exactly once, after every other Install
// call has completed but before Start returns. Startup reactions take no
// trigger/with arguments; the callback must take zero arguments.
func Startup() Modifier {
	return optionModifier(func(bc *bindCtx) { bc.setSource(&sourceSpec{kind: sourceStartup}) })
}

// Shutdown dispatches the reaction exactly once, during PowerPlant.Shutdown,
// after dispatch of ordinary tasks has drained. Shutdown reactions take no
// trigger/with arguments; the callback must take zero arguments.
func Shutdown() Modifier {
	return optionModifier(func(bc *bindCtx) { bc.setSource(&sourceSpec{kind: sourceShutdown}) })
}

// Every dispatches the reaction on a coalescing periodic timer with the
// given period: a tick that arrives while a previous one is still being
// processed is dropped rather than queued. The callback must take a single
// Tick argument (the tick's nominal time) or zero arguments.
func Every(period time.Duration) Modifier {
	return optionModifier(func(bc *bindCtx) {
		bc.setSource(&sourceSpec{kind: sourceEvery, period: period})
	})
}

// IO dispatches the reaction whenever fd becomes ready for any event in
// events. The callback must take a single ioready.Event argument (the
// readiness conditions observed) or zero arguments. IO reactions are
// implicitly single: a readiness event that fires while the previous
// callback is still running is dropped rather than queued, the same as an
// explicit SingleFlight.
func IO(fd int, events Event) Modifier {
	return optionModifier(func(bc *bindCtx) {
		bc.opts.Single = true
		bc.setSource(&sourceSpec{kind: sourceIO, fd: fd, events: events})
	})
}
