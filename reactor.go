// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import (
	"fmt"
	"reflect"
	"runtime"

	"nuclear.run/internal/registry"
)

// Reactor groups a set of related reactions bound against the same
// PowerPlant. Application code typically embeds Reactor in its own type and
// calls On from a constructor to declare its reactions.
type Reactor struct {
	pp   *PowerPlant
	Name string
}

// NewReactor returns a Reactor bound to pp, identified by name in
// diagnostics.
func NewReactor(pp *PowerPlant, name string) *Reactor {
	return &Reactor{pp: pp, Name: name}
}

// On binds callback as a reaction configured by mods. It returns a Handle
// for later Enable/Disable/Unbind, or an error if callback's signature
// doesn't match the declared argument modifiers, or the modifiers
// themselves conflict.
//
// callback's parameter list must exactly match, in order, the positional
// modifiers among mods (Trigger, With, Last, Optional, Raw): plain Trigger
// and With parameters are typed T, Last[T] is []T, and Optional[T] is
// Opt[T]. A reaction bound with Startup or Shutdown takes a callback with
// no parameters. A reaction bound with Every takes either no parameters or
// a single Tick. A reaction bound with IO takes either no parameters or a
// single Event.
func (r *Reactor) On(callback any, mods ...Modifier) (*Handle, error) {
	r.pp.mu.Lock()
	closed := r.pp.shutdown
	r.pp.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	bc := &bindCtx{store: r.pp.store, opts: registry.Options{Priority: registry.DEFAULT}}
	for _, m := range mods {
		m.apply(bc)
	}

	if bc.sourceConflict {
		return nil, ErrConflictingSource
	}

	if bc.source != nil {
		if len(bc.args) != 0 {
			return nil, ErrSourceWithTrigger
		}
		return r.bindSource(bc, callback)
	}

	if len(bc.triggers) == 0 {
		return nil, ErrEmptyTriggerSet
	}

	fn, err := validateSignature(callback, bc.paramTypes)
	if err != nil {
		return nil, err
	}
	if bc.label == "" {
		bc.label = funcName(callback)
	}

	invoke := buildInvoke(fn)
	h := r.pp.reg.Bind(bc.label, bc.triggers, bc.withs, bc.args, bc.opts, invoke)
	return (*Handle)(h), nil
}

func (r *Reactor) bindSource(bc *bindCtx, callback any) (*Handle, error) {
	var paramTypes []reflect.Type
	switch bc.source.kind {
	case sourceStartup, sourceShutdown:
		// zero params
	case sourceEvery:
		paramTypes = []reflect.Type{reflect.TypeFor[Tick]()}
	case sourceIO:
		paramTypes = []reflect.Type{reflect.TypeFor[Event]()}
	}

	fn, err := validateSignature(callback, paramTypes)
	if err != nil {
		// Both sources also accept a zero-parameter callback.
		fn, err = validateSignature(callback, nil)
		if err != nil {
			return nil, err
		}
		paramTypes = nil
	}
	if bc.label == "" {
		bc.label = funcName(callback)
	}

	invoke := buildInvoke(fn)
	h := r.pp.reg.Bind(bc.label, nil, nil, nil, bc.opts, invoke)
	r.pp.registerSource(bc.source, h, len(paramTypes) == 1)
	return (*Handle)(h), nil
}

func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	if f := runtime.FuncForPC(pc); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("%T", fn)
}
