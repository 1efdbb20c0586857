// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import (
	"fmt"
	"reflect"

	"nuclear.run/internal/registry"
	"nuclear.run/internal/store"
)

// validateSignature checks that callback is a function whose parameter
// list matches paramTypes exactly, position for position. Extra checks for
// the zero-argument and single-synthetic-argument cases used by
// Startup/Shutdown/Every/IO are done by their respective callers.
func validateSignature(callback any, paramTypes []reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(callback)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return reflect.Value{}, ErrNotAFunction
	}
	t := v.Type()
	if t.NumIn() != len(paramTypes) {
		return reflect.Value{}, fmt.Errorf("%w: callback takes %d parameters, %d argument modifiers were declared",
			ErrBadCallbackSignature, t.NumIn(), len(paramTypes))
	}
	for i, pt := range paramTypes {
		if t.In(i) != pt {
			return reflect.Value{}, fmt.Errorf("%w: parameter %d is %s, want %s",
				ErrBadCallbackSignature, i, t.In(i), pt)
		}
	}
	return v, nil
}

// buildInvoke returns the closure a registry.Record calls to run callback
// with a resolved argument list. args[i] must already be assignable to
// callback's i'th parameter type, as guaranteed by validateSignature having
// accepted the same paramTypes used to build args.
func buildInvoke(callback reflect.Value) func(args []any) {
	t := callback.Type()
	return func(args []any) {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			if a == nil {
				in[i] = reflect.Zero(t.In(i))
				continue
			}
			in[i] = reflect.ValueOf(a)
		}
		callback.Call(in)
	}
}

// resolveArgs runs every ArgSource in order against cause, in the order the
// reaction declared them. It returns ok=false if any non-Optional source
// required a value that is currently absent, meaning the task must be
// dropped without invoking the callback at all.
func resolveArgs(srcs []registry.ArgSource, cause registry.Cause) ([]any, bool) {
	out := make([]any, len(srcs))
	for i, s := range srcs {
		v, ok := s.Get(cause)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// currentCause returns the type and value of the cause installed for the
// reaction currently executing on the calling goroutine. ok is false when
// called from a goroutine that is not inside a reaction's callback. Inside an
// Every or IO reaction whose callback takes the Tick or Event argument, the
// cause is that value; inside a Startup or Shutdown reaction, or an Every or
// IO reaction with a zero-parameter callback, ok is true and the returned
// type and value are nil.
func currentCause(s *store.TypeStore) (reflect.Type, any, bool) {
	c, ok := store.GetTransient[registry.Cause](s)
	if !ok {
		return nil, nil, false
	}
	return c.Type, c.Value, true
}
