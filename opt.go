// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

// Opt wraps an Optional argument's resolved value. Present distinguishes a
// real zero value of T from outright absence; a callback parameter declared
// with Optional must be typed Opt[T], never T directly, or bind-time
// signature validation fails.
type Opt[T any] struct {
	Value   T
	Present bool
}

// Get returns the wrapped value and whether it was present, mirroring the
// comma-ok idiom used by the store package this type mirrors.
func (o Opt[T]) Get() (T, bool) { return o.Value, o.Present }
