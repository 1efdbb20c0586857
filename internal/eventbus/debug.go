// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package eventbus

import (
	"sync"

	"nuclear.run/internal/set"
)

// A hook is a hook point to which functions can be attached. When
// the hook is run, attached callbacks are invoked synchronously, in
// unspecified order.
type hook[T any] struct {
	sync.Mutex
	fns set.HandleSet[func(T)]
}

// add registers fn to be called when the hook is run.
//
// Returns a cleanup function that unregisters fn when called.
func (h *hook[T]) add(fn func(T)) (remove func()) {
	h.Lock()
	defer h.Unlock()
	id := h.fns.Add(fn)
	return func() { h.remove(id) }
}

// remove unregisters the hook function with the given handle.
func (h *hook[T]) remove(id set.Handle) {
	h.Lock()
	defer h.Unlock()
	h.fns.Delete(id)
}

// run calls all registered hooks functions with v.
//
// HandleSet iteration order is unspecified, unlike the bind-order
// iteration ForEach guarantees for reactions; debug route observers have
// no such ordering contract.
func (h *hook[T]) run(v T) {
	h.Lock()
	defer h.Unlock()
	for _, fn := range h.fns {
		fn(v)
	}
}

// active reports whether any hook functions are registered. Hook call
// sites can use this to skip doing work if nobody's listening.
func (h *hook[T]) active() bool {
	h.Lock()
	defer h.Unlock()
	return len(h.fns) > 0
}
