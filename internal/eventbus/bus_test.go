// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package eventbus_test

import (
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/creachadair/taskgroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuclear.run/internal/eventbus"
	"nuclear.run/internal/registry"
)

type eventA struct{}

func newRecord(reg *registry.Registry, label string) *registry.Handle {
	return reg.Bind(label, []reflect.Type{reflect.TypeFor[eventA]()}, nil, nil, registry.Options{}, func([]any) {})
}

func TestForEachPreservesBindOrder(t *testing.T) {
	b := eventbus.New()
	reg := registry.New(b)

	h1 := newRecord(reg, "first")
	h2 := newRecord(reg, "second")
	h3 := newRecord(reg, "third")
	_ = h2

	var order []string
	b.ForEach(reflect.TypeFor[eventA](), func(r *registry.Record) {
		order = append(order, r.Label)
	})
	assert.Equal(t, []string{"first", "second", "third"}, order)

	h1.Unbind()
	h3.Unbind()
}

func TestUnsubscribeDoesNotAffectInFlightSnapshot(t *testing.T) {
	b := eventbus.New()
	reg := registry.New(b)

	h1 := newRecord(reg, "a")
	h2 := newRecord(reg, "b")

	var seen []string
	b.ForEach(reflect.TypeFor[eventA](), func(r *registry.Record) {
		seen = append(seen, r.Label)
		if r.Label == "a" {
			h2.Unbind() // mutate the topic list mid-iteration
		}
	})
	// h2 should still have been observed: ForEach took a snapshot before
	// iterating, so a concurrent unsubscribe cannot shrink it.
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 1, b.Subscribers(reflect.TypeFor[eventA]()))
	h1.Unbind()
}

func TestSubscribersCountTracksUnbind(t *testing.T) {
	b := eventbus.New()
	reg := registry.New(b)
	typ := reflect.TypeFor[eventA]()

	require.Equal(t, 0, b.Subscribers(typ))
	h := newRecord(reg, "solo")
	require.Equal(t, 1, b.Subscribers(typ))
	h.Unbind()
	require.Equal(t, 0, b.Subscribers(typ))
	h.Unbind() // idempotent
	require.Equal(t, 0, b.Subscribers(typ))
}

// TestManySubscribersUnderConcurrentPublish binds a large number of records
// on one topic and hammers ForEach from many goroutines at once, checking
// that every publish reaches every still-bound record exactly once and that
// the race detector finds nothing to complain about.
func TestManySubscribersUnderConcurrentPublish(t *testing.T) {
	const subscribers = 50
	const publishers = 20
	const eventsPerPublisher = 25

	b := eventbus.New()
	reg := registry.New(b)
	typ := reflect.TypeFor[eventA]()

	counts := make([]atomic.Int64, subscribers)
	var handles []*registry.Handle
	for i := range subscribers {
		i := i
		h := reg.Bind("sub", []reflect.Type{typ}, nil, nil, registry.Options{}, func([]any) {
			counts[i].Add(1)
		})
		handles = append(handles, h)
	}

	var g taskgroup.Group
	for range publishers {
		g.Go(func() error {
			for range eventsPerPublisher {
				b.ForEach(typ, func(r *registry.Record) {
					r.Invoke(nil)
				})
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range counts {
		assert.Equal(t, int64(publishers*eventsPerPublisher), counts[i].Load(), "subscriber %d missed publishes", i)
	}

	for _, h := range handles {
		h.Unbind()
	}
}
