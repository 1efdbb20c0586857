// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package scheduler_test

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nuclear.run/internal/registry"
	"nuclear.run/internal/scheduler"
)

func newTestRecord(t *testing.T, opts registry.Options) *registry.Record {
	t.Helper()
	bus := fakeBus{}
	reg := registry.New(bus)
	h := reg.Bind("test", nil, nil, nil, opts, func([]any) {})
	return h.Record()
}

type fakeBus struct{}

func (fakeBus) Subscribe(reflect.Type, *registry.Record)   {}
func (fakeBus) Unsubscribe(reflect.Type, *registry.Record) {}

func TestPriorityOrdering(t *testing.T) {
	s := scheduler.New(1, nil, false)
	defer func() { s.Drain(); s.Close() }()

	rLow := newTestRecord(t, registry.Options{})
	rHigh := newTestRecord(t, registry.Options{})

	var mu sync.Mutex
	var order []string

	block := make(chan struct{})
	// Submit a REALTIME task that blocks the single worker until both LOW
	// and HIGH tasks are enqueued, so their relative order is deterministic.
	rBlock := newTestRecord(t, registry.Options{})
	rBlock.TryReserveInflight()
	s.Submit(&scheduler.Task{
		Record:   rBlock,
		Priority: registry.REALTIME,
		Run:      func() { <-block },
	})

	rLow.TryReserveInflight()
	s.Submit(&scheduler.Task{
		Record:   rLow,
		Priority: registry.LOW,
		Run: func() {
			mu.Lock()
			order = append(order, "low")
			mu.Unlock()
		},
	})
	rHigh.TryReserveInflight()
	s.Submit(&scheduler.Task{
		Record:   rHigh,
		Priority: registry.HIGH,
		Run: func() {
			mu.Lock()
			order = append(order, "high")
			mu.Unlock()
		},
	})

	close(block)
	s.Drain()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"high", "low"}, order, "HIGH must run before LOW once both are ready")
}

func TestSyncGroupSerializes(t *testing.T) {
	s := scheduler.New(4, nil, false)
	defer func() { s.Drain(); s.Close() }()

	var running atomic.Int32
	var maxConcurrent atomic.Int32
	const n = 5

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		r := newTestRecord(t, registry.Options{})
		r.TryReserveInflight()
		s.Submit(&scheduler.Task{
			Record:    r,
			Priority:  registry.DEFAULT,
			SyncGroup: "g",
			Run: func() {
				defer wg.Done()
				cur := running.Add(1)
				for {
					m := maxConcurrent.Load()
					if cur <= m || maxConcurrent.CompareAndSwap(m, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
			},
		})
	}
	wg.Wait()
	require.Equal(t, int32(1), maxConcurrent.Load(), "tasks sharing a sync group must never run concurrently")
}

func TestSingleFlightDropsExcessTasks(t *testing.T) {
	r := newTestRecord(t, registry.Options{Single: true})
	s := scheduler.New(4, nil, false)
	defer func() { s.Drain(); s.Close() }()

	release := make(chan struct{})
	var ran atomic.Int32

	require.True(t, r.TryReserveInflight())
	s.Submit(&scheduler.Task{
		Record:   r,
		Priority: registry.DEFAULT,
		Run: func() {
			ran.Add(1)
			<-release
		},
	})

	// Further attempts to reserve an in-flight slot must fail while the
	// first task is still running, and the dispatch layer must never call
	// Submit for those attempts.
	for i := 0; i < 4; i++ {
		require.False(t, r.TryReserveInflight())
	}

	close(release)
	s.Drain()
	require.Equal(t, int32(1), ran.Load())
	require.True(t, r.TryReserveInflight(), "slot must be free again once the task finished")
}

func TestSyncGroupFairnessRotatesAcrossGroups(t *testing.T) {
	s := scheduler.New(1, nil, true)
	defer func() { s.Drain(); s.Close() }()

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	// a1 occupies the single worker and holds group "a" busy until released,
	// so a2 (submitted next) is forced onto group "a"'s waiter list rather
	// than running immediately.
	enteredA1 := make(chan struct{})
	releaseA1 := make(chan struct{})
	rA1 := newTestRecord(t, registry.Options{})
	rA1.TryReserveInflight()
	s.Submit(&scheduler.Task{
		Record:    rA1,
		Priority:  registry.DEFAULT,
		SyncGroup: "a",
		Run: func() {
			close(enteredA1)
			<-releaseA1
			record("a")
		},
	})
	<-enteredA1

	rA2 := newTestRecord(t, registry.Options{})
	rA2.TryReserveInflight()
	s.Submit(&scheduler.Task{Record: rA2, Priority: registry.DEFAULT, SyncGroup: "a", Run: func() { record("a") }})

	rB1 := newTestRecord(t, registry.Options{})
	rB1.TryReserveInflight()
	s.Submit(&scheduler.Task{Record: rB1, Priority: registry.DEFAULT, SyncGroup: "b", Run: func() { record("b") }})

	// a1 finishes, bumping group "a"'s serve counter before a2 is promoted.
	// Group "b" has never been served (rank 0 < a2's rank), so under
	// fairness b1 must run before a2 even though a2 was submitted first.
	close(releaseA1)
	s.Drain()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b", "a"}, order,
		"fairness must let b run before a's second, later-ranked task")
}

func TestDisabledRecordDropsQueuedTask(t *testing.T) {
	bus := fakeBus{}
	reg := registry.New(bus)
	h := reg.Bind("test", nil, nil, nil, registry.Options{}, func([]any) {})
	r := h.Record()

	s := scheduler.New(1, nil, false)
	defer func() { s.Drain(); s.Close() }()

	var ran atomic.Bool
	h.Disable()
	r.TryReserveInflight()
	s.Submit(&scheduler.Task{
		Record:   r,
		Priority: registry.DEFAULT,
		Run:      func() { ran.Store(true) },
	})
	s.Drain()
	require.False(t, ran.Load(), "a disabled record's queued task must be dropped at dispatch, not run")
}
