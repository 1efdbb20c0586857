// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package chrono_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nuclear.run/internal/chrono"
	"nuclear.run/internal/chrono/chronotest"
)

func TestRegisterFiresPeriodically(t *testing.T) {
	clock := chronotest.New(time.Unix(0, 0))
	svc := chrono.New(clock)

	var n atomic.Int32
	stop := svc.Register(1, time.Second, func(time.Time) { n.Add(1) })
	defer stop()

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return n.Load() == 3 }, time.Second, time.Millisecond)
}

func TestRegisterCoalescesSlowConsumer(t *testing.T) {
	clock := chronotest.New(time.Unix(0, 0))
	svc := chrono.New(clock)

	var mu sync.Mutex
	var calls int
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	stop := svc.Register(2, time.Second, func(time.Time) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	defer stop()

	// First tick starts onTick and blocks it on release.
	clock.Advance(time.Second)
	<-started

	// Three more ticks arrive while onTick is still blocked; only one can
	// occupy the 1-buffered relay, so they must coalesce into a single
	// pending delivery once onTick unblocks.
	clock.Advance(3 * time.Second)

	close(release)
	// Allow the single coalesced delivery (and only it) to run.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, calls, 2, "slow consumer must not see every dropped tick delivered individually")
}

func TestRegisterDuplicateIDPanics(t *testing.T) {
	clock := chronotest.New(time.Unix(0, 0))
	svc := chrono.New(clock)
	stop := svc.Register(3, time.Second, func(time.Time) {})
	defer stop()

	require.Panics(t, func() {
		svc.Register(3, time.Second, func(time.Time) {})
	})
}

func TestStopIsIdempotentAndJoinsGoroutine(t *testing.T) {
	clock := chronotest.New(time.Unix(0, 0))
	svc := chrono.New(clock)
	stop := svc.Register(4, time.Second, func(time.Time) {})
	stop()
	stop()
	require.Equal(t, 0, svc.Len())
}
