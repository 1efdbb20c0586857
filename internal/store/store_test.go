// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package store

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickA struct{ N int }
type tickB struct{ N int }

func TestGetLatestAbsentUntilSet(t *testing.T) {
	s := New()
	_, ok := GetLatest[tickA](s)
	require.False(t, ok, "unset type must report absent")

	Set(s, tickA{N: 1})
	v, ok := GetLatest[tickA](s)
	require.True(t, ok)
	assert.Equal(t, tickA{N: 1}, v)
}

func TestTypesAreIndependent(t *testing.T) {
	s := New()
	Set(s, tickA{N: 1})
	_, ok := GetLatest[tickB](s)
	assert.False(t, ok, "setting A must not affect B's slot")
}

func TestHistoryOldestFirst(t *testing.T) {
	s := New()
	SetHistoryDepth[tickA](s, 3)
	for i := 1; i <= 5; i++ {
		Set(s, tickA{N: i})
	}
	got := GetLastN[tickA](s, 3)
	require.Len(t, got, 3)
	if diff := cmp.Diff(got, []tickA{{N: 3}, {N: 4}, {N: 5}}); diff != "" {
		t.Errorf("history (-got, +want):\n%s", diff)
	}
}

func TestHistoryShorterThanRequestedWhenSparse(t *testing.T) {
	s := New()
	SetHistoryDepth[tickA](s, 5)
	Set(s, tickA{N: 1})
	got := GetLastN[tickA](s, 5)
	if diff := cmp.Diff(got, []tickA{{N: 1}}); diff != "" {
		t.Errorf("history (-got, +want):\n%s", diff)
	}
}

func TestTransientScopedToDuration(t *testing.T) {
	s := New()
	var sawInside, sawAfter bool
	var insideVal tickA

	WithTransient(s, tickA{N: 42}, func() {
		insideVal, sawInside = GetTransient[tickA](s)
	})
	_, sawAfter = GetTransient[tickA](s)

	assert.True(t, sawInside)
	assert.Equal(t, tickA{N: 42}, insideVal)
	assert.False(t, sawAfter, "transient must not outlive the scoped call")
}

func TestTransientReleasedOnPanic(t *testing.T) {
	s := New()
	func() {
		defer func() { recover() }()
		WithTransient(s, tickA{N: 1}, func() {
			panic("boom")
		})
	}()
	_, ok := GetTransient[tickA](s)
	assert.False(t, ok, "transient must be released even if fn panics")
}

func TestTransientIsPerGoroutine(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	results := make(chan bool, 2)

	WithTransient(s, tickA{N: 1}, func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := GetTransient[tickA](s)
			results <- ok
		}()
		wg.Wait()
	})
	close(results)

	for ok := range results {
		assert.False(t, ok, "a goroutine that never installed a transient must never see one")
	}
	_, ok := GetTransient[tickA](s)
	assert.False(t, ok, "the calling goroutine's transient must be released once its scope ends")
}
