// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package ioready_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nuclear.run/internal/ioready"
)

func TestPollNotifiesOnlyOnReadinessChange(t *testing.T) {
	b := ioready.NewReferenceBackend()
	defer b.Close()

	ready := false
	var notifications int
	tok := b.RegisterFunc(3, ioready.Readable, func(int, ioready.Event) (ioready.Event, error) {
		if ready {
			return ioready.Readable, nil
		}
		return 0, nil
	}, func(ioready.Event) { notifications++ })
	defer b.Unregister(tok)

	require.NoError(t, b.Poll())
	require.Equal(t, 0, notifications)

	ready = true
	require.NoError(t, b.Poll())
	require.Equal(t, 1, notifications)

	// Still ready on the next poll: level stays the same, no repeat notify.
	require.NoError(t, b.Poll())
	require.Equal(t, 1, notifications)

	ready = false
	require.NoError(t, b.Poll())
	ready = true
	require.NoError(t, b.Poll())
	require.Equal(t, 2, notifications, "readiness clearing and recurring must notify again")
}

func TestUnregisterStopsNotifications(t *testing.T) {
	b := ioready.NewReferenceBackend()
	defer b.Close()

	var notifications int
	tok := b.RegisterFunc(4, ioready.Readable, func(int, ioready.Event) (ioready.Event, error) {
		return ioready.Readable, nil
	}, func(ioready.Event) { notifications++ })

	require.NoError(t, b.Poll())
	require.Equal(t, 1, notifications)

	b.Unregister(tok)
	require.NoError(t, b.Poll())
	require.Equal(t, 1, notifications)
}
