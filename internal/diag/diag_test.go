// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package diag_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"nuclear.run/internal/diag"
)

func TestCountersIncrementOnPrivateRegistry(t *testing.T) {
	m := diag.New()
	m.DispatchSkipped("disabled")
	m.DispatchSkipped("disabled")
	m.CallbackFailure("tick")
	m.SingleDropped("poll")
	m.SetTasksQueued(3)
	m.SetSyncGroupWaiters(1)

	count, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestDiscardMetricsNeverPanic(t *testing.T) {
	m := diag.NewDiscard()
	require.NotPanics(t, func() {
		m.DispatchSkipped("x")
		m.CallbackFailure("x")
		m.SingleDropped("x")
		m.SetTasksQueued(1)
		m.SetSyncGroupWaiters(1)
	})
}
