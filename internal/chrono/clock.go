// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package chrono provides the Clock abstraction and periodic-tick service
// backing the Every DSL operation.
package chrono

import "time"

// Clock abstracts time so periodic registrations can be driven by a fake
// clock in tests instead of real wall time.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) (Ticker, <-chan time.Time)
}

// Ticker is the subset of *time.Ticker's behavior a Clock needs to expose.
type Ticker interface {
	Stop()
}

// RealClock is the production Clock, backed directly by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) (Ticker, <-chan time.Time) {
	t := time.NewTicker(d)
	return t, t.C
}
