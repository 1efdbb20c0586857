// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import "time"

// Tick is the synthetic value delivered to a reaction bound with Every: the
// tick's nominal time according to the PowerPlant's clock. It is a distinct
// type from time.Time so it cannot be confused with a regular emitted
// time.Time value on the event bus.
type Tick time.Time

// Time returns t as a plain time.Time.
func (t Tick) Time() time.Time { return time.Time(t) }
