// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import "nuclear.run/internal/netbridge"

// NetworkBackend is the contract a transport must satisfy to carry values
// emitted with EmitNetwork to other processes, and deliver ones received
// from them into this PowerPlant's event bus. [netbridge.NewLoopback]
// provides the default, single-process implementation.
type NetworkBackend = netbridge.Backend
