// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import "nuclear.run/internal/ioready"

// Event is a bit set of I/O readiness conditions, passed as the sole
// argument to a reaction bound with IO.
type Event = ioready.Event

const (
	Readable = ioready.Readable
	Writable = ioready.Writable
	Closed   = ioready.Closed
	Errored  = ioready.Errored
)

// IOBackend is the contract an I/O readiness source must satisfy to back
// the IO DSL operation. [ioready.NewReferenceBackend] provides a portable
// implementation; a host may supply a real epoll/kqueue-backed one instead.
type IOBackend = ioready.Backend
