// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package scheduler implements the priority-ordered ready queue, sync-group
// serialization, and worker pool that turn scheduled tasks into executed
// callbacks.
package scheduler

import "nuclear.run/internal/registry"

// Task is a schedulable, single-use unit of work. It is pushed into the
// scheduler once the dispatch layer has already reserved an in-flight slot
// on Record (via [registry.Record.TryReserveInflight]) and decided the task
// should exist at all.
type Task struct {
	Record      *registry.Record
	Priority    registry.Priority
	SyncGroup   string // "" means no sync group
	CreationSeq uint64 // assigned by the scheduler at Submit time

	// fair and groupRank are assigned by the scheduler itself at enqueue
	// time, never by the caller: they back SyncGroupFairness (see
	// Scheduler.fair) and have no meaning outside the ready heap's Less.
	fair      bool
	groupRank uint64

	// Run performs argument resolution, invokes the user callback, and runs
	// the record's post-condition (including Once's self-unbind). The
	// scheduler calls Run only if the record is still enabled and bound at
	// dispatch time; otherwise the task is dropped silently. The scheduler
	// always releases the record's in-flight slot and any sync-group hold
	// after Run returns (or after the drop), and recovers a panic from Run
	// so one failing callback never takes down a worker.
	Run func()
}
