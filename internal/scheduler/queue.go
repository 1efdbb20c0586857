// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package scheduler

import "container/heap"

// taskHeap orders *Task by (Priority, CreationSeq): lower Priority values
// are higher priority (REALTIME=0 sorts first), and within a priority level
// lower CreationSeq wins, giving FIFO order among equal-priority tasks.
//
// When SyncGroupFairness is enabled (Task.fair), two ready tasks belonging
// to different non-empty sync groups at the same priority are instead
// ordered by groupRank, the serve-counter snapshot of their group at enqueue
// time: the group that has gone longest without running sorts first. This
// stops one sync group's steady stream of same-priority work from starving
// another group's waiters purely by virtue of arriving earlier.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	if h[i].fair && h[j].fair &&
		h[i].SyncGroup != "" && h[j].SyncGroup != "" &&
		h[i].SyncGroup != h[j].SyncGroup {
		return h[i].groupRank < h[j].groupRank
	}
	return h[i].CreationSeq < h[j].CreationSeq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = &taskHeap{}
