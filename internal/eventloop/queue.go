// Package eventloop runs delayed work on a single, time-ordered queue.
//
// Queue is a virtual-time queue advanced explicitly by its owner, which
// makes delayed effects deterministic in tests and in offline simulations.
// Runner drives the same queue from a clock on one goroutine and accepts
// commands from other goroutines.
package eventloop

import (
	"container/heap"
	"time"
)

type task struct {
	due time.Time
	seq uint64
	key string
	fn  func()
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Queue holds tasks ordered by due time, then by scheduling order. It is
// not safe for concurrent use.
type Queue struct {
	now   time.Time
	seq   uint64
	tasks taskHeap
}

// NewQueue starts virtual time at start.
func NewQueue(start time.Time) *Queue {
	return &Queue{now: start}
}

// Now returns the queue's current time.
func (q *Queue) Now() time.Time {
	return q.now
}

// After schedules fn to run d after the current time. Tasks with equal due
// times run in the order they were scheduled.
func (q *Queue) After(key string, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	q.seq++
	heap.Push(&q.tasks, &task{due: q.now.Add(d), seq: q.seq, key: key, fn: fn})
}

// Len returns the number of scheduled tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Pending counts scheduled tasks for key.
func (q *Queue) Pending(key string) int {
	n := 0
	for _, t := range q.tasks {
		if t.key == key {
			n++
		}
	}
	return n
}

// Next returns the due time of the earliest task.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.tasks) == 0 {
		return time.Time{}, false
	}
	return q.tasks[0].due, true
}

// AdvanceTo moves time forward to t, running every task due at or before
// t, including tasks scheduled by those tasks. It returns how many ran.
// Time never moves backwards.
func (q *Queue) AdvanceTo(t time.Time) int {
	ran := 0
	for len(q.tasks) > 0 && !q.tasks[0].due.After(t) {
		next := heap.Pop(&q.tasks).(*task)
		if next.due.After(q.now) {
			q.now = next.due
		}
		next.fn()
		ran++
	}
	if t.After(q.now) {
		q.now = t
	}
	return ran
}

// setNow moves time forward to t without running anything.
func (q *Queue) setNow(t time.Time) {
	if t.After(q.now) {
		q.now = t
	}
}

// Advance is AdvanceTo(Now()+d).
func (q *Queue) Advance(d time.Duration) int {
	return q.AdvanceTo(q.now.Add(d))
}

// RunUntilIdle runs tasks until none remain, jumping time to each due
// time. It returns how many ran.
func (q *Queue) RunUntilIdle() int {
	ran := 0
	for {
		next, ok := q.Next()
		if !ok {
			return ran
		}
		ran += q.AdvanceTo(next)
	}
}
