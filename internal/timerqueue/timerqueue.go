// Package timerqueue implements a mutex-guarded deadline min-heap shared by
// the manager's scheduling helpers and its main loop.
package timerqueue

import (
	"container/heap"
	"sync"
	"time"
)

// Callback is invoked with the time the entry fired (the loop's
// last-observed time, not necessarily the exact deadline) and the opaque
// context passed at Push.
type Callback func(now time.Time, ctx any)

// Entry is one scheduled timer. Entries are immutable once enqueued:
// cancellation is not supported, so a callback must itself no-op if it has
// gone stale (e.g. by checking a generation counter carried in ctx).
type Entry struct {
	Deadline time.Time
	Callback Callback
	Ctx      any
}

// Queue is a thread-safe min-heap ordered by Entry.Deadline; ties break
// arbitrarily.
type Queue struct {
	mu   sync.Mutex
	heap entryHeap
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push enqueues an entry. Safe to call from any goroutine, including a
// signal handler's non-signal-safe caller (the manager's own
// schedule_ms/schedule_at wrappers poke the self-pipe afterward).
func (q *Queue) Push(e Entry) {
	q.mu.Lock()
	heap.Push(&q.heap, e)
	q.mu.Unlock()
}

// Peek returns the earliest deadline without removing it.
func (q *Queue) Peek() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].Deadline, true
}

// PopIfDue removes and returns the earliest entry if its deadline is at or
// before now; otherwise it reports false and leaves the queue untouched.
func (q *Queue) PopIfDue(now time.Time) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return Entry{}, false
	}
	if q.heap[0].Deadline.After(now) {
		return Entry{}, false
	}
	e := heap.Pop(&q.heap).(Entry)
	return e, true
}

// Len reports the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

type entryHeap []Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Deadline.Before(h[j].Deadline) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)         { *h = append(*h, x.(Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
