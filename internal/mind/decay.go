package mind

import (
	"container/heap"
	"sync"
	"time"
)

// decayEntry — one "decay server roast counter at time At" task.
type decayEntry struct {
	At       time.Time
	ServerID string
}

type decayHeap []decayEntry

func (h decayHeap) Len() int            { return len(h) }
func (h decayHeap) Less(i, j int) bool  { return h[i].At.Before(h[j].At) }
func (h decayHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *decayHeap) Push(x interface{}) { *h = append(*h, x.(decayEntry)) }
func (h *decayHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// DecayQueue replaces per-event native timers with one min-heap processed by
// a single ticking goroutine. Every scheduled entry fires exactly once;
// Stop drops everything that has not fired yet.
type DecayQueue struct {
	mu      sync.Mutex
	heap    decayHeap
	wake    chan struct{}
	done    chan struct{}
	stopped bool
	onFire  func(serverID string)
}

// NewDecayQueue creates a queue delivering fired entries to onFire.
func NewDecayQueue(onFire func(serverID string)) *DecayQueue {
	q := &DecayQueue{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		onFire: onFire,
	}
	heap.Init(&q.heap)
	go q.loop()
	return q
}

// Schedule registers a decay for serverID at time at.
func (q *DecayQueue) Schedule(serverID string, at time.Time) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	heap.Push(&q.heap, decayEntry{At: at, ServerID: serverID})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of entries that have not fired yet.
func (q *DecayQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Stop shuts the queue down and clears all pending entries so nothing leaks
// across restarts.
func (q *DecayQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.heap = nil
	q.mu.Unlock()
	close(q.done)
}

func (q *DecayQueue) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		q.mu.Lock()
		var wait time.Duration
		now := time.Now()
		for len(q.heap) > 0 && !q.heap[0].At.After(now) {
			e := heap.Pop(&q.heap).(decayEntry)
			q.mu.Unlock()
			if q.onFire != nil {
				q.onFire(e.ServerID)
			}
			q.mu.Lock()
		}
		if len(q.heap) > 0 {
			wait = time.Until(q.heap[0].At)
		} else {
			wait = time.Hour
		}
		q.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-q.done:
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}
