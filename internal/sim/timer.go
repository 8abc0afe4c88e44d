package sim

import "container/heap"

// Time is simulated time in abstract units. Reports treat one unit as 1 ns.
type Time int64

// timer is a pending wake-up for a suspended process.
type timer struct {
	at   Time
	seq  uint64 // tie-breaker: earlier registrations wake first
	proc *Process
}

// timerQueue is a min-heap of timers ordered by (at, seq).
//
// Ordering on seq as well as time keeps wake-up order independent of heap
// internals, so two runs with identical inputs wake processes identically.
type timerQueue []timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) { *q = append(*q, x.(timer)) }

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	// Drop the process pointer so the backing array does not retain it.
	old[n-1] = timer{}
	*q = old[:n-1]
	return t
}

func (q *timerQueue) schedule(t timer) { heap.Push(q, t) }

// peek returns the earliest timer without removing it.
func (q timerQueue) peek() (timer, bool) {
	if len(q) == 0 {
		return timer{}, false
	}
	return q[0], true
}

// popDue removes and returns every timer scheduled exactly at t, in order.
func (q *timerQueue) popDue(t Time) []*Process {
	var due []*Process
	for q.Len() > 0 && (*q)[0].at == t {
		due = append(due, heap.Pop(q).(timer).proc)
	}
	return due
}
