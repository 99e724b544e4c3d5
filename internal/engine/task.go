package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies what a Task does when it runs.
type Kind int

const (
	KindAccept Kind = iota
	KindReceive
	KindSetDisplay
	KindWaitConsumed
	KindClose
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindReceive:
		return "receive"
	case KindSetDisplay:
		return "set-display"
	case KindWaitConsumed:
		return "wait-consumed"
	case KindClose:
		return "close"
	case KindFail:
		return "fail"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Task is one unit of scheduler work. Conn is set for per-connection kinds;
// Op and Err only for KindFail.
type Task struct {
	Kind Kind
	Conn uuid.UUID
	Op   string
	Err  error
}

func AcceptTask() Task                   { return Task{Kind: KindAccept} }
func ReceiveTask(id uuid.UUID) Task      { return Task{Kind: KindReceive, Conn: id} }
func SetDisplayTask(id uuid.UUID) Task   { return Task{Kind: KindSetDisplay, Conn: id} }
func WaitConsumedTask(id uuid.UUID) Task { return Task{Kind: KindWaitConsumed, Conn: id} }
func CloseTask(id uuid.UUID) Task        { return Task{Kind: KindClose, Conn: id} }

func FailTask(op string, id uuid.UUID, err error) Task {
	return Task{Kind: KindFail, Op: op, Conn: id, Err: err}
}

func (t Task) String() string {
	switch t.Kind {
	case KindAccept:
		return "accept"
	case KindFail:
		return fmt.Sprintf("fail(%s: %v)", t.Op, t.Err)
	default:
		return fmt.Sprintf("%s(%s)", t.Kind, shortID(t.Conn))
	}
}

// shortID is the first group of a UUID, enough to tell connections apart in
// logs.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// taskQueue is a FIFO of tasks.
type taskQueue struct {
	items []Task
	head  int
}

func (q *taskQueue) Push(ts ...Task) {
	q.items = append(q.items, ts...)
}

func (q *taskQueue) Pop() (Task, bool) {
	if q.head >= len(q.items) {
		return Task{}, false
	}
	t := q.items[q.head]
	q.items[q.head] = Task{}
	q.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t, true
}

func (q *taskQueue) Len() int {
	return len(q.items) - q.head
}

// Discard drops every queued task and returns how many there were.
func (q *taskQueue) Discard() int {
	n := q.Len()
	q.items = nil
	q.head = 0
	return n
}
