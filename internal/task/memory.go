package task

import (
	"context"
	"errors"
	"sync"
)

// MemoryQueue records tasks in process. Tests inspect Tasks and run the
// backlog with RunPending.
type MemoryQueue struct {
	mu      sync.Mutex
	tasks   []Task
	pending []Task
	// Err, when set, fails every Enqueue.
	Err error
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, t Task) (Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return Handle{}, q.Err
	}
	q.tasks = append(q.tasks, t)
	q.pending = append(q.pending, t)
	return Handle{ID: t.ID, Queue: t.Queue}, nil
}

// Tasks returns every task enqueued so far.
func (q *MemoryQueue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// OfKind returns the enqueued tasks of kind.
func (q *MemoryQueue) OfKind(kind Kind) []Task {
	var out []Task
	for _, t := range q.Tasks() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// RunPending dispatches queued tasks in FIFO order until the backlog is empty,
// including tasks enqueued by handlers. Failed tasks are dropped and their
// errors joined.
func (q *MemoryQueue) RunPending(ctx context.Context, d *Dispatcher) error {
	var errs []error
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return errors.Join(errs...)
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := d.Dispatch(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
}

// InlineQueue executes tasks synchronously on Enqueue. It backs single-process
// development setups without a broker.
type InlineQueue struct {
	d *Dispatcher
}

// NewInlineQueue creates a queue that dispatches through d.
func NewInlineQueue(d *Dispatcher) *InlineQueue {
	return &InlineQueue{d: d}
}

func (q *InlineQueue) Enqueue(ctx context.Context, t Task) (Handle, error) {
	if err := q.d.Dispatch(ctx, t); err != nil {
		return Handle{}, err
	}
	return Handle{ID: t.ID, Queue: t.Queue}, nil
}
