package engine

import (
	"context"
	"sync"
)

// Task is the Go-side future for one running script. It resolves when the
// rewritten function's promise settles, which is how callers chain work after
// a script (and all of its suspensions) completes.
type Task struct {
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	val  any
	err  error
}

// NewTask creates an unresolved task.
func NewTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Done returns a channel closed when the task settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error, or nil. Valid after Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Value returns the script's exported result. Valid after Done is closed.
func (t *Task) Value() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.val
}

// Wait blocks until the task settles or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.val, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve settles the task with a value. Later settles are ignored.
func (t *Task) Resolve(v any) {
	t.once.Do(func() {
		t.mu.Lock()
		t.val = v
		t.mu.Unlock()
		close(t.done)
	})
}

// Reject settles the task with an error. Later settles are ignored.
func (t *Task) Reject(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}
