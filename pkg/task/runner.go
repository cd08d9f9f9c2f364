// Package task runs one blocking operation (model inference, document text
// extraction) on a worker goroutine and delivers exactly one outcome back to
// the initiating context.
package task

import (
	"context"
	"sync"
	"time"
)

// Outcome carries either the result text or the failure of a task. Exactly
// one Outcome is delivered per task, and none after cancellation.
type Outcome struct {
	Text string
	Err  error
}

// Task is a handle to one in-flight background operation. The initiating
// surface owns the handle and must either receive the outcome or call
// Cancel; on teardown it calls Cancel followed by Join before releasing
// shared resources.
type Task struct {
	outcome  chan Outcome
	finished chan struct{}

	cancelOnce sync.Once
	canceled   chan struct{}
	cancelFn   context.CancelFunc
}

// Run executes fn on a worker goroutine. The worker's context is canceled
// when timeout elapses or Cancel is called; a timeout failure is still
// delivered (fn reports it), while Cancel suppresses delivery entirely.
// The outcome channel is unbuffered: a canceled task never delivers.
func Run(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) *Task {
	var workerCtx context.Context
	var cancelFn context.CancelFunc
	if timeout > 0 {
		workerCtx, cancelFn = context.WithTimeout(ctx, timeout)
	} else {
		workerCtx, cancelFn = context.WithCancel(ctx)
	}
	t := &Task{
		outcome:  make(chan Outcome),
		finished: make(chan struct{}),
		canceled: make(chan struct{}),
		cancelFn: cancelFn,
	}
	go func() {
		defer close(t.finished)
		defer cancelFn()
		text, err := fn(workerCtx)
		select {
		case t.outcome <- Outcome{Text: text, Err: err}:
		case <-t.canceled:
			// The surface is gone; drop the outcome on the floor.
		}
	}()
	return t
}

// Outcome returns the delivery channel. Receive from it at most once.
func (t *Task) Outcome() <-chan Outcome {
	return t.outcome
}

// Canceled is closed once Cancel has been called. Receivers waiting on the
// outcome channel select on it to avoid blocking on a task that will never
// deliver.
func (t *Task) Canceled() <-chan struct{} {
	return t.canceled
}

// Cancel requests the worker to stop and suppresses delivery. It does not
// abort a remote call mid-flight; it only prevents the outcome from reaching
// the initiating context.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() {
		close(t.canceled)
		t.cancelFn()
	})
}

// Join blocks until the worker has acknowledged and exited. Teardown must
// call Cancel then Join before releasing resources the worker may touch.
func (t *Task) Join() {
	<-t.finished
}

// Done reports without blocking whether the worker has exited.
func (t *Task) Done() bool {
	select {
	case <-t.finished:
		return true
	default:
		return false
	}
}
