package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunDeliversSingleOutcome(t *testing.T) {
	task := Run(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	outcome := <-task.Outcome()
	if outcome.Err != nil || outcome.Text != "done" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	task.Join()
	if !task.Done() {
		t.Fatalf("task should report done after join")
	}
}

func TestRunDeliversFailure(t *testing.T) {
	wantErr := errors.New("boom")
	task := Run(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	outcome := <-task.Outcome()
	if !errors.Is(outcome.Err, wantErr) {
		t.Fatalf("expected failure outcome, got %+v", outcome)
	}
	task.Join()
}

func TestCancelSuppressesDelivery(t *testing.T) {
	started := make(chan struct{})
	task := Run(context.Background(), time.Minute, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	<-started
	task.Cancel()
	task.Join()

	select {
	case outcome := <-task.Outcome():
		t.Fatalf("no outcome should be delivered after cancel, got %+v", outcome)
	default:
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	task := Run(context.Background(), time.Minute, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	task.Cancel()
	task.Cancel()
	task.Join()
}

func TestRunWithoutTimeoutCancelStopsWorker(t *testing.T) {
	started := make(chan struct{})
	task := Run(context.Background(), 0, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	<-started
	task.Cancel()
	task.Join()
	if !task.Done() {
		t.Fatalf("worker should have exited after cancel")
	}
}

func TestTimeoutDeliversFailure(t *testing.T) {
	task := Run(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	select {
	case outcome := <-task.Outcome():
		if !errors.Is(outcome.Err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %+v", outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout failure was never delivered")
	}
	task.Join()
}

func TestParentContextCancelPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := Run(ctx, time.Minute, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	cancel()
	select {
	case outcome := <-task.Outcome():
		if !errors.Is(outcome.Err, context.Canceled) {
			t.Fatalf("expected canceled, got %+v", outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("parent cancellation was never observed")
	}
	task.Join()
}
