package resilience

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, 6)
	defer pool.Close()

	var count int32
	for i := 0; i < 10; i++ {
		if err := pool.Submit(func(context.Context) {
			atomic.AddInt32(&count, 1)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	pool.Close()
	pool.Wait()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Fatalf("expected 10 jobs executed, got %d", got)
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 1)
	pool.Close()
	if err := pool.Submit(func(context.Context) {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
}

func TestWorkerPoolSkipsQueuedJobsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, 4)

	release := make(chan struct{})
	started := make(chan struct{})
	var ran int32

	if err := pool.Submit(func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	<-started

	for i := 0; i < 3; i++ {
		if err := pool.Submit(func(context.Context) { atomic.AddInt32(&ran, 1) }); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	cancel()
	close(release)
	pool.Close()
	pool.Wait()

	if got := atomic.LoadInt32(&ran); got != 0 {
		t.Fatalf("expected queued jobs to be skipped, %d ran", got)
	}
	if err := pool.Submit(func(context.Context) {}); err == nil {
		t.Fatalf("expected submit to fail after close")
	}
}
