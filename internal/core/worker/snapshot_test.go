package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestSnapshotWorkerTicksAndFlushesOnStop(t *testing.T) {
	var calls int32
	persist := func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := StartSnapshotWorker(ctx, 10*time.Millisecond, persist, slog.New(slog.NewTextHandler(io.Discard, nil)))

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("worker never ticked")
		}
		time.Sleep(5 * time.Millisecond)
	}

	before := atomic.LoadInt32(&calls)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if atomic.LoadInt32(&calls) <= before {
		t.Fatal("expected a final snapshot on stop")
	}
}

func TestSnapshotWorkerSurvivesErrors(t *testing.T) {
	var calls int32
	persist := func() error {
		atomic.AddInt32(&calls, 1)
		return errors.New("disk full")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := StartSnapshotWorker(ctx, 5*time.Millisecond, persist, slog.New(slog.NewTextHandler(io.Discard, nil)))

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("worker stopped after a failed snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
