package integration

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorker_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	w := NewWorker(5*time.Millisecond, func() { runs.Add(1) })

	w.Start()
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	w.Stop()

	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want at least 3", runs.Load())
	}

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("worker ran after Stop: %d -> %d", after, runs.Load())
	}
}

func TestWorker_StopBeforeStart(t *testing.T) {
	var runs atomic.Int32
	w := NewWorker(time.Millisecond, func() { runs.Add(1) })

	w.Stop()
	w.Start()
	w.Stop()

	if runs.Load() != 0 {
		t.Errorf("runs = %d, want 0", runs.Load())
	}
}

func TestWorker_NotRestartable(t *testing.T) {
	var runs atomic.Int32
	w := NewWorker(time.Millisecond, func() { runs.Add(1) })

	w.Start()
	w.Stop()
	stopped := runs.Load()

	w.Start()
	time.Sleep(20 * time.Millisecond)
	w.Stop()

	if runs.Load() != stopped {
		t.Errorf("runs = %d after restart attempt, want %d", runs.Load(), stopped)
	}
}
