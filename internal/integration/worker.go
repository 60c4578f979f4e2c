package integration

import (
	"sync"
	"time"
)

// Worker runs a function immediately and then on a fixed interval, in its own
// goroutine, until Stop is called. Polling kinds use it for the background
// work they begin in Start.
//
// A Worker is single-use: once stopped it never runs again, so a handler that
// can be restarted builds a new Worker in each Start.
type Worker struct {
	interval time.Duration
	fn       func()

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorker creates a stopped worker.
func NewWorker(interval time.Duration, fn func()) *Worker {
	return &Worker{
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}
}

// Start launches the loop. Calls after the first, or after Stop, are ignored.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.loop()
	})
}

// Stop ends the loop and waits for the current run of fn to return.
// Safe to call multiple times, and before Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	select {
	case <-w.done:
		return
	default:
	}
	w.fn()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.fn()
		}
	}
}
