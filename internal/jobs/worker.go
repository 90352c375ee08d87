package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor drains one batch of ready work. Implementations must be
// safe to call repeatedly; an error aborts the current pass only, never
// the polling loop.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor at a fixed interval. One worker runs per
// process; claim semantics in the processor keep multiple processes from
// stepping on each other.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled or Stop is
// called. An immediate first pass runs before the ticker so a backlog
// left over from a previous run is picked up without waiting a full
// interval.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	log.Printf("embedding worker started, poll interval %v", w.pollInterval)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("embedding worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("embedding worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("embedding worker: pass failed: %v", err)
	}
}

// Stop signals the loop to exit and blocks until it has.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("embedding worker shutdown complete")
}
