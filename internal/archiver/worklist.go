package archiver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HsienYu/BreakingNewsEffects/internal/extractor"
)

var errWorklistClosed = errors.New("worklist closed")

// articleJob is one headline queued for archiving. index preserves
// discovery order so results can be reassembled after the fan-out.
type articleJob struct {
	index    int
	headline extractor.Headline
}

// worklist is a bounded queue of article jobs with context-aware
// operations. The feeder adds jobs, workers take them, and Close releases
// any worker still waiting.
type worklist struct {
	ch      chan articleJob
	closeMu sync.Mutex
	closed  bool
}

func newWorklist(capacity int) *worklist {
	return &worklist{
		ch: make(chan articleJob, capacity),
	}
}

// Add pushes a job or returns when the context ends.
func (w *worklist) Add(ctx context.Context, job articleJob) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("worklist add canceled: %w", ctx.Err())
	case w.ch <- job:
		return nil
	}
}

// Next pops the next job, respecting context cancellation. After Close it
// returns errWorklistClosed once the queue drains.
func (w *worklist) Next(ctx context.Context) (articleJob, error) {
	select {
	case <-ctx.Done():
		return articleJob{}, fmt.Errorf("worklist next canceled: %w", ctx.Err())
	case job, ok := <-w.ch:
		if !ok {
			return articleJob{}, errWorklistClosed
		}
		return job, nil
	}
}

// Close marks the worklist complete. Jobs already queued still drain.
func (w *worklist) Close() {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return
	}
	close(w.ch)
	w.closed = true
}
