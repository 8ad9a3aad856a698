package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/ai-broker/internal/metrics"
	"github.com/vnmchuo/ai-broker/internal/usage"
)

// Queue accepts usage events for asynchronous persistence. Enqueue never
// blocks; it reports false when the event was dropped.
type Queue interface {
	Enqueue(ev *usage.Event) bool
}

type Options struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Recorder drains a bounded queue of usage events into a usage.Store on a
// fixed pool of goroutines. Write failures are reported on Errors and never
// reach the request that produced the event.
type Recorder struct {
	store   usage.Store
	opts    Options
	queue   chan *usage.Event
	errs    chan error
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

var _ Queue = (*Recorder)(nil)

func NewRecorder(store usage.Store, opts Options) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Recorder{
		store: store,
		opts:  opts,
		queue: make(chan *usage.Event, opts.QueueSize),
		errs:  make(chan error, 64),
	}
}

// Start launches the worker goroutines.
func (r *Recorder) Start() {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.process()
	}
}

func (r *Recorder) Enqueue(ev *usage.Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.count("dropped")
		return false
	}

	select {
	case r.queue <- ev:
		r.depth()
		return true
	default:
		r.count("dropped")
		r.opts.Logger.Warn().
			Str("request_id", ev.RequestID).
			Int64("credits", ev.Credits).
			Msg("usage queue full, event dropped")
		return false
	}
}

// Errors exposes write failures. Errors are dropped if nobody reads them.
func (r *Recorder) Errors() <-chan error {
	return r.errs
}

// Stop refuses new events, waits for the queue to drain and closes Errors.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	close(r.errs)
}

func (r *Recorder) process() {
	defer r.wg.Done()
	for ev := range r.queue {
		r.depth()
		r.write(ev)
	}
}

func (r *Recorder) write(ev *usage.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()

	if err := r.store.Append(ctx, ev); err != nil {
		r.count("failed")
		select {
		case r.errs <- fmt.Errorf("usage event %s: %w", ev.ID, err):
		default:
		}
		return
	}
	r.count("written")
}

func (r *Recorder) count(status string) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.IncUsage(status)
	}
}

func (r *Recorder) depth() {
	if r.opts.Metrics != nil {
		r.opts.Metrics.SetUsageQueueDepth(len(r.queue))
	}
}
