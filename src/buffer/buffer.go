// Package buffer aggregates error reports into debounced batches and guarantees at most one
// forward in flight per distinct message.
package buffer

import (
	"context"
	"sync"
	"time"

	"devsonar/src/contracts"
	"devsonar/src/forward"
	"devsonar/src/logger"
	"devsonar/src/metrics"
)

const (
	DefaultDebounce = 3 * time.Second
	DefaultMaxSize  = 50
)

// Options configure a Buffer. They are fixed at construction.
type Options struct {
	Debounce time.Duration
	MaxSize  int
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Buffer queues reports and hands them to a Forwarder.
//
// A report whose message is already being forwarded is counted and dropped. Otherwise it
// joins the pending queue; the queue is flushed when it reaches MaxSize or after Debounce
// has passed without another Add. The debounce timer, the forward completion and callers
// all run on different goroutines, so every field below mu is guarded by it.
type Buffer struct {
	fwd  forward.Forwarder
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  []contracts.ErrorReport
	inFlight map[string]*contracts.InFlightEntry
	timer    *time.Timer
	gen      uint64
	closed   bool
}

// New creates a Buffer that forwards batches to fwd.
func New(fwd forward.Forwarder, opts Options) *Buffer {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewSilentLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Buffer{
		fwd:      fwd,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]*contracts.InFlightEntry),
	}
}

// Add queues a report unless the same message is already in flight.
func (b *Buffer) Add(report contracts.ErrorReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.opts.Logger.Warn("[Buffer] Dropping report after close: %q", report.Message)
		return
	}

	if entry, ok := b.inFlight[report.Message]; ok {
		entry.SkippedCount++
		b.opts.Metrics.DuplicateSkipped()
		b.opts.Logger.Debug("[Buffer] Skipping duplicate (in-flight): %q (skipped: %d)", report.Message, entry.SkippedCount)
		return
	}

	b.pending = append(b.pending, report)
	b.opts.Metrics.ReportReceived(report.Source)

	if len(b.pending) >= b.opts.MaxSize {
		b.flushLocked(metrics.TriggerSize)
		return
	}

	b.stopTimerLocked()
	gen := b.gen
	b.timer = time.AfterFunc(b.opts.Debounce, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// A newer Add or Flush has superseded this timer.
		if gen != b.gen {
			return
		}
		b.flushLocked(metrics.TriggerDebounce)
	})
	b.opts.Metrics.SetQueueDepth(len(b.pending), len(b.inFlight))
}

// Flush forwards the pending queue immediately and returns how many reports it took.
func (b *Buffer) Flush() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(metrics.TriggerManual)
}

// Size returns the number of pending reports.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// InFlightCount returns the number of distinct messages being forwarded.
func (b *Buffer) InFlightCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inFlight)
}

// InFlight returns a snapshot of the in-flight entries.
func (b *Buffer) InFlight() []contracts.InFlightEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]contracts.InFlightEntry, 0, len(b.inFlight))
	for _, e := range b.inFlight {
		entries = append(entries, *e)
	}
	return entries
}

// Close flushes what is pending and waits for outstanding forwards. When ctx ends first,
// the forwards' context is cancelled and ctx.Err() is returned without waiting for them to
// stop.
func (b *Buffer) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.flushLocked(metrics.TriggerClose)
		b.closed = true
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	}
}

func (b *Buffer) stopTimerLocked() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buffer) flushLocked(trigger string) int {
	b.stopTimerLocked()

	if len(b.pending) == 0 {
		return 0
	}

	batch := b.pending
	b.pending = nil

	now := b.opts.Now()
	created := make([]*contracts.InFlightEntry, len(batch))
	for i, r := range batch {
		entry := &contracts.InFlightEntry{
			Message: r.Message,
			Source:  r.Source,
			SentAt:  now,
			Status:  contracts.InFlightStatus,
		}
		b.inFlight[r.Message] = entry
		created[i] = entry
	}

	b.opts.Metrics.Flushed(trigger)
	b.opts.Metrics.SetQueueDepth(0, len(b.inFlight))
	b.opts.Logger.Debug("[Buffer] Flushing %d report(s) (%s) | total in-flight: %d", len(batch), trigger, len(b.inFlight))

	b.wg.Add(1)
	go b.forward(batch, created, now)
	return len(batch)
}

func (b *Buffer) forward(batch []contracts.ErrorReport, created []*contracts.InFlightEntry, start time.Time) {
	defer b.wg.Done()

	err := b.fwd.Forward(b.ctx, batch)

	outcome := metrics.OutcomeForwarded
	if err != nil {
		outcome = metrics.OutcomeFailed
		b.opts.Logger.Error("[Buffer] Forward of %d report(s) failed: %v", len(batch), err)
	}
	b.opts.Metrics.ForwardSettled(outcome, b.opts.Now().Sub(start).Seconds())

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range created {
		// Only the entry this cycle registered; a duplicate inside the batch may have replaced it.
		if current, ok := b.inFlight[entry.Message]; ok && current == entry {
			b.opts.Logger.Debug("[Buffer] Completed: %q (skipped %d duplicates during processing)", entry.Message, entry.SkippedCount)
			delete(b.inFlight, entry.Message)
		}
	}
	b.opts.Metrics.SetQueueDepth(len(b.pending), len(b.inFlight))
	b.opts.Logger.Debug("[Buffer] Ready for next batch | remaining in-flight: %d", len(b.inFlight))
}
