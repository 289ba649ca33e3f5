package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pregnancy-guide-go/internal/metrics"
	"pregnancy-guide-go/internal/models"
)

// ChecklistWriteFunc sends a full checklist to the document store.
type ChecklistWriteFunc func(ctx context.Context, userID string, items []models.ChecklistItem) error

// ChecklistDoneFunc is told the outcome of every checklist write.
type ChecklistDoneFunc func(userID string, err error)

type checklistPayload struct {
	userID string
	items  []models.ChecklistItem
}

// Debouncer collapses bursts of checklist changes into one write. Each
// Schedule restarts the quiet window and replaces the pending payload, so only
// the last payload is sent. Writes never overlap, which keeps them in order.
type Debouncer struct {
	window  time.Duration
	timeout time.Duration
	write   ChecklistWriteFunc
	onDone  ChecklistDoneFunc
	logger  *zap.Logger
	metrics metrics.Recorder

	mu      sync.Mutex
	pending  *checklistPayload
	inFlight int
	timer    *time.Timer
	seq      uint64
	stopped  bool

	// sem holds the single write slot.
	sem chan struct{}
}

// NewDebouncer creates a Debouncer that waits window after the last Schedule
// before calling write. Each write is bounded by timeout.
func NewDebouncer(window, timeout time.Duration, write ChecklistWriteFunc, onDone ChecklistDoneFunc, logger *zap.Logger, rec metrics.Recorder) *Debouncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if onDone == nil {
		onDone = func(string, error) {}
	}
	return &Debouncer{
		window:  window,
		timeout: timeout,
		write:   write,
		onDone:  onDone,
		logger:  logger,
		metrics: rec,
		sem:     make(chan struct{}, 1),
	}
}

// Schedule replaces the pending payload with items and restarts the window.
// A payload pending for a different user is sent right away.
func (d *Debouncer) Schedule(userID string, items []models.ChecklistItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if d.pending != nil {
		if d.pending.userID != userID {
			prev := d.pending
			d.inFlight++
			go d.send(context.Background(), prev)
		} else {
			d.metrics.RecordSupersededPayload()
		}
	}
	d.pending = &checklistPayload{userID: userID, items: append([]models.ChecklistItem{}, items...)}

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
}

// Busy reports whether a payload is waiting for its window or being written.
func (d *Debouncer) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil || d.inFlight > 0
}

// Flush sends the pending payload now, if there is one.
func (d *Debouncer) Flush(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()

	p := d.take(0)
	if p == nil {
		return nil
	}
	return d.deliver(ctx, p)
}

// Stop cancels the timer and drops anything still pending. Call Flush first
// to keep it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(seq uint64) {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	// A newer Schedule owns the payload; its own timer will send it.
	p := d.take(seq)
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	_ = d.deliver(ctx, p)
}

// take removes the pending payload. A non-zero seq must match the latest Schedule.
func (d *Debouncer) take(seq uint64) *checklistPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil || (seq != 0 && seq != d.seq) {
		return nil
	}
	p := d.pending
	d.pending = nil
	d.inFlight++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return p
}

func (d *Debouncer) send(ctx context.Context, p *checklistPayload) {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_ = d.deliver(ctx, p)
}

func (d *Debouncer) deliver(ctx context.Context, p *checklistPayload) error {
	err := d.write(ctx, p.userID, p.items)
	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()
	d.metrics.RecordDebouncedFlush()
	d.metrics.RecordRemoteWrite(metrics.WriteChecklist, metrics.Outcome(err))
	if err != nil {
		d.logger.Warn("Checklist write failed", zap.String("user_id", p.userID), zap.Int("items", len(p.items)), zap.Error(err))
	} else {
		d.logger.Debug("Checklist written", zap.String("user_id", p.userID), zap.Int("items", len(p.items)))
	}
	d.onDone(p.userID, err)
	return err
}
