package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrixise/chainbridge/internal/lifecycle"
)

// EventWriter persists journal rows.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []TransferEvent) error
}

// Journal records lifecycle events without blocking the event loop. Rows
// are queued by Observe and written in batches by Run. The journal is an
// audit trail only; nothing is ever read back into a session.
type Journal struct {
	writer        EventWriter
	wallet        string
	queue         chan TransferEvent
	batchSize     int
	flushInterval time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger
	dropped       atomic.Int64
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

func WithWallet(address string) JournalOption {
	return func(j *Journal) { j.wallet = address }
}

func WithBatchSize(n int) JournalOption {
	return func(j *Journal) { j.batchSize = n }
}

func WithFlushInterval(d time.Duration) JournalOption {
	return func(j *Journal) { j.flushInterval = d }
}

func WithClock(c clockwork.Clock) JournalOption {
	return func(j *Journal) { j.clock = c }
}

func WithJournalLogger(l *slog.Logger) JournalOption {
	return func(j *Journal) { j.logger = l }
}

// NewJournal creates a journal holding up to capacity unwritten rows.
func NewJournal(w EventWriter, capacity int, opts ...JournalOption) *Journal {
	if capacity <= 0 {
		capacity = 256
	}
	j := &Journal{
		writer:        w,
		queue:         make(chan TransferEvent, capacity),
		batchSize:     50,
		flushInterval: 2 * time.Second,
		clock:         clockwork.NewRealClock(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Observe is a lifecycle.Observer. A full queue drops the row.
func (j *Journal) Observe(ev lifecycle.Event) {
	select {
	case j.queue <- FromLifecycle(j.wallet, ev):
	default:
		n := j.dropped.Add(1)
		j.logger.Warn("Journal queue full, dropping event", "kind", ev.Kind, "transfer_id", ev.TransferID, "dropped_total", n)
	}
}

// Dropped returns how many rows were discarded because the queue was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Run writes queued rows until ctx is done, then flushes what is left
// with a short grace period.
func (j *Journal) Run(ctx context.Context) error {
	ticker := j.clock.NewTicker(j.flushInterval)
	defer ticker.Stop()

	batch := make([]TransferEvent, 0, j.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := j.writer.InsertEvents(ctx, batch); err != nil {
			j.logger.Error("Failed to write journal batch", "events", len(batch), "error", err)
		} else {
			j.logger.Debug("Journal batch written", "events", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case ev := <-j.queue:
					batch = append(batch, ev)
				default:
					break drain
				}
			}
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(drainCtx)
			cancel()
			return ctx.Err()
		case ev := <-j.queue:
			batch = append(batch, ev)
			if len(batch) >= j.batchSize {
				flush(ctx)
			}
		case <-ticker.Chan():
			flush(ctx)
		}
	}
}
