package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/orderbridge-backend/internal/analytics/types"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

// Inserter streams rows into a named table.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type Config struct {
	Table          string
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// OrderEventWriter buffers order_events rows and streams them once BatchSize
// rows are pending. A failed flush drops its rows: the worker nacks the
// message that triggered it and Pub/Sub redelivers.
type OrderEventWriter struct {
	client Inserter
	table  string
	batch  int

	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu      sync.Mutex
	pending []types.OrderEventRow
}

func New(client Inserter, cfg Config) (*OrderEventWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	w := &OrderEventWriter{
		client:         client,
		table:          table,
		batch:          cfg.BatchSize,
		attempts:       cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
	if w.batch <= 0 {
		w.batch = defaultBatchSize
	}
	if w.attempts <= 0 {
		w.attempts = defaultMaxAttempts
	}
	if w.initialBackoff <= 0 {
		w.initialBackoff = defaultInitialBackoff
	}
	if w.maxBackoff < w.initialBackoff {
		w.maxBackoff = max(defaultMaxBackoff, w.initialBackoff)
	}
	return w, nil
}

func (w *OrderEventWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, row)
	if len(w.pending) < w.batch {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush streams whatever is pending regardless of batch size.
func (w *OrderEventWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *OrderEventWriter) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, len(w.pending))
	for i := range w.pending {
		rows[i] = &w.pending[i]
	}
	w.pending = nil
	return w.put(ctx, rows)
}

func (w *OrderEventWriter) put(ctx context.Context, rows []any) error {
	backoff := retry.WithMaxRetries(uint64(w.attempts-1),
		retry.WithCappedDuration(w.maxBackoff, retry.NewExponential(w.initialBackoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %d %s rows: %w", len(rows), w.table, err)
	}
	return nil
}
