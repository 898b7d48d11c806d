// Package recorder subscribes to configured mini-ticker feeds and batches
// the resulting ticks into PostgreSQL.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grvt-dev/grvt-go/api"
	"github.com/grvt-dev/grvt-go/internal/config"
	"github.com/grvt-dev/grvt-go/stream"
)

// Metrics counts recorder activity.
type Metrics struct {
	Ticks     int64
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// tickRow is one row of the ticks table.
type tickRow struct {
	RunID      string
	Instrument string
	EventTime  string
	LastPrice  string
	MarkPrice  string
	IndexPrice string
	BestBid    string
	BestAsk    string
	ReceivedAt int64
}

// Recorder ties the subscription manager to the tick store.
type Recorder struct {
	cfg     config.RecorderOpts
	manager *stream.Manager
	db      *pgxpool.Pool
	logger  *slog.Logger
	runID   string

	subs []*stream.Subscription

	batchMu sync.Mutex
	batch   []tickRow
	metrics Metrics

	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a Recorder. Each run gets a fresh run id so overlapping
// deployments never collide on the ticks table.
func New(cfg config.RecorderOpts, manager *stream.Manager, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:     cfg,
		manager: manager,
		db:      db,
		logger:  logger,
		runID:   uuid.NewString(),
		batch:   make([]tickRow, 0, cfg.BatchSize),
	}
}

// RunID returns this run's identifier.
func (r *Recorder) RunID() string {
	return r.runID
}

// Start subscribes to every configured feed and begins batching.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	for _, feed := range r.cfg.Feeds {
		sub, err := r.manager.Subscribe(r.ctx, feed.Stream, feed.Feed, r.handleTick)
		if err != nil {
			return fmt.Errorf("subscribe %s/%s: %w", feed.Stream, feed.Feed, err)
		}
		r.subs = append(r.subs, sub)

		r.wg.Add(1)
		go r.watchFailure(feed, sub)
	}

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"run_id", r.runID,
		"feeds", len(r.cfg.Feeds),
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop unsubscribes, drains goroutines, and flushes the final batch.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	r.flush(ctx)
	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// watchFailure logs when a feed's resubscription fails after a reconnect.
// The recorder keeps running on its remaining feeds.
func (r *Recorder) watchFailure(feed config.FeedConfig, sub *stream.Subscription) {
	defer r.wg.Done()

	select {
	case <-r.ctx.Done():
	case err, ok := <-sub.Failed():
		if ok && err != nil {
			r.logger.Error("feed lost after reconnect",
				"stream", feed.Stream,
				"feed", feed.Feed,
				"error", err,
			)
		}
	}
}

// handleTick transforms one feed payload and adds it to the batch.
func (r *Recorder) handleTick(feed json.RawMessage) {
	row, err := r.transform(feed, time.Now())
	if err != nil {
		r.logger.Debug("dropping unparseable tick", "error", err)
		return
	}

	r.batchMu.Lock()
	r.metrics.Ticks++
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

// transform converts a mini-ticker payload to a tickRow.
func (r *Recorder) transform(feed json.RawMessage, receivedAt time.Time) (tickRow, error) {
	var t api.MiniTicker
	if err := json.Unmarshal(feed, &t); err != nil {
		return tickRow{}, err
	}
	if t.Instrument == "" {
		return tickRow{}, fmt.Errorf("tick missing instrument")
	}

	return tickRow{
		RunID:      r.runID,
		Instrument: t.Instrument,
		EventTime:  t.EventTime,
		LastPrice:  t.LastPrice,
		MarkPrice:  t.MarkPrice,
		IndexPrice: t.IndexPrice,
		BestBid:    t.BestBidPrice,
		BestAsk:    t.BestAskPrice,
		ReceivedAt: receivedAt.UnixMicro(),
	}, nil
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	batch := r.batch
	r.batch = make([]tickRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed ticks",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []tickRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO ticks (run_id, instrument, event_time, last_price, mark_price, index_price, best_bid, best_ask, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (instrument, event_time) DO NOTHING
		`, row.RunID, row.Instrument, row.EventTime, row.LastPrice, row.MarkPrice, row.IndexPrice, row.BestBid, row.BestAsk, row.ReceivedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
