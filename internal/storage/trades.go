package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/infrastructure"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// TradeSaver buffers matched trades and flushes them to Postgres in batches.
type TradeSaver struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	interval time.Duration
	maxBatch int

	mu     sync.Mutex
	buffer []model.MatchedTrade
}

func NewTradeSaver(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration, maxBatch int) *TradeSaver {
	return &TradeSaver{
		pool:     pool,
		logger:   logger,
		interval: interval,
		maxBatch: maxBatch,
		buffer:   make([]model.MatchedTrade, 0, maxBatch),
	}
}

// Add queues one trade; a full buffer flushes immediately.
func (s *TradeSaver) Add(trade model.MatchedTrade) {
	s.mu.Lock()
	s.buffer = append(s.buffer, trade)
	full := len(s.buffer) >= s.maxBatch
	s.mu.Unlock()

	if full {
		s.Flush(context.Background())
	}
}

// Run flushes on a ticker until the context ends, then drains once.
func (s *TradeSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes the buffered trades inside one transaction.
func (s *TradeSaver) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]model.MatchedTrade, 0, s.maxBatch)
	s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error("failed to begin trade batch", zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	for _, t := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO matched_trades
				(symbol, direction, entry_date, entry_price, exit_date, exit_price, shares, fee, pnl, synthetic)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			t.Symbol, t.Direction, t.EntryDate, t.EntryPrice, t.ExitDate, t.ExitPrice, t.Shares, t.Fee, t.PnL, t.Synthetic)
		if err != nil {
			s.logger.Error("failed to insert matched trade", zap.Error(err))
			return
		}
		infrastructure.TradesSaved.WithLabelValues(t.Symbol).Inc()
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("failed to commit trade batch", zap.Error(err))
		return
	}
	s.logger.Debug("flushed matched trades", zap.Int("count", len(batch)))
}
