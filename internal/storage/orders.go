package storage

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// OrderSaver writes every confirmed order to the audit table. Orders are low
// volume (a handful per session), so no batching.
type OrderSaver struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewOrderSaver(pool *pgxpool.Pool, logger *zap.Logger) *OrderSaver {
	return &OrderSaver{pool: pool, logger: logger}
}

func (s *OrderSaver) Save(ctx context.Context, session string, order model.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (session, symbol, side, shares, ref_price)
		VALUES ($1, $2, $3, $4, $5)`,
		session, order.Symbol, order.Side, order.Shares, order.RefPrice)
	if err != nil {
		s.logger.Error("failed to insert order", zap.Error(err))
		return err
	}
	return nil
}
