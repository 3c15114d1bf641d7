package engine

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

type DataLoader struct {
	pool *pgxpool.Pool
}

func NewDataLoader(pool *pgxpool.Pool) *DataLoader {
	return &DataLoader{pool: pool}
}

func (l *DataLoader) LoadBars(ctx context.Context, symbol string, start, end time.Time) (model.Series, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT date, symbol, open, high, low, close, volume
		FROM market_bars
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`,
		symbol, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series model.Series
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Date, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		series = append(series, b)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}
