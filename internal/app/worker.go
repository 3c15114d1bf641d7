package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/config"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/engine"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/feed"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// startPersistenceService subscribes to the trading subjects and writes
// orders and matched trades to the database.
func (a *App) startPersistenceService() {
	// 1. Confirmed orders (audit log)
	_, err := a.JS.Subscribe("trading.order.*.*", func(m *nats.Msg) {
		var order model.Order
		if err := json.Unmarshal(m.Data, &order); err != nil {
			a.Logger.Error("failed to unmarshal order", zap.Error(err))
			return
		}
		parts := strings.Split(m.Subject, ".")
		session := ""
		if len(parts) > 2 {
			session = parts[2]
		}
		if err := a.orderSaver.Save(context.Background(), session, order); err == nil {
			m.Ack()
		}
	}, nats.Durable("order_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to orders", zap.Error(err))
	}

	// 2. Matched trades
	_, err = a.JS.Subscribe("trading.trade.*", func(m *nats.Msg) {
		var trade model.MatchedTrade
		if err := json.Unmarshal(m.Data, &trade); err != nil {
			a.Logger.Error("failed to unmarshal matched trade", zap.Error(err))
			return
		}
		a.tradeSaver.Add(trade)
		m.Ack()
	}, nats.Durable("trade_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to trades", zap.Error(err))
	}
}

// startSearchWorker scans the window grid for every instrument that asks for
// optimization. The pipeline is pure, so instruments fan out over the pool
// with no coordination.
func (a *App) startSearchWorker(ctx context.Context) {
	var jobs []engine.SearchJob
	for _, ic := range a.Instruments {
		if ic.PastRange == nil || ic.TradeRange == nil {
			continue
		}
		series, err := a.loadHistory(ctx, ic)
		if err != nil {
			a.Logger.Error("failed to load history for search",
				zap.String("symbol", ic.Symbol), zap.Error(err))
			continue
		}
		if ic.LongEnabled {
			jobs = append(jobs, engine.SearchJob{
				Series: series, Instrument: ic, Direction: model.DirectionLong,
				PastRange: *ic.PastRange, TradeRange: *ic.TradeRange,
			})
		}
		if ic.ShortEnabled {
			jobs = append(jobs, engine.SearchJob{
				Series: series, Instrument: ic, Direction: model.DirectionShort,
				PastRange: *ic.PastRange, TradeRange: *ic.TradeRange,
			})
		}
	}
	if len(jobs) == 0 {
		return
	}

	pool := engine.NewWorkerPool(4, len(jobs), a.Logger)
	pool.Start(ctx)
	for _, job := range jobs {
		pool.Submit(job)
	}

	go func() {
		for i := 0; i < len(jobs); i++ {
			select {
			case <-ctx.Done():
				return
			case result := <-pool.Results():
				a.Logger.Info("window search result",
					zap.String("symbol", result.Symbol),
					zap.String("direction", string(result.Direction)),
					zap.Int("past_window", result.PastWindow),
					zap.Int("trade_window", result.TradeWindow),
					zap.String("final_capital", result.FinalCapital.String()),
				)
			}
		}
	}()
}

func (a *App) loadHistory(ctx context.Context, ic config.InstrumentConfig) (model.Series, error) {
	loader := engine.NewDataLoader(a.DB)
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	return loader.LoadBars(ctx, ic.Symbol, start, time.Now().UTC())
}

// startQuoteWorker relays the external quote feed onto the trading bus so
// websocket clients can watch live prices. Disabled when no feed URL is set.
func (a *App) startQuoteWorker(ctx context.Context) {
	if a.Config.QuoteURL == "" {
		return
	}

	quoteChan := make(chan model.Quote, 1000)
	quoteFeed := feed.NewQuoteFeed(a.Logger, a.Config.QuoteURL)
	go quoteFeed.Run(ctx, quoteChan)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case quote := <-quoteChan:
				subject := fmt.Sprintf("trading.quote.%s", quote.Symbol)
				data, err := json.Marshal(quote)
				if err != nil {
					a.Logger.Error("failed to marshal quote", zap.Error(err))
					continue
				}
				if _, err := a.JS.Publish(subject, data); err != nil {
					a.Logger.Error("failed to publish quote", zap.Error(err))
				}
			}
		}
	}()
}
