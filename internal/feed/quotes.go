package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/infrastructure"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// QuoteFeed is the reference implementation of the external live-quote
// collaborator: a websocket stream of last prices used to price same-day
// session signals. Quote retrieval itself carries no core invariants.
type QuoteFeed struct {
	logger *zap.Logger
	url    string
}

func NewQuoteFeed(logger *zap.Logger, url string) *QuoteFeed {
	return &QuoteFeed{logger: logger, url: url}
}

// quoteEvent is the raw wire message.
type quoteEvent struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	TsMs   int64  `json:"ts"`
}

// Run keeps the connection alive with exponential backoff and pushes quotes
// to the channel. Quotes are dropped, never blocked on, when the consumer
// falls behind.
func (f *QuoteFeed) Run(ctx context.Context, quoteChan chan<- model.Quote) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f.logger.Info("connecting to quote feed", zap.String("url", f.url))
		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		conn, _, err := dialer.Dial(f.url, nil)
		if err != nil {
			f.logger.Error("failed to connect to quote feed", zap.Error(err))
			time.Sleep(backoff)
			backoff = increaseBackoff(backoff)
			continue
		}

		backoff = time.Second // Reset backoff on successful connection
		f.logger.Info("connected to quote feed")
		infrastructure.WSConnections.Inc()

		if err := f.handleConnection(ctx, conn, quoteChan); err != nil {
			f.logger.Error("quote connection closed with error", zap.Error(err))
		}
		infrastructure.WSConnections.Dec()
		conn.Close()
	}
}

func (f *QuoteFeed) handleConnection(ctx context.Context, conn *websocket.Conn, quoteChan chan<- model.Quote) error {
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return err
			}

			var event quoteEvent
			if err := json.Unmarshal(message, &event); err != nil {
				f.logger.Error("failed to unmarshal quote event", zap.Error(err))
				continue
			}

			price, err := decimal.NewFromString(event.Price)
			if err != nil || price.LessThanOrEqual(decimal.Zero) {
				f.logger.Warn("rejecting invalid quote price",
					zap.String("symbol", event.Symbol), zap.String("price", event.Price))
				continue
			}

			quote := model.Quote{
				Symbol:    event.Symbol,
				Price:     price,
				Timestamp: time.Unix(0, event.TsMs*int64(time.Millisecond)),
			}
			select {
			case quoteChan <- quote:
			default:
				f.logger.Warn("quote channel full, dropping quote", zap.String("symbol", quote.Symbol))
			}
		}
	}
}

func increaseBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > time.Minute {
		return time.Minute
	}
	return next
}
