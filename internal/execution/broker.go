package execution

import (
	"context"
	"sync"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// BrokerClient is the external order/position collaborator. Transport,
// retries and quote retrieval live behind this interface; the core only
// needs per-order success or failure so the tracker stays accurate.
type BrokerClient interface {
	SubmitOrder(ctx context.Context, order model.Order) error
	Positions(ctx context.Context) (map[string]int64, error)
}

// PaperBroker fills every order instantly against its own position book.
// Used for dry-run wiring and tests.
type PaperBroker struct {
	mu        sync.Mutex
	fills     []model.Order
	positions map[string]int64

	// SubmitErr, when set, fails the next SubmitOrder call.
	SubmitErr error
}

func NewPaperBroker() *PaperBroker {
	return &PaperBroker{positions: make(map[string]int64)}
}

func (b *PaperBroker) SubmitOrder(_ context.Context, order model.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SubmitErr != nil {
		err := b.SubmitErr
		b.SubmitErr = nil
		return err
	}

	delta := order.Shares
	if order.Side == model.SideSell {
		delta = -order.Shares
	}
	b.positions[order.Symbol] += delta
	if b.positions[order.Symbol] == 0 {
		delete(b.positions, order.Symbol)
	}
	b.fills = append(b.fills, order)
	return nil
}

func (b *PaperBroker) Positions(_ context.Context) (map[string]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int64, len(b.positions))
	for sym, qty := range b.positions {
		out[sym] = qty
	}
	return out, nil
}

// Fills returns every order accepted so far.
func (b *PaperBroker) Fills() []model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Order, len(b.fills))
	copy(out, b.fills)
	return out
}
