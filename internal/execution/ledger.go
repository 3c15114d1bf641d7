package execution

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/storage"
)

const ledgerFile = "positions"

// PositionLedger is the one source of truth for current signed share counts.
// Positive is long, negative is short. It reloads from disk at startup and
// every mutation is persisted before returning.
type PositionLedger struct {
	mu        sync.Mutex
	store     *storage.Store
	logger    *zap.Logger
	positions map[string]int64
}

func NewPositionLedger(store *storage.Store, logger *zap.Logger) (*PositionLedger, error) {
	l := &PositionLedger{
		store:     store,
		logger:    logger,
		positions: make(map[string]int64),
	}
	if _, err := store.Load(ledgerFile, &l.positions); err != nil {
		return nil, fmt.Errorf("load position ledger: %w", err)
	}
	return l, nil
}

// Get returns the signed position for an instrument, zero when flat.
func (l *PositionLedger) Get(symbol string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positions[symbol]
}

// Apply updates the signed position for a confirmed execution. Buy and cover
// add, sell and short subtract. Flat instruments are removed from the map.
func (l *PositionLedger) Apply(symbol string, action model.Action, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("ledger apply %s %s: non-positive shares %d", symbol, action, shares)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delta := shares
	if action == model.ActionSell || action == model.ActionShort {
		delta = -shares
	}
	next := l.positions[symbol] + delta
	if next == 0 {
		delete(l.positions, symbol)
	} else {
		l.positions[symbol] = next
	}

	if err := l.store.Save(ledgerFile, l.positions); err != nil {
		return fmt.Errorf("persist position ledger: %w", err)
	}
	l.logger.Info("position updated",
		zap.String("symbol", symbol),
		zap.String("action", string(action)),
		zap.Int64("shares", shares),
		zap.Int64("position", next),
	)
	return nil
}

// Resync replaces the whole ledger with broker-reported positions. External
// truth always wins over locally inferred state.
func (l *PositionLedger) Resync(positions map[string]int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	replacement := make(map[string]int64, len(positions))
	for sym, qty := range positions {
		if qty != 0 {
			replacement[sym] = qty
		}
	}
	l.positions = replacement

	if err := l.store.Save(ledgerFile, l.positions); err != nil {
		return fmt.Errorf("persist position ledger: %w", err)
	}
	l.logger.Info("ledger resynced from broker", zap.Int("instruments", len(replacement)))
	return nil
}

// Snapshot returns a copy of all non-flat positions.
func (l *PositionLedger) Snapshot() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64, len(l.positions))
	for sym, qty := range l.positions {
		out[sym] = qty
	}
	return out
}
