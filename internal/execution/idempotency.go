package execution

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/storage"
)

// Session names one of the two daily trading windows.
type Session string

const (
	SessionOpen  Session = "OPEN"
	SessionClose Session = "CLOSE"
)

// ExecutionKey identifies one intended order occurrence, e.g.
// "2025-07-01|OPEN|AAPL|BUY".
func ExecutionKey(date time.Time, session Session, symbol string, side model.OrderSide) string {
	return fmt.Sprintf("%s|%s|%s|%s", date.Format("2006-01-02"), session, symbol, side)
}

// IdempotencyTracker records the key of every confirmed order so re-runs
// never resubmit it. Keys live in one file per calendar date; switching the
// date starts a fresh set, old files stay behind for audit.
type IdempotencyTracker struct {
	mu     sync.Mutex
	store  *storage.Store
	logger *zap.Logger
	date   string
	keys   map[string]struct{}
}

func NewIdempotencyTracker(store *storage.Store, logger *zap.Logger, date time.Time) (*IdempotencyTracker, error) {
	t := &IdempotencyTracker{
		store:  store,
		logger: logger,
	}
	if err := t.Reset(date); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *IdempotencyTracker) fileName() string {
	return "executed-" + t.date
}

// Reset switches the tracker to the given date, loading any keys already
// recorded for it.
func (t *IdempotencyTracker) Reset(date time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.date = date.Format("2006-01-02")
	t.keys = make(map[string]struct{})

	var recorded []string
	if _, err := t.store.Load(t.fileName(), &recorded); err != nil {
		return fmt.Errorf("load executed keys: %w", err)
	}
	for _, k := range recorded {
		t.keys[k] = struct{}{}
	}
	return nil
}

// Has reports whether the key was already recorded.
func (t *IdempotencyTracker) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}

// Record persists the key durably before returning. The caller must not
// proceed to the next order until Record succeeds.
func (t *IdempotencyTracker) Record(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.keys[key] = struct{}{}
	sorted := make([]string, 0, len(t.keys))
	for k := range t.keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	if err := t.store.Save(t.fileName(), sorted); err != nil {
		return fmt.Errorf("persist executed keys: %w", err)
	}
	t.logger.Debug("execution key recorded", zap.String("key", key))
	return nil
}
