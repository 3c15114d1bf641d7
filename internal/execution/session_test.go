package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/storage"
)

type runnerFixture struct {
	store   *storage.Store
	ledger  *PositionLedger
	tracker *IdempotencyTracker
	broker  *PaperBroker
	runner  *Runner
}

func newRunnerFixture(t *testing.T, date time.Time, dryRun bool) *runnerFixture {
	t.Helper()
	store := testStore(t)
	ledger := testLedger(t, store)
	tracker, err := NewIdempotencyTracker(store, zap.NewNop(), date)
	require.NoError(t, err)
	broker := NewPaperBroker()
	runner := NewRunner(zap.NewNop(), store, ledger, tracker, broker, nil, dryRun)
	return &runnerFixture{store: store, ledger: ledger, tracker: tracker, broker: broker, runner: runner}
}

func sessionOrders() []model.Order {
	return []model.Order{
		{Symbol: "AAPL", Side: model.SideBuy, Shares: 100, RefPrice: decimal.NewFromInt(10)},
		{Symbol: "MSFT", Side: model.SideSell, Shares: 50, RefPrice: decimal.NewFromInt(20)},
	}
}

func TestRunner_LiveRunSubmitsAppliesRecords(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f := newRunnerFixture(t, date, false)

	executed, err := f.runner.Execute(context.Background(), date, SessionOpen, sessionOrders())
	require.NoError(t, err)
	require.Len(t, executed, 2)

	// broker got both fills
	assert.Len(t, f.broker.Fills(), 2)

	// ledger reflects the signed order flow
	assert.Equal(t, int64(100), f.ledger.Get("AAPL"))
	assert.Equal(t, int64(-50), f.ledger.Get("MSFT"))

	// every order's key was recorded
	assert.True(t, f.tracker.Has(ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)))
	assert.True(t, f.tracker.Has(ExecutionKey(date, SessionOpen, "MSFT", model.SideSell)))
}

func TestRunner_RepeatSessionIsRejected(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f := newRunnerFixture(t, date, false)

	_, err := f.runner.Execute(context.Background(), date, SessionOpen, sessionOrders())
	require.NoError(t, err)

	_, err = f.runner.Execute(context.Background(), date, SessionOpen, sessionOrders())
	assert.ErrorIs(t, err, ErrSessionDone)
	assert.Len(t, f.broker.Fills(), 2)

	// the close session of the same day still runs
	_, err = f.runner.Execute(context.Background(), date, SessionClose, nil)
	assert.NoError(t, err)

	// and a new date resets both flags
	next := date.AddDate(0, 0, 1)
	require.NoError(t, f.tracker.Reset(next))
	_, err = f.runner.Execute(context.Background(), next, SessionOpen, nil)
	assert.NoError(t, err)
}

func TestRunner_PreRecordedKeysAreSkipped(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f := newRunnerFixture(t, date, false)

	orders := sessionOrders()
	for _, o := range orders {
		require.NoError(t, f.tracker.Record(ExecutionKey(date, SessionOpen, o.Symbol, o.Side)))
	}

	executed, err := f.runner.Execute(context.Background(), date, SessionOpen, orders)
	require.NoError(t, err)
	assert.Empty(t, executed)
	assert.Empty(t, f.broker.Fills())
	assert.Equal(t, int64(0), f.ledger.Get("AAPL"))
}

func TestRunner_DryRunProducesIdenticalListWithoutSideEffects(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	orders := sessionOrders()

	live := newRunnerFixture(t, date, false)
	liveOrders, err := live.runner.Execute(context.Background(), date, SessionOpen, orders)
	require.NoError(t, err)

	dry := newRunnerFixture(t, date, false)
	dry.runner.dryRun = true
	dryOrders, err := dry.runner.Execute(context.Background(), date, SessionOpen, orders)
	require.NoError(t, err)

	assert.Equal(t, liveOrders, dryOrders)

	// dry-run touched nothing
	assert.Empty(t, dry.broker.Fills())
	assert.Equal(t, int64(0), dry.ledger.Get("AAPL"))
	assert.False(t, dry.tracker.Has(ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)))

	// dry-run never marks the session done, so a live run can follow
	dry.runner.dryRun = false
	again, err := dry.runner.Execute(context.Background(), date, SessionOpen, orders)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

// failAfterBroker passes calls through until n orders have been accepted,
// then rejects the next one.
type failAfterBroker struct {
	*PaperBroker
	n    int
	seen int
}

func (b *failAfterBroker) SubmitOrder(ctx context.Context, order model.Order) error {
	if b.seen >= b.n {
		return errors.New("gateway timeout")
	}
	b.seen++
	return b.PaperBroker.SubmitOrder(ctx, order)
}

func TestRunner_MidBatchFailureThenResumeWithoutDoubles(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f := newRunnerFixture(t, date, false)
	broker := &failAfterBroker{PaperBroker: f.broker, n: 1}
	runner := NewRunner(zap.NewNop(), f.store, f.ledger, f.tracker, broker, nil, false)

	orders := sessionOrders()
	executed, err := runner.Execute(context.Background(), date, SessionOpen, orders)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionDone)

	// AAPL went through and was recorded before the failure, MSFT did not
	require.Len(t, executed, 1)
	assert.Equal(t, "AAPL", executed[0].Symbol)
	assert.Len(t, f.broker.Fills(), 1)
	assert.True(t, f.tracker.Has(ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)))
	assert.False(t, f.tracker.Has(ExecutionKey(date, SessionOpen, "MSFT", model.SideSell)))
	assert.Equal(t, int64(100), f.ledger.Get("AAPL"))

	// the session was not marked done; the re-run skips AAPL and only
	// submits the order that failed
	broker.seen = 0
	again, err := runner.Execute(context.Background(), date, SessionOpen, orders)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "MSFT", again[0].Symbol)
	assert.Len(t, f.broker.Fills(), 2)
	assert.Equal(t, int64(-50), f.ledger.Get("MSFT"))
}

func TestRunner_PaperBrokerSubmitErrFailsFirstOrder(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f := newRunnerFixture(t, date, false)
	f.broker.SubmitErr = errors.New("rejected")

	executed, err := f.runner.Execute(context.Background(), date, SessionOpen, sessionOrders())
	require.Error(t, err)
	assert.Empty(t, executed)
	assert.Empty(t, f.broker.Fills())
	assert.False(t, f.tracker.Has(ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)))

	// the error cleared itself, the re-run completes the full batch
	again, err := f.runner.Execute(context.Background(), date, SessionOpen, sessionOrders())
	require.NoError(t, err)
	assert.Len(t, again, 2)
}
