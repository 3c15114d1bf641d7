package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

func TestExecutionKey_Format(t *testing.T) {
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	key := ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)
	assert.Equal(t, "2025-07-01|OPEN|AAPL|BUY", key)

	key = ExecutionKey(date, SessionClose, "MSFT", model.SideSell)
	assert.Equal(t, "2025-07-01|CLOSE|MSFT|SELL", key)
}

func TestIdempotencyTracker_HasAndRecord(t *testing.T) {
	store := testStore(t)
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	tracker, err := NewIdempotencyTracker(store, zap.NewNop(), date)
	require.NoError(t, err)

	key := ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)
	assert.False(t, tracker.Has(key))

	require.NoError(t, tracker.Record(key))
	assert.True(t, tracker.Has(key))

	// a different session or side is a different occurrence
	assert.False(t, tracker.Has(ExecutionKey(date, SessionClose, "AAPL", model.SideBuy)))
	assert.False(t, tracker.Has(ExecutionKey(date, SessionOpen, "AAPL", model.SideSell)))
}

func TestIdempotencyTracker_SurvivesRestart(t *testing.T) {
	store := testStore(t)
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tracker, err := NewIdempotencyTracker(store, zap.NewNop(), date)
	require.NoError(t, err)
	key := ExecutionKey(date, SessionOpen, "AAPL", model.SideBuy)
	require.NoError(t, tracker.Record(key))

	reloaded, err := NewIdempotencyTracker(store, zap.NewNop(), date)
	require.NoError(t, err)
	assert.True(t, reloaded.Has(key))
}

func TestIdempotencyTracker_ResetStartsFreshPerDate(t *testing.T) {
	store := testStore(t)
	day1 := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	tracker, err := NewIdempotencyTracker(store, zap.NewNop(), day1)
	require.NoError(t, err)
	key1 := ExecutionKey(day1, SessionOpen, "AAPL", model.SideBuy)
	require.NoError(t, tracker.Record(key1))

	require.NoError(t, tracker.Reset(day2))
	assert.False(t, tracker.Has(key1))

	key2 := ExecutionKey(day2, SessionOpen, "AAPL", model.SideBuy)
	require.NoError(t, tracker.Record(key2))

	// going back to day1 finds its keys intact
	require.NoError(t, tracker.Reset(day1))
	assert.True(t, tracker.Has(key1))
	assert.False(t, tracker.Has(key2))
}
