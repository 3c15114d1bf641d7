package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

func testMatcher() *Matcher {
	return NewMatcher(decimal.RequireFromString("0.0018"), decimal.NewFromInt(1))
}

// The matcher applied to the simulator's own action stream must reproduce
// the simulator's matched trades exactly.
func TestMatcher_RoundTripAgainstSimulator(t *testing.T) {
	sim := NewSimulator(testSimConfig())
	report := sim.Run(resolvedLongSignals(t), model.DirectionLong, nil)

	matched, err := testMatcher().Match(sim.Actions())
	require.NoError(t, err)

	require.Equal(t, len(report.Trades), len(matched))
	for i, want := range report.Trades {
		assert.True(t, matched[i].PnL.Equal(want.PnL), "trade %d pnl %s != %s", i, matched[i].PnL, want.PnL)
		assert.True(t, matched[i].Fee.Equal(want.Fee))
		assert.Equal(t, want.Shares, matched[i].Shares)
		assert.True(t, matched[i].EntryDate.Equal(want.EntryDate))
		assert.True(t, matched[i].ExitDate.Equal(want.ExitDate))
	}
}

func TestMatcher_FIFOOrdering(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	records := []ActionRecord{
		{Symbol: "T", Action: model.ActionBuy, Date: day(1), Price: decimal.NewFromInt(10), Shares: 5},
		{Symbol: "T", Action: model.ActionBuy, Date: day(2), Price: decimal.NewFromInt(20), Shares: 5},
		{Symbol: "T", Action: model.ActionSell, Date: day(3), Price: decimal.NewFromInt(30), Shares: 5},
		{Symbol: "T", Action: model.ActionSell, Date: day(4), Price: decimal.NewFromInt(40), Shares: 5},
	}

	matched, err := testMatcher().Match(records)
	require.NoError(t, err)
	require.Len(t, matched, 2)

	// oldest entry pairs first
	assert.True(t, matched[0].EntryDate.Equal(day(1)))
	assert.True(t, matched[0].ExitDate.Equal(day(3)))
	assert.True(t, matched[1].EntryDate.Equal(day(2)))
	assert.True(t, matched[1].ExitDate.Equal(day(4)))
}

func TestMatcher_DirectionsAreIndependent(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	records := []ActionRecord{
		{Symbol: "T", Action: model.ActionBuy, Date: day(1), Price: decimal.NewFromInt(10), Shares: 5},
		{Symbol: "T", Action: model.ActionShort, Date: day(2), Price: decimal.NewFromInt(50), Shares: 3},
		{Symbol: "T", Action: model.ActionCover, Date: day(3), Price: decimal.NewFromInt(45), Shares: 3},
		{Symbol: "T", Action: model.ActionSell, Date: day(4), Price: decimal.NewFromInt(12), Shares: 5},
	}

	matched, err := testMatcher().Match(records)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, model.DirectionShort, matched[0].Direction)
	assert.Equal(t, model.DirectionLong, matched[1].Direction)
}

func TestMatcher_InstrumentsPairIndependently(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	records := []ActionRecord{
		{Symbol: "AAPL", Action: model.ActionBuy, Date: day(1), Price: decimal.NewFromInt(10), Shares: 5},
		{Symbol: "MSFT", Action: model.ActionBuy, Date: day(2), Price: decimal.NewFromInt(20), Shares: 3},
		{Symbol: "MSFT", Action: model.ActionSell, Date: day(3), Price: decimal.NewFromInt(25), Shares: 3},
		{Symbol: "AAPL", Action: model.ActionSell, Date: day(4), Price: decimal.NewFromInt(12), Shares: 5},
	}

	matched, err := testMatcher().Match(records)
	require.NoError(t, err)
	require.Len(t, matched, 2)

	// MSFT's exit pairs with MSFT's entry, never with the older AAPL one
	assert.Equal(t, "MSFT", matched[0].Symbol)
	assert.True(t, matched[0].EntryPrice.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, int64(3), matched[0].Shares)

	assert.Equal(t, "AAPL", matched[1].Symbol)
	assert.True(t, matched[1].EntryPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(5), matched[1].Shares)
}

func TestMatcher_ExitOnWrongInstrumentIsError(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	records := []ActionRecord{
		{Symbol: "AAPL", Action: model.ActionBuy, Date: day(1), Price: decimal.NewFromInt(10), Shares: 5},
		{Symbol: "MSFT", Action: model.ActionSell, Date: day(2), Price: decimal.NewFromInt(25), Shares: 3},
	}

	_, err := testMatcher().Match(records)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnmatchedExit)
}

func TestMatcher_UnmatchedExitIsError(t *testing.T) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	records := []ActionRecord{
		{Symbol: "T", Action: model.ActionSell, Date: day, Price: decimal.NewFromInt(10), Shares: 5},
	}

	_, err := testMatcher().Match(records)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnmatchedExit)
}

func TestMatcher_InvalidPriceIsError(t *testing.T) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	records := []ActionRecord{
		{Symbol: "T", Action: model.ActionBuy, Date: day, Price: decimal.Zero, Shares: 5},
	}

	_, err := testMatcher().Match(records)
	assert.ErrorIs(t, err, model.ErrInvalidPrice)
}
