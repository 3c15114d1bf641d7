package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC)
}

func bar(d int, price float64) Bar {
	p := decimal.NewFromFloat(price)
	return Bar{Symbol: "T", Date: day(d), Open: p, High: p, Low: p, Close: p}
}

func TestSeries_Validate(t *testing.T) {
	good := Series{bar(1, 10), bar(2, 11), bar(3, 12)}
	require.NoError(t, good.Validate())

	unordered := Series{bar(2, 10), bar(1, 11)}
	assert.Error(t, unordered.Validate())

	duplicate := Series{bar(1, 10), bar(1, 11)}
	assert.Error(t, duplicate.Validate())

	zeroPrice := Series{bar(1, 10), bar(2, 0)}
	err := zeroPrice.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestSeries_IndexLookups(t *testing.T) {
	s := Series{bar(1, 10), bar(3, 11), bar(5, 12)}

	assert.Equal(t, 1, s.IndexOf(day(3)))
	assert.Equal(t, -1, s.IndexOf(day(2)))

	// strictly after, gaps land on the next bar
	assert.Equal(t, 1, s.IndexAfter(day(1)))
	assert.Equal(t, 1, s.IndexAfter(day(2)))
	assert.Equal(t, 3, s.IndexAfter(day(5)))
}

func TestBar_PriceAt(t *testing.T) {
	b := Bar{Open: decimal.NewFromInt(10), Close: decimal.NewFromInt(12)}
	assert.True(t, b.PriceAt(TradeOnOpen).Equal(decimal.NewFromInt(10)))
	assert.True(t, b.PriceAt(TradeOnClose).Equal(decimal.NewFromInt(12)))
}
