package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar 代表一根日K线 (one trading day, OHLCV)
type Bar struct {
	Symbol string          `json:"symbol" db:"symbol"`
	Date   time.Time       `json:"date" db:"date"`
	Open   decimal.Decimal `json:"o" db:"open"`
	High   decimal.Decimal `json:"h" db:"high"`
	Low    decimal.Decimal `json:"l" db:"low"`
	Close  decimal.Decimal `json:"c" db:"close"`
	Volume decimal.Decimal `json:"v" db:"volume"`
}

// PriceSource selects which bar price a signal executes against.
type PriceSource string

const (
	TradeOnOpen  PriceSource = "open"
	TradeOnClose PriceSource = "close"
)

// PriceAt returns the bar price for the given source.
func (b Bar) PriceAt(src PriceSource) decimal.Decimal {
	if src == TradeOnOpen {
		return b.Open
	}
	return b.Close
}

// Series is a date-ordered bar sequence with strictly increasing unique dates.
type Series []Bar

// Validate checks ordering, date uniqueness and price sanity.
func (s Series) Validate() error {
	for i, b := range s {
		if b.Close.LessThanOrEqual(decimal.Zero) || b.Open.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("bar %s: %w", b.Date.Format("2006-01-02"), ErrInvalidPrice)
		}
		if i > 0 && !s[i-1].Date.Before(b.Date) {
			return fmt.Errorf("bar %s: date not strictly increasing", b.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// IndexOf returns the position of the bar with the given date, or -1.
func (s Series) IndexOf(date time.Time) int {
	for i, b := range s {
		if b.Date.Equal(date) {
			return i
		}
	}
	return -1
}

// IndexAfter returns the position of the first bar strictly after date,
// or len(s) when none exists.
func (s Series) IndexAfter(date time.Time) int {
	for i, b := range s {
		if b.Date.After(date) {
			return i
		}
	}
	return len(s)
}

// Quote 代表一条实时报价
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"ts"`
}
