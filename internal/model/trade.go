package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Core error classes surfaced by the pipeline. Skip paths (missing data,
// insufficient capital) are normal returns, not errors.
var (
	ErrInvalidPrice  = errors.New("invalid price")
	ErrUnmatchedExit = errors.New("exit without open entry")
)

// MatchedTrade is one realized entry/exit round trip. Synthetic marks a
// position force-closed at the backtest boundary rather than by a signal.
type MatchedTrade struct {
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	EntryDate  time.Time       `json:"entry_date"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitDate   time.Time       `json:"exit_date"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Shares     int64           `json:"shares"`
	Fee        decimal.Decimal `json:"fee"`
	PnL        decimal.Decimal `json:"pnl"`
	Synthetic  bool            `json:"synthetic"`
}

// Position is the current signed share count for one instrument.
// Positive = long, negative = short, zero = flat.
type Position struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// BacktestReport 回测结果报告
type BacktestReport struct {
	Symbol         string          `json:"symbol"`
	Direction      Direction       `json:"direction"`
	PastWindow     int             `json:"past_window"`
	TradeWindow    int             `json:"trade_window"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        float64         `json:"win_rate"`
	TotalReturn    decimal.Decimal `json:"total_return"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCapital   decimal.Decimal `json:"final_capital"`
	Trades         []MatchedTrade  `json:"trades"`
}
