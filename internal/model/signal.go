package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction of a strategy leg.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Action is the discrete step a signal asks for.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionShort Action = "short"
	ActionCover Action = "cover"
)

// Opens reports whether the action opens a position.
func (a Action) Opens() bool {
	return a == ActionBuy || a == ActionShort
}

// ExtremumKind tags a detected price extremum.
type ExtremumKind string

const (
	KindSupport    ExtremumKind = "support"
	KindResistance ExtremumKind = "resistance"
)

// ExtremumPoint is a local (or global) close-price extremum.
type ExtremumPoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
	Kind  ExtremumKind    `json:"kind"`
}

// Signal is one alternating entry/exit step emitted by the assigner.
// ExecDate and RefPrice are filled by trade-date resolution; Resolved stays
// false when not enough future bars exist.
type Signal struct {
	Symbol       string          `json:"symbol"`
	Direction    Direction       `json:"direction"`
	Action       Action          `json:"action"`
	DetectedDate time.Time       `json:"detected_date"`
	ExecDate     time.Time       `json:"exec_date,omitempty"`
	RefPrice     decimal.Decimal `json:"ref_price,omitempty"`
	Resolved     bool            `json:"resolved"`
}

// OrderSide is the broker-level side after netting.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Order is a netted broker order. Components keeps the originating signals
// (one, or two when opposing same-day actions were merged).
type Order struct {
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Shares     int64           `json:"shares"`
	RefPrice   decimal.Decimal `json:"ref_price"`
	Components []Signal        `json:"components"`
}
