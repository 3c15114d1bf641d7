package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/strategy"
)

// SimConfig holds the money parameters of a simulation run.
type SimConfig struct {
	InitialCapital decimal.Decimal
	CommissionRate decimal.Decimal
	MinCommission  decimal.Decimal
	RoundingFactor int64
}

// SyntheticClose force-closes a position still open after the last signal,
// so a backtest ends at a known boundary.
type SyntheticClose struct {
	Date  time.Time
	Price decimal.Decimal
}

// Simulator replays resolved signals in execution-date order, compounding a
// single capital scalar. Capital mutates only on exits; an entry records
// shares and entry price against the full capital, it never draws it down.
type Simulator struct {
	cfg     SimConfig
	capital decimal.Decimal
	trades  []model.MatchedTrade
	actions []ActionRecord
	curve   []decimal.Decimal

	inPosition  bool
	entryDate   time.Time
	entryPrice  decimal.Decimal
	shares      int64
	prevCapital decimal.Decimal
}

// ActionRecord is one discrete executed step, the raw stream the matcher
// reconciles against.
type ActionRecord struct {
	Symbol    string          `json:"symbol"`
	Action    model.Action    `json:"action"`
	Date      time.Time       `json:"date"`
	Price     decimal.Decimal `json:"price"`
	Shares    int64           `json:"shares"`
	Synthetic bool            `json:"synthetic,omitempty"`
}

func NewSimulator(cfg SimConfig) *Simulator {
	return &Simulator{
		cfg:     cfg,
		capital: cfg.InitialCapital,
		trades:  make([]model.MatchedTrade, 0),
		actions: make([]ActionRecord, 0),
	}
}

// Run replays the resolved signals of one instrument/direction. A nil
// synthetic close leaves a dangling position open and unrealized.
func (s *Simulator) Run(signals []model.Signal, direction model.Direction, synthetic *SyntheticClose) model.BacktestReport {
	var symbol string
	for _, sig := range signals {
		if !sig.Resolved {
			continue
		}
		symbol = sig.Symbol
		if sig.RefPrice.LessThanOrEqual(decimal.Zero) {
			// invalid price: reject this signal, never coerce to zero
			continue
		}
		if sig.Action.Opens() {
			s.enter(sig)
		} else {
			s.exit(sig.Symbol, direction, sig.ExecDate, sig.RefPrice, false)
		}
	}

	if s.inPosition && synthetic != nil && synthetic.Price.GreaterThan(decimal.Zero) {
		s.exit(symbol, direction, synthetic.Date, synthetic.Price, true)
	}

	return s.report(symbol, direction)
}

func (s *Simulator) enter(sig model.Signal) {
	if s.inPosition {
		return
	}
	shares := strategy.Lots(s.capital, sig.RefPrice, s.cfg.RoundingFactor)
	if shares <= 0 {
		// insufficient capital: stay flat, this is a normal path
		return
	}
	s.inPosition = true
	s.entryDate = sig.ExecDate
	s.entryPrice = sig.RefPrice
	s.shares = shares
	s.prevCapital = s.capital
	s.actions = append(s.actions, ActionRecord{
		Symbol: sig.Symbol, Action: sig.Action, Date: sig.ExecDate,
		Price: sig.RefPrice, Shares: shares,
	})
}

func (s *Simulator) exit(symbol string, direction model.Direction, date time.Time, price decimal.Decimal, synthetic bool) {
	if !s.inPosition {
		return
	}
	sh := decimal.NewFromInt(s.shares)
	profit := price.Sub(s.entryPrice).Mul(sh)
	if direction == model.DirectionShort {
		profit = s.entryPrice.Sub(price).Mul(sh)
	}
	turnover := sh.Mul(s.entryPrice.Add(price))
	fee := turnover.Mul(s.cfg.CommissionRate)
	if fee.LessThan(s.cfg.MinCommission) {
		fee = s.cfg.MinCommission
	}
	s.capital = s.capital.Add(profit).Sub(fee)

	s.trades = append(s.trades, model.MatchedTrade{
		Symbol:     symbol,
		Direction:  direction,
		EntryDate:  s.entryDate,
		EntryPrice: s.entryPrice,
		ExitDate:   date,
		ExitPrice:  price,
		Shares:     s.shares,
		Fee:        fee,
		PnL:        s.capital.Sub(s.prevCapital),
		Synthetic:  synthetic,
	})
	s.curve = append(s.curve, s.capital)

	action := model.ActionSell
	if direction == model.DirectionShort {
		action = model.ActionCover
	}
	s.actions = append(s.actions, ActionRecord{
		Symbol: symbol, Action: action, Date: date,
		Price: price, Shares: s.shares, Synthetic: synthetic,
	})

	s.inPosition = false
	s.shares = 0
}

// Actions returns the raw executed action stream of the last run.
func (s *Simulator) Actions() []ActionRecord {
	return s.actions
}

func (s *Simulator) report(symbol string, direction model.Direction) model.BacktestReport {
	wins := 0
	for _, t := range s.trades {
		if t.PnL.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	winRate := 0.0
	if len(s.trades) > 0 {
		winRate = float64(wins) / float64(len(s.trades))
	}

	totalReturn := decimal.Zero
	if s.cfg.InitialCapital.GreaterThan(decimal.Zero) {
		totalReturn = s.capital.Sub(s.cfg.InitialCapital).Div(s.cfg.InitialCapital)
	}

	return model.BacktestReport{
		Symbol:         symbol,
		Direction:      direction,
		TotalTrades:    len(s.trades),
		WinRate:        winRate,
		TotalReturn:    totalReturn,
		MaxDrawdown:    s.maxDrawdown(),
		InitialCapital: s.cfg.InitialCapital,
		FinalCapital:   s.capital,
		Trades:         s.trades,
	}
}

// maxDrawdown walks the realized capital curve after each closed trade.
func (s *Simulator) maxDrawdown() float64 {
	peak := s.cfg.InitialCapital
	maxDD := decimal.Zero
	for _, c := range s.curve {
		if c.GreaterThan(peak) {
			peak = c
		}
		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(c).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	out, _ := maxDD.Float64()
	return out
}
