package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/config"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/strategy"
)

// Backtest runs the full pure pipeline (extrema → signals → trade dates →
// simulation) for one window pair. Positions still open at the end are
// force-closed against the last bar and tagged synthetic.
func Backtest(series model.Series, ic config.InstrumentConfig, direction model.Direction, pastWindow, tradeWindow int) model.BacktestReport {
	report, _ := runBacktest(series, ic, direction, pastWindow, tradeWindow)
	return report
}

// BacktestVerified additionally reconciles the report against an independent
// FIFO match of the raw action stream. A mismatch means the simulator's
// bookkeeping and its own action log disagree, which callers must treat as a
// consistency error, not a result.
func BacktestVerified(series model.Series, ic config.InstrumentConfig, direction model.Direction, pastWindow, tradeWindow int) (model.BacktestReport, error) {
	report, actions := runBacktest(series, ic, direction, pastWindow, tradeWindow)

	matched, err := NewMatcher(ic.CommissionRate, ic.MinCommission).Match(actions)
	if err != nil {
		return report, fmt.Errorf("reconcile action log: %w", err)
	}
	if len(matched) != len(report.Trades) {
		return report, fmt.Errorf("reconcile action log: %d matched trades, report has %d", len(matched), len(report.Trades))
	}
	for i, m := range matched {
		if !m.PnL.Equal(report.Trades[i].PnL) {
			return report, fmt.Errorf("reconcile action log: trade %d pnl %s, report has %s", i, m.PnL, report.Trades[i].PnL)
		}
	}
	return report, nil
}

func runBacktest(series model.Series, ic config.InstrumentConfig, direction model.Direction, pastWindow, tradeWindow int) (model.BacktestReport, []ActionRecord) {
	supports, resistances := strategy.DetectExtrema(series, pastWindow, tradeWindow)
	signals := strategy.AssignSignals(ic.Symbol, supports, resistances, direction)
	signals = strategy.ResolveTradeDates(signals, series, tradeWindow, ic.TradeOn)

	capital := ic.CapitalLong
	if direction == model.DirectionShort {
		capital = ic.CapitalShort
	}
	sim := NewSimulator(SimConfig{
		InitialCapital: capital,
		CommissionRate: ic.CommissionRate,
		MinCommission:  ic.MinCommission,
		RoundingFactor: ic.RoundingFactor,
	})

	var synthetic *SyntheticClose
	if len(series) > 0 {
		last := series[len(series)-1]
		synthetic = &SyntheticClose{Date: last.Date, Price: last.Close}
	}

	report := sim.Run(signals, direction, synthetic)
	report.Symbol = ic.Symbol
	report.PastWindow = pastWindow
	report.TradeWindow = tradeWindow
	return report, sim.Actions()
}

// SessionSignals runs the pure pipeline with the instrument's configured
// windows and keeps the signals that execute on the given date. This is the
// live-session entry point: everything up to here is deterministic
// recomputation over the bar history.
func SessionSignals(series model.Series, ic config.InstrumentConfig, direction model.Direction, date time.Time) []model.Signal {
	supports, resistances := strategy.DetectExtrema(series, ic.PastWindow, ic.TradeWindow)
	signals := strategy.AssignSignals(ic.Symbol, supports, resistances, direction)
	signals = strategy.ResolveTradeDates(signals, series, ic.TradeWindow, ic.TradeOn)

	var today []model.Signal
	for _, s := range signals {
		if s.Resolved && s.ExecDate.Equal(date) {
			today = append(today, s)
		}
	}
	return today
}

// SearchResult is the winning window pair of a brute-force grid scan.
type SearchResult struct {
	Symbol       string          `json:"symbol"`
	Direction    model.Direction `json:"direction"`
	PastWindow   int             `json:"past_window"`
	TradeWindow  int             `json:"trade_window"`
	FinalCapital decimal.Decimal `json:"final_capital"`
}

// SearchWindows brute-forces the (past_window, trade_window) grid and keeps
// the pair with the highest final capital. Ties keep the first hit in
// ascending scan order, so results are stable across runs.
func SearchWindows(series model.Series, ic config.InstrumentConfig, direction model.Direction, pastRange, tradeRange config.WindowRange) SearchResult {
	best := SearchResult{Symbol: ic.Symbol, Direction: direction}
	first := true
	for p := pastRange.Min; p <= pastRange.Max; p++ {
		for tw := tradeRange.Min; tw <= tradeRange.Max; tw++ {
			report := Backtest(series, ic, direction, p, tw)
			if first || report.FinalCapital.GreaterThan(best.FinalCapital) {
				best.PastWindow = p
				best.TradeWindow = tw
				best.FinalCapital = report.FinalCapital
				first = false
			}
		}
	}
	return best
}
