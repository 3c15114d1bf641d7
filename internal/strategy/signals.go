package strategy

import (
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// AssignSignals merges the support and resistance point sets by date and
// walks them with a single open-position flag, so the emitted actions for
// one instrument/direction strictly alternate open/close.
//
// Long: support opens (buy), resistance closes (sell).
// Short: resistance opens (short), support closes (cover).
// Points that would repeat the current state are ignored.
func AssignSignals(symbol string, supports, resistances []model.ExtremumPoint, direction model.Direction) []model.Signal {
	merged := mergePoints(supports, resistances)

	var signals []model.Signal
	open := false
	for _, p := range merged {
		action, ok := nextAction(p.Kind, direction, open)
		if !ok {
			continue
		}
		open = !open
		signals = append(signals, model.Signal{
			Symbol:       symbol,
			Direction:    direction,
			Action:       action,
			DetectedDate: p.Date,
		})
	}
	return signals
}

func nextAction(kind model.ExtremumKind, direction model.Direction, open bool) (model.Action, bool) {
	switch direction {
	case model.DirectionLong:
		if kind == model.KindSupport && !open {
			return model.ActionBuy, true
		}
		if kind == model.KindResistance && open {
			return model.ActionSell, true
		}
	case model.DirectionShort:
		if kind == model.KindResistance && !open {
			return model.ActionShort, true
		}
		if kind == model.KindSupport && open {
			return model.ActionCover, true
		}
	}
	return "", false
}

// mergePoints interleaves two date-ordered sets into one, supports first on
// equal dates so the result is stable.
func mergePoints(supports, resistances []model.ExtremumPoint) []model.ExtremumPoint {
	merged := make([]model.ExtremumPoint, 0, len(supports)+len(resistances))
	i, j := 0, 0
	for i < len(supports) && j < len(resistances) {
		if supports[i].Date.After(resistances[j].Date) {
			merged = append(merged, resistances[j])
			j++
		} else {
			merged = append(merged, supports[i])
			i++
		}
	}
	merged = append(merged, supports[i:]...)
	merged = append(merged, resistances[j:]...)
	return merged
}

// ResolveTradeDates fills each signal's execution date and reference price:
// the tradeWindow-th bar strictly after the detection date (tradeWindow=1 is
// the very next bar). Signals with too few future bars stay unresolved.
// Walking the bar index rather than the calendar skips weekends and holidays
// for free.
func ResolveTradeDates(signals []model.Signal, series model.Series, tradeWindow int, src model.PriceSource) []model.Signal {
	resolved := make([]model.Signal, len(signals))
	for i, sig := range signals {
		idx := series.IndexAfter(sig.DetectedDate) + tradeWindow - 1
		if idx < len(series) {
			sig.ExecDate = series[idx].Date
			sig.RefPrice = series[idx].PriceAt(src)
			sig.Resolved = true
		}
		resolved[i] = sig
	}
	return resolved
}

// Resolved filters to the signals that received an execution date.
func Resolved(signals []model.Signal) []model.Signal {
	out := make([]model.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Resolved {
			out = append(out, s)
		}
	}
	return out
}
