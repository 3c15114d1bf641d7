package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// DetectExtrema scans the close prices for local minima (support) and maxima
// (resistance) over a symmetric window of pastWindow+tradeWindow bars. The
// series' global minimum and maximum closes are always included, so even a
// series too short for any local extremum yields one point per set.
func DetectExtrema(series model.Series, pastWindow, tradeWindow int) (supports, resistances []model.ExtremumPoint) {
	if len(series) == 0 {
		return nil, nil
	}

	order := pastWindow + tradeWindow

	for i := order; i < len(series)-order; i++ {
		c := series[i].Close
		isMin, isMax := true, true
		for j := i - order; j <= i+order; j++ {
			if j == i {
				continue
			}
			if series[j].Close.LessThanOrEqual(c) {
				isMin = false
			}
			if series[j].Close.GreaterThanOrEqual(c) {
				isMax = false
			}
			if !isMin && !isMax {
				break
			}
		}
		if isMin {
			supports = append(supports, point(series[i], model.KindSupport))
		}
		if isMax {
			resistances = append(resistances, point(series[i], model.KindResistance))
		}
	}

	gMin, gMax := globalExtrema(series)
	supports = unionByDate(supports, point(gMin, model.KindSupport))
	resistances = unionByDate(resistances, point(gMax, model.KindResistance))
	return supports, resistances
}

func point(b model.Bar, kind model.ExtremumKind) model.ExtremumPoint {
	return model.ExtremumPoint{Date: b.Date, Price: b.Close, Kind: kind}
}

func globalExtrema(series model.Series) (min, max model.Bar) {
	min, max = series[0], series[0]
	for _, b := range series[1:] {
		if b.Close.LessThan(min.Close) {
			min = b
		}
		if b.Close.GreaterThan(max.Close) {
			max = b
		}
	}
	return min, max
}

// unionByDate inserts p into the date-ordered set unless a point with the
// same date is already there.
func unionByDate(points []model.ExtremumPoint, p model.ExtremumPoint) []model.ExtremumPoint {
	for i, q := range points {
		if q.Date.Equal(p.Date) {
			return points
		}
		if q.Date.After(p.Date) {
			out := make([]model.ExtremumPoint, 0, len(points)+1)
			out = append(out, points[:i]...)
			out = append(out, p)
			return append(out, points[i:]...)
		}
	}
	return append(points, p)
}

// Lots rounds a capital allocation down to the lot granularity, with a floor
// of one lot. Returns 0 for non-positive prices or rounding factors.
func Lots(capital, price decimal.Decimal, roundingFactor int64) int64 {
	if roundingFactor <= 0 || price.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	rf := decimal.NewFromInt(roundingFactor)
	shares := capital.Div(price).Div(rf).Floor().IntPart() * roundingFactor
	if shares < roundingFactor {
		return roundingFactor
	}
	return shares
}
