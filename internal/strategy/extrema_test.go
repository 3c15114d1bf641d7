package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

func mkSeries(t *testing.T, closes []float64) model.Series {
	t.Helper()
	series := make(model.Series, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		series[i] = model.Bar{
			Symbol: "TEST",
			Date:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: decimal.NewFromInt(1000),
		}
	}
	return series
}

// 20 days with a single dip on day 5 and a single peak on day 15. With
// past_window=3 and trade_window=2 the detector must emit exactly one
// support and one resistance, coinciding with the global min/max.
func dipPeakSeries(t *testing.T) model.Series {
	t.Helper()
	return mkSeries(t, []float64{
		100, 98, 97, 96, 95, 96, 97, 98, 99, 100,
		102, 104, 106, 108, 110, 108, 106, 104, 102, 100,
	})
}

func TestDetectExtrema_DipAndPeak(t *testing.T) {
	series := dipPeakSeries(t)

	supports, resistances := DetectExtrema(series, 3, 2)

	assert.Len(t, supports, 1)
	assert.Len(t, resistances, 1)
	assert.True(t, supports[0].Date.Equal(series[4].Date))
	assert.True(t, supports[0].Price.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, model.KindSupport, supports[0].Kind)
	assert.True(t, resistances[0].Date.Equal(series[14].Date))
	assert.True(t, resistances[0].Price.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, model.KindResistance, resistances[0].Kind)
}

func TestDetectExtrema_ShortSeriesKeepsGlobalExtrema(t *testing.T) {
	// 4 bars cannot host a local extremum with order=5, but the global
	// min and max are always included
	series := mkSeries(t, []float64{10, 12, 8, 11})

	supports, resistances := DetectExtrema(series, 3, 2)

	assert.Len(t, supports, 1)
	assert.True(t, supports[0].Price.Equal(decimal.NewFromInt(8)))
	assert.Len(t, resistances, 1)
	assert.True(t, resistances[0].Price.Equal(decimal.NewFromInt(12)))
}

func TestDetectExtrema_GlobalUnionIsIdempotent(t *testing.T) {
	series := dipPeakSeries(t)

	// the dip and peak are already local extrema, the global union must
	// not duplicate their dates
	supports, resistances := DetectExtrema(series, 3, 2)

	seen := map[string]bool{}
	for _, p := range append(supports, resistances...) {
		key := p.Date.Format("2006-01-02") + string(p.Kind)
		assert.False(t, seen[key], "duplicate point %s", key)
		seen[key] = true
	}
}

func TestDetectExtrema_DatesStrictlyIncreasing(t *testing.T) {
	series := mkSeries(t, []float64{
		50, 40, 45, 55, 42, 48, 60, 35, 44, 52,
		58, 41, 47, 62, 39, 46, 53, 38, 49, 57,
	})

	supports, resistances := DetectExtrema(series, 1, 1)

	for _, set := range [][]model.ExtremumPoint{supports, resistances} {
		for i := 1; i < len(set); i++ {
			assert.True(t, set[i-1].Date.Before(set[i].Date))
		}
	}
}

func TestLots(t *testing.T) {
	tests := []struct {
		name     string
		capital  float64
		price    float64
		rounding int64
		want     int64
	}{
		{"plain floor", 1000, 97, 1, 10},
		{"lot of ten", 1000, 9, 10, 110},
		{"below one lot keeps minimum", 50, 97, 10, 10},
		{"invalid price", 1000, 0, 1, 0},
		{"invalid rounding", 1000, 97, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lots(decimal.NewFromFloat(tt.capital), decimal.NewFromFloat(tt.price), tt.rounding)
			assert.Equal(t, tt.want, got)
		})
	}
}
