// Package technical computes moving-average indicators and the market-cycle
// stage for one symbol via a layered multi-source cascade.
package technical

import (
	"sort"

	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/pkg/models"
)

// EMA returns the latest exponential moving average of data for the given
// period, seeded with the simple average of the first period values. When the
// series is shorter than the period a relaxed EMA seeded from the first value
// is used, so short histories still yield an estimate.
func EMA(data []float64, period int) null.Float {
	n := len(data)
	if n == 0 || period <= 0 {
		return null.Float{}
	}

	k := 2.0 / float64(period+1)

	if n < period {
		// Relaxed: seed from the first available price.
		ema := data[0]
		for i := 1; i < n; i++ {
			ema = data[i]*k + ema*(1-k)
		}
		return null.FloatFrom(ema)
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	ema := sum / float64(period)
	for i := period; i < n; i++ {
		ema = data[i]*k + ema*(1-k)
	}
	return null.FloatFrom(ema)
}

// SMA returns the simple moving average of the trailing period values, or
// null when the series is too short.
func SMA(data []float64, period int) null.Float {
	if period <= 0 || len(data) < period {
		return null.Float{}
	}
	sum := 0.0
	for _, v := range data[len(data)-period:] {
		sum += v
	}
	return null.FloatFrom(sum / float64(period))
}

// ResampleWeekly collapses daily bars into weekly bars keyed by ISO week.
// Within a week the last trading day wins: its close becomes the weekly
// close. Output is ordered oldest-first.
func ResampleWeekly(candles []models.OHLCV) []models.OHLCV {
	type weekKey struct {
		year int
		week int
	}

	byWeek := make(map[weekKey]models.OHLCV)
	var order []weekKey
	for _, c := range candles {
		if c.Close <= 0 {
			continue
		}
		y, w := c.Timestamp.ISOWeek()
		key := weekKey{year: y, week: w}
		prev, seen := byWeek[key]
		if !seen {
			order = append(order, key)
			byWeek[key] = c
			continue
		}
		if !c.Timestamp.Before(prev.Timestamp) {
			// Later trading day in the same week replaces the close.
			merged := c
			if prev.High > merged.High {
				merged.High = prev.High
			}
			if prev.Low > 0 && prev.Low < merged.Low {
				merged.Low = prev.Low
			}
			merged.Open = prev.Open
			merged.Volume += prev.Volume
			byWeek[key] = merged
		} else {
			prev.Volume += c.Volume
			byWeek[key] = prev
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].week < order[j].week
	})

	weekly := make([]models.OHLCV, 0, len(order))
	for _, key := range order {
		weekly = append(weekly, byWeek[key])
	}
	return weekly
}

// ThirtyWeekSMA returns the 30-week SMA of the weekly closes and its value
// one week prior.
func ThirtyWeekSMA(weekly []models.OHLCV) (sma, prevSMA null.Float) {
	closes := make([]float64, 0, len(weekly))
	for _, c := range weekly {
		if c.Close > 0 {
			closes = append(closes, c.Close)
		}
	}
	sma = SMA(closes, 30)
	if len(closes) > 0 {
		prevSMA = SMA(closes[:len(closes)-1], 30)
	}
	return sma, prevSMA
}
