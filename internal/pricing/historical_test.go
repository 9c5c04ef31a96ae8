package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoricalVolatility_Fallback(t *testing.T) {
	for _, prices := range [][]float64{nil, {100}, {100, 101}, {100, 0, 0}} {
		r := HistoricalVolatility(prices, 252)
		assert.True(t, r.NoData())
		assert.Equal(t, FallbackHV, r.HV)
		assert.InDelta(t, FallbackHV/math.Sqrt(252), r.HVDaily, 1e-12)
	}
}

func TestHistoricalVolatility_KnownSeries(t *testing.T) {
	r1, r2 := math.Log(1.1), math.Log(0.9)
	mean := (r1 + r2) / 2
	sd := math.Sqrt((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean))

	got := HistoricalVolatility([]float64{100, 110, 99}, 252)
	assert.Equal(t, 2, got.SampleSize)
	assert.InDelta(t, mean, got.MeanReturn, 1e-12)
	assert.InDelta(t, sd, got.StdDev, 1e-12)
	assert.InDelta(t, sd*math.Sqrt(252), got.HV, 1e-12)
}

func TestHistoricalVolatility_Clamped(t *testing.T) {
	flat := HistoricalVolatility([]float64{100, 100, 100, 100}, 252)
	assert.Equal(t, 0.05, flat.HV)

	wild := HistoricalVolatility([]float64{100, 300, 50, 400, 20}, 252)
	assert.Equal(t, 3.0, wild.HV)
}

func TestVolatilityWindows_ShortSeriesUsesEverything(t *testing.T) {
	prices := []float64{100, 110, 99}
	w := VolatilityWindows(prices, 252)
	hv := HistoricalVolatility(prices, 252).HV
	assert.InDelta(t, hv, w.HV5, 1e-12)
	assert.InDelta(t, hv, w.HV60, 1e-12)
	assert.InDelta(t, hv, w.HVWeighted, 1e-12)
}

func TestVolatilityWindows_TrailingSlices(t *testing.T) {
	prices := make([]float64, 0, 80)
	p := 100.0
	for i := 0; i < 80; i++ {
		if i%2 == 0 {
			p *= 1.01
		} else {
			p *= 0.995
		}
		if i >= 70 {
			p *= 1 + 0.03*float64(i%3)
		}
		prices = append(prices, p)
	}

	w := VolatilityWindows(prices, 252)
	assert.InDelta(t, HistoricalVolatility(prices[len(prices)-11:], 252).HV, w.HV10, 1e-12)
	assert.InDelta(t, HistoricalVolatility(prices[len(prices)-61:], 252).HV, w.HV60, 1e-12)
	assert.InDelta(t, w.HV10*0.4+w.HV20*0.3+w.HV60*0.2+w.HVAll*0.1, w.HVWeighted, 1e-12)
	assert.Greater(t, w.HV10, w.HV60)
}
