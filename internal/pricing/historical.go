package pricing

import (
	"math"

	"golang.org/x/sync/errgroup"
)

const (
	// FallbackHV is reported with SampleSize 0 when there is not enough data.
	FallbackHV = 0.35

	TradingDaysPerYear = 252
)

// HVResult is an annualized close-to-close volatility estimate.
type HVResult struct {
	HV         float64 `json:"hv"`
	HVDaily    float64 `json:"hv_daily"`
	SampleSize int     `json:"sample_size"`
	StdDev     float64 `json:"std_dev"`
	MeanReturn float64 `json:"mean_return"`
}

// NoData reports whether the result is the fallback sentinel.
func (r HVResult) NoData() bool { return r.SampleSize == 0 }

func fallbackHV() HVResult {
	return HVResult{HV: FallbackHV, HVDaily: FallbackHV / math.Sqrt(TradingDaysPerYear)}
}

// HistoricalVolatility annualizes the sample standard deviation of log
// returns. Prices are oldest first; non-positive prices are skipped.
func HistoricalVolatility(prices []float64, periodsPerYear float64) HVResult {
	if periodsPerYear <= 0 {
		periodsPerYear = TradingDaysPerYear
	}
	if len(prices) < 2 {
		return fallbackHV()
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i] > 0 && prices[i-1] > 0 {
			returns = append(returns, math.Log(prices[i]/prices[i-1]))
		}
	}
	if len(returns) < 2 {
		return fallbackHV()
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(sq / float64(len(returns)-1))

	return HVResult{
		HV:         clamp(stdDev*math.Sqrt(periodsPerYear), minSurfaceIV, maxSurfaceIV),
		HVDaily:    stdDev,
		SampleSize: len(returns),
		StdDev:     stdDev,
		MeanReturn: mean,
	}
}

// Windows holds HV over trailing lookbacks plus a blended IV proxy.
type Windows struct {
	HV5        float64 `json:"hv5"`
	HV10       float64 `json:"hv10"`
	HV20       float64 `json:"hv20"`
	HV60       float64 `json:"hv60"`
	HVAll      float64 `json:"hv_all"`
	HVWeighted float64 `json:"hv_weighted"`
}

// VolatilityWindows computes 5/10/20/60-period and full-series HV. The
// weighted blend (0.4 hv10, 0.3 hv20, 0.2 hv60, 0.1 all) is the best single
// proxy when no option-market IV exists.
func VolatilityWindows(prices []float64, periodsPerYear float64) Windows {
	lookbacks := []int{5, 10, 20, 60, 0}
	out := make([]float64, len(lookbacks))

	var g errgroup.Group
	for i, n := range lookbacks {
		i, n := i, n
		g.Go(func() error {
			out[i] = HistoricalVolatility(trailing(prices, n), periodsPerYear).HV
			return nil
		})
	}
	_ = g.Wait()

	w := Windows{HV5: out[0], HV10: out[1], HV20: out[2], HV60: out[3], HVAll: out[4]}
	w.HVWeighted = w.HV10*0.4 + w.HV20*0.3 + w.HV60*0.2 + w.HVAll*0.1
	return w
}

// trailing returns the last n returns worth of prices (n+1 points); n <= 0 is everything.
func trailing(prices []float64, n int) []float64 {
	if n <= 0 || len(prices) <= n+1 {
		return prices
	}
	return prices[len(prices)-n-1:]
}
