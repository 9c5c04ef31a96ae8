package pricing

import (
	"fmt"
	"math"
	"strings"
)

// OptionType is call or put.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ParseOptionType accepts "call"/"put" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch OptionType(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// DefaultRiskFreeRate is the annual rate callers pass when they have no better figure.
const DefaultRiskFreeRate = 0.05

// Params are the Black-Scholes inputs. Time is in years; rates and
// volatility are annualized decimals (0.35 = 35%).
type Params struct {
	Spot          float64
	Strike        float64
	Rate          float64
	Volatility    float64
	Time          float64
	DividendYield float64
}

// Greeks are per-day theta, vega and rho per 1 percentage point.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

func (p Params) degenerate() bool {
	return p.Time <= 0 || p.Volatility <= 0
}

// D1D2 returns the Black-Scholes d1 and d2 terms. An expired or zero-vol
// input yields +Inf (in the money) or -Inf so N(d) collapses to 1 or 0.
func D1D2(p Params) (float64, float64) {
	if p.degenerate() {
		if p.Spot > p.Strike {
			return math.Inf(1), math.Inf(1)
		}
		return math.Inf(-1), math.Inf(-1)
	}
	sqrtT := math.Sqrt(p.Time)
	d1 := (math.Log(p.Spot/p.Strike) + (p.Rate-p.DividendYield+0.5*p.Volatility*p.Volatility)*p.Time) / (p.Volatility * sqrtT)
	return d1, d1 - p.Volatility*sqrtT
}

// CallPrice is the dividend-adjusted Black-Scholes call value.
func CallPrice(p Params) float64 {
	if p.Time <= 0 {
		return math.Max(0, p.Spot-p.Strike)
	}
	d1, d2 := D1D2(p)
	return p.Spot*math.Exp(-p.DividendYield*p.Time)*NormCDF(d1) - p.Strike*math.Exp(-p.Rate*p.Time)*NormCDF(d2)
}

// PutPrice is the dividend-adjusted Black-Scholes put value.
func PutPrice(p Params) float64 {
	if p.Time <= 0 {
		return math.Max(0, p.Strike-p.Spot)
	}
	d1, d2 := D1D2(p)
	return p.Strike*math.Exp(-p.Rate*p.Time)*NormCDF(-d2) - p.Spot*math.Exp(-p.DividendYield*p.Time)*NormCDF(-d1)
}

// Price dispatches on option type.
func Price(t OptionType, p Params) float64 {
	if t == Put {
		return PutPrice(p)
	}
	return CallPrice(p)
}

// ComputeGreeks returns the five sensitivities. A position with no time or
// volatility left has delta 1/-1 when in the money, 0 otherwise, and zero for
// everything else.
func ComputeGreeks(t OptionType, p Params) Greeks {
	if p.degenerate() {
		var g Greeks
		switch {
		case t == Call && p.Spot > p.Strike:
			g.Delta = 1
		case t == Put && p.Spot < p.Strike:
			g.Delta = -1
		}
		return g
	}

	d1, d2 := D1D2(p)
	sqrtT := math.Sqrt(p.Time)
	nd1 := NormPDF(d1)
	expQT := math.Exp(-p.DividendYield * p.Time)
	expRT := math.Exp(-p.Rate * p.Time)

	g := Greeks{
		Gamma: expQT * nd1 / (p.Spot * p.Volatility * sqrtT),
		Vega:  p.Spot * expQT * sqrtT * nd1 / 100,
	}
	decay := -(p.Spot * expQT * nd1 * p.Volatility) / (2 * sqrtT)

	if t == Put {
		g.Delta = -expQT * NormCDF(-d1)
		g.Theta = (decay + p.Rate*p.Strike*expRT*NormCDF(-d2) - p.DividendYield*p.Spot*expQT*NormCDF(-d1)) / 365
		g.Rho = -p.Strike * p.Time * expRT * NormCDF(-d2) / 100
		return g
	}
	g.Delta = expQT * NormCDF(d1)
	g.Theta = (decay - p.Rate*p.Strike*expRT*NormCDF(d2) + p.DividendYield*p.Spot*expQT*NormCDF(d1)) / 365
	g.Rho = p.Strike * p.Time * expRT * NormCDF(d2) / 100
	return g
}

// rawVega is dPrice/dSigma without the percentage-point scaling.
func rawVega(p Params) float64 {
	if p.degenerate() {
		return 0
	}
	d1, _ := D1D2(p)
	return p.Spot * math.Exp(-p.DividendYield*p.Time) * math.Sqrt(p.Time) * NormPDF(d1)
}
