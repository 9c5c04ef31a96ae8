package pricing

import (
	"errors"
	"math"
)

var (
	ErrIVNotConverged   = errors.New("implied volatility did not converge")
	ErrBelowIntrinsic   = errors.New("market price below intrinsic value")
	ErrNonPositivePrice = errors.New("market price must be positive")
)

// IVMethod selects the root finder.
type IVMethod string

const (
	Bisection     IVMethod = "bisection"
	NewtonRaphson IVMethod = "newton"
)

const (
	ivLow  = 0.0001
	ivHigh = 5.0

	newtonSeedMin = 0.01
	newtonSeedMax = 2.0
	newtonStepMin = 0.001
	newtonStepMax = 5.0
	minVega       = 1e-10
)

// IVOptions tunes the solver. Zero values take the defaults.
type IVOptions struct {
	Method        IVMethod
	Tolerance     float64 // price units, default 1e-4
	MaxIterations int     // default 100 (bisection) or 50 (newton)
	DividendYield float64
}

// IVResult is advisory: IV is only trustworthy when Converged is true.
// Reason carries ErrIVNotConverged, ErrBelowIntrinsic or ErrNonPositivePrice
// when Converged is false.
type IVResult struct {
	IV         float64 `json:"iv"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Error      float64 `json:"error"`
	Reason     error   `json:"-"`
}

// ReasonText is Reason as a string for transport layers.
func (r IVResult) ReasonText() string {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Error()
}

// ImpliedVolatility backs the volatility out of an observed option price.
func ImpliedVolatility(marketPrice, spot, strike, rate, t float64, typ OptionType, opts IVOptions) IVResult {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-4
	}
	if opts.Method == NewtonRaphson {
		if opts.MaxIterations <= 0 {
			opts.MaxIterations = 50
		}
		return newtonIV(marketPrice, spot, strike, rate, t, typ, opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100
	}
	return bisectIV(marketPrice, spot, strike, rate, t, typ, opts)
}

func discountedIntrinsic(spot, strike, rate, t float64, typ OptionType) float64 {
	pv := strike * math.Exp(-rate*t)
	if typ == Put {
		return math.Max(0, pv-spot)
	}
	return math.Max(0, spot-pv)
}

func bisectIV(marketPrice, spot, strike, rate, t float64, typ OptionType, opts IVOptions) IVResult {
	if marketPrice <= 0 {
		return IVResult{Error: math.Inf(1), Reason: ErrNonPositivePrice}
	}
	intrinsic := discountedIntrinsic(spot, strike, rate, t, typ)
	if marketPrice < intrinsic-opts.Tolerance {
		return IVResult{Error: intrinsic - marketPrice, Reason: ErrBelowIntrinsic}
	}

	p := Params{Spot: spot, Strike: strike, Rate: rate, Time: t, DividendYield: opts.DividendYield}
	low, high := ivLow, ivHigh
	mid := 0.0
	for i := 0; i < opts.MaxIterations; i++ {
		mid = (low + high) / 2
		p.Volatility = mid
		diff := Price(typ, p) - marketPrice
		if math.Abs(diff) < opts.Tolerance {
			return IVResult{IV: mid, Iterations: i + 1, Converged: true, Error: math.Abs(diff)}
		}
		if diff > 0 {
			high = mid
		} else {
			low = mid
		}
	}
	p.Volatility = mid
	return IVResult{
		IV:         mid,
		Iterations: opts.MaxIterations,
		Error:      math.Abs(Price(typ, p) - marketPrice),
		Reason:     ErrIVNotConverged,
	}
}

func newtonIV(marketPrice, spot, strike, rate, t float64, typ OptionType, opts IVOptions) IVResult {
	if marketPrice <= 0 {
		return IVResult{Error: math.Inf(1), Reason: ErrNonPositivePrice}
	}
	intrinsic := discountedIntrinsic(spot, strike, rate, t, typ)
	if marketPrice < intrinsic-opts.Tolerance {
		return IVResult{Error: intrinsic - marketPrice, Reason: ErrBelowIntrinsic}
	}
	if t <= 0 {
		return bisectIV(marketPrice, spot, strike, rate, t, typ, opts)
	}

	// Brenner-Subrahmanyam seed
	sigma := clamp(math.Sqrt(2*math.Pi/t)*(marketPrice/spot), newtonSeedMin, newtonSeedMax)
	p := Params{Spot: spot, Strike: strike, Rate: rate, Time: t, DividendYield: opts.DividendYield}
	for i := 0; i < opts.MaxIterations; i++ {
		p.Volatility = sigma
		diff := Price(typ, p) - marketPrice
		if math.Abs(diff) < opts.Tolerance {
			return IVResult{IV: sigma, Iterations: i + 1, Converged: true, Error: math.Abs(diff)}
		}
		vega := rawVega(p)
		if math.Abs(vega) < minVega {
			return bisectIV(marketPrice, spot, strike, rate, t, typ, opts)
		}
		sigma = clamp(sigma-diff/vega, newtonStepMin, newtonStepMax)
	}
	p.Volatility = sigma
	return IVResult{
		IV:         sigma,
		Iterations: opts.MaxIterations,
		Error:      math.Abs(Price(typ, p) - marketPrice),
		Reason:     ErrIVNotConverged,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
