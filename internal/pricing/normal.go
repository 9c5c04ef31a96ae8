// Package pricing values options: Black-Scholes prices and Greeks, implied
// volatility, volatility surface adjustments and historical volatility.
// Everything here is a pure function of its arguments.
package pricing

import "math"

// Abramowitz-Stegun 7.1.26 coefficients (|error| <= 1.5e-7).
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// Erf approximates the error function.
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
		x = -x
	}
	t := 1 / (1 + erfP*x)
	y := 1 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(x float64) float64 {
	return 0.5 * (1 + Erf(x/math.Sqrt2))
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) * invSqrt2Pi
}
