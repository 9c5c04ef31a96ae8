package pricing

import "math"

const (
	minSurfaceIV = 0.05
	maxSurfaceIV = 3.0
)

// AdjustForSurface applies term-structure and skew/smile multipliers to a
// base volatility, clamped to [5%, 300%].
func AdjustForSurface(baseIV, strike, spot, t float64, typ OptionType) float64 {
	iv := baseIV * termMultiplier(t)

	moneyness := strike / spot
	dist := math.Abs(math.Log(moneyness))
	switch {
	case typ == Put && moneyness < 1:
		iv *= 1 + dist*3.5
	case typ == Put:
		iv *= 1 + dist*0.8
	case moneyness > 1:
		iv *= 1 + dist*2.0
	default:
		iv *= 1 + dist*0.5
	}
	return clamp(iv, minSurfaceIV, maxSurfaceIV)
}

func termMultiplier(t float64) float64 {
	days := t * 365
	switch {
	case days < 1:
		return 1.50
	case days < 7:
		return 1.25
	case days < 30:
		return 1.10
	case days > 90:
		return 0.95
	}
	return 1
}
