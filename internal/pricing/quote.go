package pricing

import "math"

// OptionQuote is a fully priced option with Greeks and value breakdown.
type OptionQuote struct {
	Price          float64 `json:"price"`
	Delta          float64 `json:"delta"`
	Gamma          float64 `json:"gamma"`
	Theta          float64 `json:"theta"`
	Vega           float64 `json:"vega"`
	Rho            float64 `json:"rho"`
	IV             float64 `json:"iv"`
	IntrinsicValue float64 `json:"intrinsic_value"`
	TimeValue      float64 `json:"time_value"`
	IsITM          bool    `json:"is_itm"`
}

// PriceOption adjusts baseVol for the surface, then prices the option.
func PriceOption(spot, strike, rate, baseVol, t float64, typ OptionType) OptionQuote {
	iv := AdjustForSurface(baseVol, strike, spot, t, typ)
	p := Params{Spot: spot, Strike: strike, Rate: rate, Volatility: iv, Time: t}

	price := Price(typ, p)
	g := ComputeGreeks(typ, p)

	intrinsic := math.Max(0, spot-strike)
	itm := spot > strike
	if typ == Put {
		intrinsic = math.Max(0, strike-spot)
		itm = spot < strike
	}

	return OptionQuote{
		Price:          price,
		Delta:          g.Delta,
		Gamma:          g.Gamma,
		Theta:          g.Theta,
		Vega:           g.Vega,
		Rho:            g.Rho,
		IV:             iv,
		IntrinsicValue: intrinsic,
		TimeValue:      math.Max(0, price-intrinsic),
		IsITM:          itm,
	}
}
