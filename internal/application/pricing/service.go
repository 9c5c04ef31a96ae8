package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"xstock-options/internal/application/options"
	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/units"
	engine "xstock-options/internal/pricing"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is how many oracle samples feed the volatility blend.
const DefaultHistoryLimit = 120

// SpotSource supplies current and historical prices for an asset.
type SpotSource interface {
	Spot(ctx context.Context, asset string) (float64, error)
	Closes(ctx context.Context, asset string, limit int) ([]float64, error)
}

// OptionSource loads committed option snapshots.
type OptionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*options.OptionView, error)
}

// Service wires the pricing engine to oracle data and stored options.
// It only reads; nothing here writes to the state machine.
type Service struct {
	Oracle         SpotSource
	Options        OptionSource
	RiskFreeRate   float64
	PeriodsPerYear float64
	HistoryLimit   int
	Now            func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) rate(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.RiskFreeRate
}

// Horizon is a time to expiry, either in years or as value + unit.
type Horizon struct {
	Time      float64         `json:"time"`
	TimeValue float64         `json:"time_value"`
	TimeUnit  engine.TimeUnit `json:"time_unit"`
}

func (h Horizon) years() (float64, error) {
	if h.TimeUnit != "" {
		t, err := engine.TimeToYears(h.TimeValue, h.TimeUnit)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
		return t, nil
	}
	return h.Time, nil
}

type QuoteInput struct {
	Horizon
	Spot       float64  `json:"spot"`
	Strike     float64  `json:"strike"`
	Volatility float64  `json:"volatility"`
	Rate       *float64 `json:"rate"`
	OptionType string   `json:"option_type"`
}

// Quote prices an option from explicit inputs.
func (s *Service) Quote(in QuoteInput) (engine.OptionQuote, error) {
	typ, err := parseType(in.OptionType)
	if err != nil {
		return engine.OptionQuote{}, err
	}
	if !(in.Spot > 0) || !(in.Strike > 0) || !(in.Volatility > 0) {
		return engine.OptionQuote{}, fmt.Errorf("%w: spot, strike and volatility must be positive", domain.ErrInvalidParameters)
	}
	t, err := in.years()
	if err != nil {
		return engine.OptionQuote{}, err
	}
	return engine.PriceOption(in.Spot, in.Strike, s.rate(in.Rate), in.Volatility, t, typ), nil
}

type IVInput struct {
	Horizon
	MarketPrice   float64         `json:"market_price"`
	Spot          float64         `json:"spot"`
	Strike        float64         `json:"strike"`
	Rate          *float64        `json:"rate"`
	OptionType    string          `json:"option_type"`
	Method        engine.IVMethod `json:"method"`
	Tolerance     float64         `json:"tolerance"`
	MaxIterations int             `json:"max_iterations"`
}

// IVView is IVResult with the reason flattened for JSON.
type IVView struct {
	IV         float64 `json:"iv"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Error      float64 `json:"error"`
	Reason     string  `json:"reason,omitempty"`
}

// NewIVView flattens r, reporting an infinite error as -1.
func NewIVView(r engine.IVResult) IVView {
	v := IVView{IV: r.IV, Iterations: r.Iterations, Converged: r.Converged, Error: r.Error, Reason: r.ReasonText()}
	if math.IsInf(v.Error, 0) {
		v.Error = -1
	}
	return v
}

// ImpliedVolatility backs volatility out of a market price.
func (s *Service) ImpliedVolatility(in IVInput) (IVView, error) {
	typ, err := parseType(in.OptionType)
	if err != nil {
		return IVView{}, err
	}
	if !(in.Spot > 0) || !(in.Strike > 0) {
		return IVView{}, fmt.Errorf("%w: spot and strike must be positive", domain.ErrInvalidParameters)
	}
	switch in.Method {
	case "", engine.Bisection, engine.NewtonRaphson:
	default:
		return IVView{}, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidParameters, in.Method)
	}
	t, err := in.years()
	if err != nil {
		return IVView{}, err
	}
	r := engine.ImpliedVolatility(in.MarketPrice, in.Spot, in.Strike, s.rate(in.Rate), t, typ, engine.IVOptions{
		Method:        in.Method,
		Tolerance:     in.Tolerance,
		MaxIterations: in.MaxIterations,
	})
	return NewIVView(r), nil
}

type HVInput struct {
	Prices         []float64 `json:"prices"`
	PeriodsPerYear float64   `json:"periods_per_year"`
}

type HVView struct {
	engine.HVResult
	Windows engine.Windows `json:"windows"`
}

// HistoricalVolatility estimates volatility from a price series.
func (s *Service) HistoricalVolatility(in HVInput) HVView {
	ppy := in.PeriodsPerYear
	if ppy <= 0 {
		ppy = s.PeriodsPerYear
	}
	return HVView{
		HVResult: engine.HistoricalVolatility(in.Prices, ppy),
		Windows:  engine.VolatilityWindows(in.Prices, ppy),
	}
}

type SuggestInput struct {
	Strike     float64 `json:"strike"`
	ExpiryTs   int64   `json:"expiry_ts"`
	Amount     uint64  `json:"amount"`
	OptionType string  `json:"option_type"`
}

// Suggestion is a premium proposal for a seller about to create an option.
type Suggestion struct {
	Asset        string             `json:"asset"`
	Spot         float64            `json:"spot"`
	TimeToExpiry float64            `json:"time_to_expiry"`
	Volatility   engine.Windows     `json:"volatility"`
	SampleSize   int                `json:"sample_size"`
	Quote        engine.OptionQuote `json:"quote"`

	// Premium is the quote price times Amount, in quote base units.
	Premium uint64 `json:"premium"`
}

// Suggest prices an option on asset from the oracle spot and the blended
// historical volatility of its price history.
func (s *Service) Suggest(ctx context.Context, asset string, in SuggestInput) (*Suggestion, error) {
	typ, err := parseType(in.OptionType)
	if err != nil {
		return nil, err
	}
	if !(in.Strike > 0) {
		return nil, fmt.Errorf("%w: strike must be positive", domain.ErrInvalidParameters)
	}
	expiry := time.Unix(in.ExpiryTs, 0)
	if !expiry.After(s.now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", domain.ErrInvalidParameters)
	}
	spot, err := s.Oracle.Spot(ctx, asset)
	if err != nil {
		return nil, err
	}
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	closes, err := s.Oracle.Closes(ctx, asset, limit)
	if err != nil {
		return nil, err
	}

	hv := engine.HistoricalVolatility(closes, s.PeriodsPerYear)
	windows := engine.VolatilityWindows(closes, s.PeriodsPerYear)
	t := engine.YearsUntil(s.now(), expiry)
	quote := engine.PriceOption(spot, in.Strike, s.RiskFreeRate, windows.HVWeighted, t, typ)

	var premium uint64
	if in.Amount > 0 {
		premium, err = units.Total(quote.Price, units.DefaultDecimals, in.Amount, units.DefaultDecimals)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
		}
	}
	return &Suggestion{
		Asset:        asset,
		Spot:         spot,
		TimeToExpiry: t,
		Volatility:   windows,
		SampleSize:   hv.SampleSize,
		Quote:        quote,
		Premium:      premium,
	}, nil
}

// RiskView is the observer's read of an option: implied volatility backed
// out of its current price, and Greeks at that volatility.
type RiskView struct {
	CoveredCallID  uuid.UUID          `json:"covered_call_id"`
	State          domain.OptionState `json:"state"`
	Spot           float64            `json:"spot"`
	StrikePerUnit  float64            `json:"strike_per_unit"`
	PremiumPerUnit float64            `json:"premium_per_unit"`
	TimeToExpiry   float64            `json:"time_to_expiry"`
	Moneyness      float64            `json:"moneyness"`
	Implied        IVView             `json:"implied"`
	Greeks         *engine.Greeks     `json:"greeks"`
}

// Risk computes the risk view of a stored option.
func (s *Service) Risk(ctx context.Context, id uuid.UUID) (*RiskView, error) {
	view, err := s.Options.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cc := view.CoveredCall
	spot, err := s.Oracle.Spot(ctx, cc.UnderlyingAsset)
	if err != nil {
		return nil, err
	}
	strike, err := units.PerUnit(cc.Strike, units.DefaultDecimals, cc.Amount, units.DefaultDecimals)
	if err != nil {
		return nil, err
	}
	premium, err := units.PerUnit(cc.PurchasePrice(), units.DefaultDecimals, cc.Amount, units.DefaultDecimals)
	if err != nil {
		return nil, err
	}
	t := engine.YearsUntil(s.now(), cc.Expiry())

	iv := engine.ImpliedVolatility(premium, spot, strike, s.RiskFreeRate, t, engine.Call, engine.IVOptions{})
	out := &RiskView{
		CoveredCallID:  cc.ID,
		State:          view.State,
		Spot:           spot,
		StrikePerUnit:  strike,
		PremiumPerUnit: premium,
		TimeToExpiry:   t,
		Moneyness:      spot / strike,
		Implied:        NewIVView(iv),
	}
	if iv.Converged {
		g := engine.ComputeGreeks(engine.Call, engine.Params{
			Spot: spot, Strike: strike, Rate: s.RiskFreeRate, Volatility: iv.IV, Time: t,
		})
		out.Greeks = &g
	}
	return out, nil
}

func parseType(s string) (engine.OptionType, error) {
	if s == "" {
		return engine.Call, nil
	}
	typ, err := engine.ParseOptionType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
	}
	return typ, nil
}
