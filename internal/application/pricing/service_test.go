package pricing

import (
	"context"
	"testing"
	"time"

	"xstock-options/internal/application/options"
	"xstock-options/internal/domain"
	engine "xstock-options/internal/pricing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1_700_000_000, 0)

type stubOracle struct {
	spot   float64
	closes []float64
}

func (o stubOracle) Spot(context.Context, string) (float64, error) { return o.spot, nil }

func (o stubOracle) Closes(context.Context, string, int) ([]float64, error) { return o.closes, nil }

type stubOptions struct{ view *options.OptionView }

func (o stubOptions) Get(_ context.Context, id uuid.UUID) (*options.OptionView, error) {
	if o.view == nil || o.view.CoveredCall.ID != id {
		return nil, domain.ErrNotFound
	}
	return o.view, nil
}

func newService(o stubOracle, opts stubOptions) *Service {
	return &Service{
		Oracle:         o,
		Options:        opts,
		RiskFreeRate:   engine.DefaultRiskFreeRate,
		PeriodsPerYear: engine.TradingDaysPerYear,
		Now:            func() time.Time { return now },
	}
}

func TestQuote(t *testing.T) {
	svc := newService(stubOracle{}, stubOptions{})

	q, err := svc.Quote(QuoteInput{Spot: 100, Strike: 100, Volatility: 0.2, Horizon: Horizon{TimeValue: 365, TimeUnit: engine.Days}})
	require.NoError(t, err)
	want := engine.PriceOption(100, 100, 0.05, 0.2, 1, engine.Call)
	assert.InDelta(t, want.Price, q.Price, 1e-12)

	zero := 0.0
	q, err = svc.Quote(QuoteInput{Spot: 100, Strike: 100, Volatility: 0.2, Rate: &zero, OptionType: "put", Horizon: Horizon{Time: 0.5}})
	require.NoError(t, err)
	assert.InDelta(t, engine.PriceOption(100, 100, 0, 0.2, 0.5, engine.Put).Price, q.Price, 1e-12)

	_, err = svc.Quote(QuoteInput{Spot: 0, Strike: 100, Volatility: 0.2})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = svc.Quote(QuoteInput{Spot: 1, Strike: 1, Volatility: 0.2, OptionType: "straddle"})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = svc.Quote(QuoteInput{Spot: 1, Strike: 1, Volatility: 0.2, Horizon: Horizon{TimeValue: 1, TimeUnit: "fortnights"}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestImpliedVolatility(t *testing.T) {
	svc := newService(stubOracle{}, stubOptions{})
	price := engine.Price(engine.Call, engine.Params{Spot: 100, Strike: 105, Rate: 0.05, Volatility: 0.3, Time: 0.25})

	for _, m := range []engine.IVMethod{"", engine.Bisection, engine.NewtonRaphson} {
		v, err := svc.ImpliedVolatility(IVInput{MarketPrice: price, Spot: 100, Strike: 105, Method: m, Horizon: Horizon{Time: 0.25}})
		require.NoError(t, err)
		assert.True(t, v.Converged, "method %q", m)
		assert.InDelta(t, 0.3, v.IV, 1e-3)
		assert.Empty(t, v.Reason)
	}

	v, err := svc.ImpliedVolatility(IVInput{MarketPrice: -1, Spot: 100, Strike: 105, Horizon: Horizon{Time: 0.25}})
	require.NoError(t, err)
	assert.False(t, v.Converged)
	assert.Equal(t, engine.ErrNonPositivePrice.Error(), v.Reason)
	assert.Equal(t, -1.0, v.Error)

	_, err = svc.ImpliedVolatility(IVInput{MarketPrice: 1, Spot: 100, Strike: 105, Method: "secant"})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestHistoricalVolatility(t *testing.T) {
	svc := newService(stubOracle{}, stubOptions{})
	v := svc.HistoricalVolatility(HVInput{Prices: []float64{100}})
	assert.Equal(t, engine.FallbackHV, v.HV)
	assert.Equal(t, 0, v.SampleSize)

	v = svc.HistoricalVolatility(HVInput{Prices: []float64{100, 101, 99, 102, 100, 103}})
	assert.Equal(t, 5, v.SampleSize)
	assert.Equal(t, v.HV, v.Windows.HVAll)
}

func TestSuggest(t *testing.T) {
	closes := []float64{100, 101, 100.5, 102, 101, 103, 102.5, 104, 103, 105, 104.5, 106}
	svc := newService(stubOracle{spot: 106, closes: closes}, stubOptions{})
	ctx := context.Background()

	s, err := svc.Suggest(ctx, "xAAPL", SuggestInput{Strike: 110, ExpiryTs: now.Add(30 * 24 * time.Hour).Unix(), Amount: 2_000_000})
	require.NoError(t, err)
	assert.Equal(t, 106.0, s.Spot)
	assert.Equal(t, 11, s.SampleSize)
	assert.InDelta(t, 30.0/365, s.TimeToExpiry, 1e-12)
	want := engine.PriceOption(106, 110, 0.05, s.Volatility.HVWeighted, s.TimeToExpiry, engine.Call)
	assert.InDelta(t, want.Price, s.Quote.Price, 1e-12)
	assert.InDelta(t, want.Price*2*1e6, float64(s.Premium), 2)

	_, err = svc.Suggest(ctx, "xAAPL", SuggestInput{Strike: 110, ExpiryTs: now.Unix()})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = svc.Suggest(ctx, "xAAPL", SuggestInput{Strike: 0, ExpiryTs: now.Add(time.Hour).Unix()})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestRisk(t *testing.T) {
	seller := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	cc := &domain.CoveredCall{
		ID:              domain.DeriveCoveredCallID(seller, "xAAPL", 1),
		Seller:          seller,
		UnderlyingAsset: "xAAPL",
		QuoteAsset:      "USDC",
		Strike:          150_000_000,
		Premium:         5_000_000,
		AskPrice:        5_000_000,
		Amount:          100_000_000,
		ExpiryTs:        now.Add(7 * 24 * time.Hour).Unix(),
		Version:         1,
	}
	view := &options.OptionView{CoveredCall: cc, Vault: &domain.Vault{}, State: domain.StateCreated}
	svc := newService(stubOracle{spot: 1.5}, stubOptions{view: view})

	r, err := svc.Risk(context.Background(), cc.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, r.StrikePerUnit, 1e-12)
	assert.InDelta(t, 0.05, r.PremiumPerUnit, 1e-12)
	assert.InDelta(t, 1.0, r.Moneyness, 1e-12)
	require.True(t, r.Implied.Converged)
	require.NotNil(t, r.Greeks)

	back := engine.Price(engine.Call, engine.Params{Spot: 1.5, Strike: 1.5, Rate: 0.05, Volatility: r.Implied.IV, Time: r.TimeToExpiry})
	assert.InDelta(t, 0.05, back, 1e-3)
	assert.InDelta(t, 0.5, r.Greeks.Delta, 0.1)

	_, err = svc.Risk(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
