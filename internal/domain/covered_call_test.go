package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCoveredCallID_Deterministic(t *testing.T) {
	a := DeriveCoveredCallID(testSeller, "xAAPL", 1)
	assert.Equal(t, a, DeriveCoveredCallID(testSeller, "xAAPL", 1))
	assert.NotEqual(t, a, DeriveCoveredCallID(testSeller, "xAAPL", 2))
	assert.NotEqual(t, a, DeriveCoveredCallID(testSeller, "xTSLA", 1))
	assert.NotEqual(t, a, DeriveCoveredCallID(testBuyer, "xAAPL", 1))
	assert.NotEqual(t, DeriveVaultID(a), a)
	assert.Equal(t, DeriveVaultID(a), DeriveVaultID(a))
}

func TestCoveredCall_State(t *testing.T) {
	now := time.Unix(1_000, 0)
	buyer := testBuyer
	base := CoveredCall{Seller: testSeller, Premium: 5, AskPrice: 5, ExpiryTs: 2_000}

	cases := []struct {
		name string
		mut  func(c *CoveredCall)
		at   time.Time
		want OptionState
	}{
		{"created", func(c *CoveredCall) {}, now, StateCreated},
		{"created past expiry", func(c *CoveredCall) {}, time.Unix(5_000, 0), StateCreated},
		{"listed", func(c *CoveredCall) { c.IsListed = true }, now, StateListed},
		{"sold open", func(c *CoveredCall) { c.Buyer = &buyer }, now, StateSoldOpen},
		{"sold expired at boundary", func(c *CoveredCall) { c.Buyer = &buyer }, time.Unix(2_000, 0), StateSoldExpired},
		{"relisted", func(c *CoveredCall) { c.Buyer = &buyer; c.IsListed = true }, now, StateListed},
		{"exercised", func(c *CoveredCall) { c.Buyer = &buyer; c.Exercised = true; c.BuyerExercised = true }, now, StateExercised},
		{"reclaimed", func(c *CoveredCall) { c.Exercised = true; c.Cancelled = true }, now, StateReclaimed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mut(&c)
			assert.Equal(t, tc.want, c.State(tc.at))
		})
	}
}

func TestCoveredCall_HolderAndPrice(t *testing.T) {
	c := CoveredCall{Seller: testSeller, Premium: 5, AskPrice: 9}
	assert.Equal(t, testSeller, c.Holder())
	assert.False(t, c.Sold())
	assert.Equal(t, uint64(5), c.PurchasePrice())

	buyer := testBuyer
	c.Buyer = &buyer
	c.IsListed = true
	assert.Equal(t, testBuyer, c.Holder())
	assert.Equal(t, uint64(9), c.PurchasePrice())
}

func TestParseOptionState(t *testing.T) {
	st, ok := ParseOptionState("sold_open")
	assert.True(t, ok)
	assert.Equal(t, StateSoldOpen, st)
	_, ok = ParseOptionState("open")
	assert.False(t, ok)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "", Code(fmt.Errorf("boom")))
	assert.Equal(t, "OptionNotListed", Code(ErrOptionNotListed))
	assert.Equal(t, "InvalidParameters", Code(fmt.Errorf("%w: strike must be positive", ErrInvalidParameters)))
	assert.Equal(t, "NotFound", Code(fmt.Errorf("load: %w", ErrNotFound)))
	assert.Equal(t, "DecodeError", Code(&DecodeError{Field: "x", Reason: "y"}))
}
