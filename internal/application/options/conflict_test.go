package options

import (
	"context"
	"testing"
	"time"

	"xstock-options/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// bumpVersion commits a competing row version inside tx so the versioned
// update that follows matches nothing.
func bumpVersion(tx *gorm.DB, cc *domain.CoveredCall) error {
	return tx.Model(&domain.CoveredCall{}).
		Where("id = ?", cc.ID).
		Update("version", gorm.Expr("version + 1")).Error
}

func TestTransition_RetriesAfterVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, seller, xAAPL, 100_000_000)
	f.fund(t, alice, usdc, 50_000_000)
	id := f.create(t, 1, 7*24*time.Hour).CoveredCall.ID

	var updates int
	f.svc.beforeUpdate = func(tx *gorm.DB, cc *domain.CoveredCall) error {
		updates++
		if updates == 1 {
			return bumpVersion(tx, cc)
		}
		return nil
	}
	var conflicts []int
	f.svc.afterConflict = func(attempt int) { conflicts = append(conflicts, attempt) }

	view, err := f.svc.Buy(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, updates)
	assert.Equal(t, []int{1}, conflicts)
	assert.Equal(t, int64(2), view.CoveredCall.Version)

	// the rolled-back attempt left no trace
	assert.Equal(t, uint64(45_000_000), f.balance(t, alice, usdc))
	var purchases int64
	require.NoError(t, f.db.Model(&domain.OptionEvent{}).
		Where("covered_call_id = ? AND event_type = ?", id, domain.EventPurchased).
		Count(&purchases).Error)
	assert.Equal(t, int64(1), purchases)
}

func TestTransition_LoserSeesCompetingBuy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, seller, xAAPL, 100_000_000)
	f.fund(t, alice, usdc, 50_000_000)
	f.fund(t, bob, usdc, 50_000_000)
	id := f.create(t, 1, 7*24*time.Hour).CoveredCall.ID

	var updates int
	f.svc.beforeUpdate = func(tx *gorm.DB, cc *domain.CoveredCall) error {
		updates++
		if updates == 1 {
			return bumpVersion(tx, cc)
		}
		return nil
	}
	// bob commits between alice's first and second attempt
	f.svc.afterConflict = func(int) {
		f.svc.afterConflict = nil
		_, err := f.svc.Buy(ctx, id, bob)
		require.NoError(t, err)
	}

	_, err := f.svc.Buy(ctx, id, alice)
	assert.ErrorIs(t, err, domain.ErrOptionNotListed)
	assert.Equal(t, 2, updates, "alice's guard re-ran and rejected before updating")

	got, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.CoveredCall.Buyer)
	assert.Equal(t, bob, *got.CoveredCall.Buyer)
	assert.Equal(t, uint64(50_000_000), f.balance(t, alice, usdc))
	assert.Equal(t, uint64(45_000_000), f.balance(t, bob, usdc))
}

func TestTransition_GuardRerunsOnSettledOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, seller, xAAPL, 100_000_000)
	id := f.create(t, 1, 7*24*time.Hour).CoveredCall.ID

	f.svc.beforeUpdate = func(tx *gorm.DB, cc *domain.CoveredCall) error {
		f.svc.beforeUpdate = nil
		return bumpVersion(tx, cc)
	}
	f.svc.afterConflict = func(int) {
		f.svc.afterConflict = nil
		_, err := f.svc.Reclaim(ctx, id, seller)
		require.NoError(t, err)
	}

	var runs int
	_, err := f.svc.transition(ctx, id, func(cc *domain.CoveredCall, _ *domain.Vault, _ time.Time) (*effect, error) {
		runs++
		if cc.Terminal() {
			return nil, domain.ErrOptionAlreadyExercised
		}
		cc.IsListed = false
		return &effect{event: domain.EventListingCancelled, actor: seller, data: map[string]interface{}{}}, nil
	})
	assert.ErrorIs(t, err, domain.ErrOptionAlreadyExercised)
	assert.Equal(t, 2, runs)
	assert.Equal(t, uint64(100_000_000), f.balance(t, seller, xAAPL))
}

func TestTransition_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, seller, xAAPL, 100_000_000)
	id := f.create(t, 1, 7*24*time.Hour).CoveredCall.ID

	var updates int
	f.svc.beforeUpdate = func(tx *gorm.DB, cc *domain.CoveredCall) error {
		updates++
		return bumpVersion(tx, cc)
	}

	_, err := f.svc.ListForSale(ctx, id, seller, 6_000_000)
	assert.ErrorIs(t, err, errVersionConflict)
	assert.Equal(t, maxAttempts, updates)

	f.svc.beforeUpdate = nil
	got, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.CoveredCall.IsListed)
	assert.Equal(t, int64(1), got.CoveredCall.Version)
}

func TestRelease_RetriesWhenVaultAlreadyPaidOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, seller, xAAPL, 100_000_000)
	id := f.create(t, 1, 7*24*time.Hour).CoveredCall.ID

	var updates int
	f.svc.beforeUpdate = func(tx *gorm.DB, cc *domain.CoveredCall) error {
		updates++
		if updates > 1 {
			return nil
		}
		// a settlement that landed without touching the option row
		return tx.Model(&domain.Vault{}).
			Where("covered_call_id = ?", cc.ID).
			Update("paid_out", 1).Error
	}

	view, err := f.svc.Reclaim(ctx, id, seller)
	require.NoError(t, err)
	assert.Equal(t, 2, updates)
	assert.Equal(t, uint64(100_000_000), view.Vault.PaidOut)
	assert.Equal(t, uint64(100_000_000), f.balance(t, seller, xAAPL))

	var releases int64
	require.NoError(t, f.db.Model(&domain.Transaction{}).
		Where("covered_call_id = ? AND type = ?", id, domain.TxCollateralRelease).
		Count(&releases).Error)
	assert.Equal(t, int64(1), releases)
}

func TestRelease_RefusesStaleVault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, seller, xAAPL, 100_000_000)
	created := f.create(t, 1, 7*24*time.Hour)
	_, err := f.svc.Reclaim(ctx, created.CoveredCall.ID, seller)
	require.NoError(t, err)

	stale := *created.Vault
	released := settle(&stale, seller, start)
	err = f.db.Transaction(func(tx *gorm.DB) error {
		return release(tx, created.CoveredCall, &stale, seller, released)
	})
	assert.ErrorIs(t, err, errVersionConflict)
	assert.Equal(t, uint64(100_000_000), f.balance(t, seller, xAAPL))
}
