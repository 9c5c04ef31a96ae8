package holdings

import (
	"context"
	"errors"
	"fmt"

	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientBalance is returned by Debit when the account cannot cover
// the amount. Callers map it to their own rejection.
var ErrInsufficientBalance = errors.New("Insufficient balance")

// Service encapsulates holdings operations.
type Service struct {
	DB *gorm.DB
}

// Debit removes amount from the holding inside tx. The balance check and the
// decrement are one conditional update, so concurrent debits cannot overdraw.
func Debit(tx *gorm.DB, accountID uuid.UUID, asset string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if amount > validation.MaxAmount {
		return ErrInsufficientBalance
	}
	res := tx.Model(&domain.Holding{}).
		Where("account_id = ? AND asset = ? AND balance >= ?", accountID, asset, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("debit %s: %w", asset, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Credit adds amount to the holding inside tx, creating it when absent. A
// credit that would push the balance past validation.MaxAmount is rejected
// with domain.ErrBalanceOverflow and leaves the row untouched.
func Credit(tx *gorm.DB, accountID uuid.UUID, asset string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if amount > validation.MaxAmount {
		return domain.ErrBalanceOverflow
	}
	headroom := validation.MaxAmount - amount
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.Model(&domain.Holding{}).
			Where("account_id = ? AND asset = ? AND balance <= ?", accountID, asset, headroom).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("credit %s: %w", asset, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		var existing int64
		if err := tx.Model(&domain.Holding{}).
			Where("account_id = ? AND asset = ?", accountID, asset).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("credit %s: %w", asset, err)
		}
		if existing > 0 {
			return domain.ErrBalanceOverflow
		}
		ins := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "asset"}},
			DoNothing: true,
		}).Create(&domain.Holding{AccountID: accountID, Asset: asset, Balance: amount})
		if ins.Error != nil {
			return fmt.Errorf("credit %s: %w", asset, ins.Error)
		}
		if ins.RowsAffected > 0 {
			return nil
		}
		// lost an insert race; the row exists now
	}
	return fmt.Errorf("credit %s: holding row not writable", asset)
}

// Deposit mints amount of asset into an account and records the ledger row.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, asset string, amount uint64) (*domain.Holding, error) {
	if accountID == uuid.Nil || !validation.IsValidAsset(asset) {
		return nil, fmt.Errorf("%w: account and asset are required", domain.ErrInvalidParameters)
	}
	if !validation.IsValidAmount(amount) {
		return nil, fmt.Errorf("%w: amount must be between 1 and %d", domain.ErrInvalidParameters, validation.MaxAmount)
	}
	var holding domain.Holding
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account domain.Account
		if err := tx.Where("account_id = ?", accountID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if err := Credit(tx, accountID, asset, amount); err != nil {
			return err
		}
		to := accountID
		if err := tx.Create(&domain.Transaction{
			Type:        domain.TxDeposit,
			Asset:       asset,
			ToAccountID: &to,
			Amount:      amount,
		}).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ? AND asset = ?", accountID, asset).First(&holding).Error
	})
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

// ViewHoldings returns all balances of an account, ordered by asset.
func (s *Service) ViewHoldings(ctx context.Context, accountID uuid.UUID) ([]domain.Holding, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("%w: account_id is required", domain.ErrInvalidParameters)
	}
	holdings := []domain.Holding{}
	if err := s.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("asset").
		Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// Balance returns one balance; a missing holding is zero.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID, asset string) (uint64, error) {
	var holding domain.Holding
	err := s.DB.WithContext(ctx).
		Where("account_id = ? AND asset = ?", accountID, asset).
		First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return holding.Balance, nil
}
