// Package sharevaults runs pooled covered-call vaults: depositors receive
// shares of one asset pool, the vault authority books earned premium once
// per epoch, and withdrawals settle at the share price of a later epoch.
package sharevaults

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xstock-options/internal/application/audit"
	"xstock-options/internal/application/holdings"
	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/units"
	"xstock-options/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxAttempts bounds re-runs after another writer bumped the vault version.
const maxAttempts = 8

var errVaultConflict = errors.New("share vault version conflict")

type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateInput struct {
	Asset             string    `json:"asset"`
	Authority         uuid.UUID `json:"authority"`
	UtilizationCapBps uint32    `json:"utilization_cap_bps"`
}

// VaultView adds the derived figures clients display.
type VaultView struct {
	*domain.ShareVault
	Deployable uint64          `json:"deployable"`
	SharePrice decimal.Decimal `json:"share_price"`
}

func newView(v *domain.ShareVault) *VaultView {
	price := decimal.NewFromInt(1)
	if v.TotalShares > 0 {
		price = units.ToDisplay(v.TotalAssets, 0).Div(units.ToDisplay(v.TotalShares, 0))
	}
	return &VaultView{ShareVault: v, Deployable: v.Deployable(), SharePrice: price}
}

// Create opens the single pool for an asset.
func (s *Service) Create(ctx context.Context, in CreateInput) (*VaultView, error) {
	if !validation.IsValidAsset(in.Asset) || in.Authority == uuid.Nil {
		return nil, fmt.Errorf("%w: asset and authority are required", domain.ErrInvalidParameters)
	}
	if in.UtilizationCapBps == 0 || in.UtilizationCapBps > domain.MaxUtilizationBps {
		return nil, fmt.Errorf("%w: utilization cap must be 1..%d bps", domain.ErrInvalidParameters, domain.MaxUtilizationBps)
	}
	v := &domain.ShareVault{
		ID:                domain.DeriveShareVaultID(in.Asset),
		Asset:             in.Asset,
		Authority:         in.Authority,
		UtilizationCapBps: in.UtilizationCapBps,
		Version:           1,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Account{}).Where("account_id = ?", in.Authority).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("authority: %w", domain.ErrNotFound)
		}
		if err := tx.Model(&domain.ShareVault{}).Where("id = ?", v.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadyExists
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		return audit.Record(tx, domain.SubjectShareVault, v.ID, domain.EventVaultCreated, uuid.Nil, map[string]interface{}{
			"asset":               v.Asset,
			"authority":           v.Authority.String(),
			"utilization_cap_bps": v.UtilizationCapBps,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("share_vault", v.ID.String()).Str("asset", v.Asset).Msg("share vault created")
	return newView(v), nil
}

// Get returns the pool for asset.
func (s *Service) Get(ctx context.Context, asset string) (*VaultView, error) {
	v, err := load(s.DB.WithContext(ctx), asset)
	if err != nil {
		return nil, err
	}
	return newView(v), nil
}

// Position is one depositor's stake.
type Position struct {
	VaultID   uuid.UUID                 `json:"vault_id"`
	AccountID uuid.UUID                 `json:"account_id"`
	Shares    uint64                    `json:"shares"`
	Value     uint64                    `json:"value"`
	Pending   *domain.WithdrawalRequest `json:"pending_withdrawal"`
}

// Position reports account's shares, their current value and any open
// withdrawal request.
func (s *Service) Position(ctx context.Context, asset string, account uuid.UUID) (*Position, error) {
	db := s.DB.WithContext(ctx)
	v, err := load(db, asset)
	if err != nil {
		return nil, err
	}
	shares, err := shareBalance(db, v.ID, account)
	if err != nil {
		return nil, err
	}
	pos := &Position{VaultID: v.ID, AccountID: account, Shares: shares}
	if shares > 0 {
		if pos.Value, err = domain.MulDiv(shares, v.TotalAssets, v.TotalShares); err != nil {
			return nil, err
		}
	}
	if pos.Pending, err = openRequest(db, v.ID, account); err != nil {
		return nil, err
	}
	return pos, nil
}

// DepositResult is the vault after a deposit and the shares it minted.
type DepositResult struct {
	Vault  *VaultView `json:"vault"`
	Minted uint64     `json:"minted"`
}

// Deposit moves amount of the pool asset from caller into the vault and
// mints shares at the current ratio; the first deposit mints 1:1.
func (s *Service) Deposit(ctx context.Context, asset string, caller uuid.UUID, amount uint64) (*DepositResult, error) {
	if !validation.IsValidAmount(amount) {
		return nil, fmt.Errorf("%w: amount must be between 1 and %d", domain.ErrInvalidParameters, validation.MaxAmount)
	}
	var minted uint64
	v, err := s.mutate(ctx, asset, func(tx *gorm.DB, v *domain.ShareVault, _ time.Time) (*change, error) {
		shares := amount
		if v.TotalShares > 0 && v.TotalAssets > 0 {
			var err error
			if shares, err = domain.MulDiv(amount, v.TotalShares, v.TotalAssets); err != nil {
				return nil, err
			}
		}
		if shares == 0 {
			return nil, domain.ErrZeroShares
		}
		if v.TotalAssets > validation.MaxAmount-amount || v.TotalShares > validation.MaxAmount-shares {
			return nil, domain.ErrBalanceOverflow
		}
		v.TotalAssets += amount
		v.TotalShares += shares
		minted = shares
		return &change{
			event: domain.EventVaultDeposit,
			actor: caller,
			data:  map[string]interface{}{"amount": amount, "shares": shares},
			apply: func(tx *gorm.DB) error {
				if err := holdings.Debit(tx, caller, v.Asset, amount); err != nil {
					if errors.Is(err, holdings.ErrInsufficientBalance) {
						return domain.ErrInsufficientFunds
					}
					return err
				}
				if err := addShares(tx, v.ID, caller, shares); err != nil {
					return err
				}
				return recordTx(tx, domain.TxVaultDeposit, v, &caller, nil, amount)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &DepositResult{Vault: newView(v), Minted: minted}, nil
}

// RequestWithdrawal queues shares for redemption once the current epoch
// ends. One request may be open per account.
func (s *Service) RequestWithdrawal(ctx context.Context, asset string, caller uuid.UUID, shares uint64) (*domain.WithdrawalRequest, error) {
	if shares == 0 {
		return nil, fmt.Errorf("%w: shares must be positive", domain.ErrInvalidParameters)
	}
	var req *domain.WithdrawalRequest
	_, err := s.mutate(ctx, asset, func(tx *gorm.DB, v *domain.ShareVault, _ time.Time) (*change, error) {
		held, err := shareBalance(tx, v.ID, caller)
		if err != nil {
			return nil, err
		}
		if held < shares {
			return nil, domain.ErrInsufficientShares
		}
		open, err := openRequest(tx, v.ID, caller)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return nil, fmt.Errorf("%w: withdrawal %s is still pending", domain.ErrAlreadyExists, open.ID)
		}
		v.PendingWithdrawals += shares
		req = &domain.WithdrawalRequest{
			VaultID:      v.ID,
			AccountID:    caller,
			Shares:       shares,
			RequestEpoch: v.Epoch,
		}
		return &change{
			event: domain.EventWithdrawalRequested,
			actor: caller,
			data:  map[string]interface{}{"shares": shares, "epoch": v.Epoch},
			apply: func(tx *gorm.DB) error { return tx.Create(req).Error },
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ProcessWithdrawal burns the shares of a request whose epoch has ended and
// pays their value at the current ratio. A nil requestID picks the caller's
// open request.
func (s *Service) ProcessWithdrawal(ctx context.Context, asset string, caller, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	var req *domain.WithdrawalRequest
	_, err := s.mutate(ctx, asset, func(tx *gorm.DB, v *domain.ShareVault, now time.Time) (*change, error) {
		var err error
		if requestID == uuid.Nil {
			req, err = openRequest(tx, v.ID, caller)
		} else {
			req, err = requestByID(tx, v.ID, caller, requestID)
		}
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, fmt.Errorf("withdrawal request: %w", domain.ErrNotFound)
		}
		if req.Processed {
			return nil, domain.ErrWithdrawalProcessed
		}
		if v.Epoch <= req.RequestEpoch {
			return nil, domain.ErrEpochNotSettled
		}
		if v.TotalShares < req.Shares || v.PendingWithdrawals < req.Shares {
			return nil, fmt.Errorf("vault %s share totals below request %s", v.ID, req.ID)
		}
		amount, err := domain.MulDiv(req.Shares, v.TotalAssets, v.TotalShares)
		if err != nil {
			return nil, err
		}
		v.TotalAssets -= amount
		v.TotalShares -= req.Shares
		v.PendingWithdrawals -= req.Shares
		at := now.UTC()
		req.Processed, req.Amount, req.ProcessedAt = true, amount, &at
		return &change{
			event: domain.EventWithdrawalProcessed,
			actor: caller,
			data:  map[string]interface{}{"request": req.ID.String(), "shares": req.Shares, "amount": amount},
			apply: func(tx *gorm.DB) error {
				if err := burnShares(tx, v.ID, caller, req.Shares); err != nil {
					return err
				}
				res := tx.Model(&domain.WithdrawalRequest{}).
					Where("id = ? AND processed = ?", req.ID, false).
					Updates(map[string]interface{}{"processed": true, "amount": amount, "processed_at": req.ProcessedAt})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return domain.ErrWithdrawalProcessed
				}
				if err := holdings.Credit(tx, caller, v.Asset, amount); err != nil {
					return err
				}
				return recordTx(tx, domain.TxVaultWithdrawal, v, nil, &caller, amount)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// AdvanceEpoch books premiumEarned into the pool out of the authority's own
// holdings and starts the next epoch. Only the authority may roll.
func (s *Service) AdvanceEpoch(ctx context.Context, asset string, caller uuid.UUID, premiumEarned uint64) (*VaultView, error) {
	if premiumEarned > validation.MaxAmount {
		return nil, fmt.Errorf("%w: premium must not exceed %d", domain.ErrInvalidParameters, validation.MaxAmount)
	}
	v, err := s.mutate(ctx, asset, func(tx *gorm.DB, v *domain.ShareVault, now time.Time) (*change, error) {
		if caller != v.Authority {
			return nil, domain.ErrUnauthorized
		}
		if v.TotalAssets > validation.MaxAmount-premiumEarned {
			return nil, domain.ErrBalanceOverflow
		}
		v.TotalAssets += premiumEarned
		v.Epoch++
		at := now.UTC()
		v.LastRollAt = &at
		return &change{
			event: domain.EventEpochAdvanced,
			actor: caller,
			data:  map[string]interface{}{"epoch": v.Epoch, "premium_earned": premiumEarned},
			apply: func(tx *gorm.DB) error {
				if premiumEarned == 0 {
					return nil
				}
				if err := holdings.Debit(tx, caller, v.Asset, premiumEarned); err != nil {
					if errors.Is(err, holdings.ErrInsufficientBalance) {
						return domain.ErrInsufficientFunds
					}
					return err
				}
				return recordTx(tx, domain.TxVaultPremium, v, &caller, nil, premiumEarned)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("share_vault", v.ID.String()).Uint64("epoch", v.Epoch).Uint64("premium", premiumEarned).Msg("share vault epoch advanced")
	return newView(v), nil
}

// change is what a vault mutation decided: its audit entry plus the ledger
// side applied after the versioned vault update.
type change struct {
	event string
	actor uuid.UUID
	data  map[string]interface{}
	apply func(tx *gorm.DB) error
}

type mutation func(tx *gorm.DB, v *domain.ShareVault, now time.Time) (*change, error)

// mutate loads the pool, lets fn edit it, and commits only if the version is
// unchanged since the load. Every share movement bumps the version, so a
// commit also proves the share rows fn read are current.
func (s *Service) mutate(ctx context.Context, asset string, fn mutation) (*domain.ShareVault, error) {
	for attempt := 1; ; attempt++ {
		v, err := s.mutateOnce(ctx, asset, fn)
		if errors.Is(err, errVaultConflict) && attempt < maxAttempts {
			log.Debug().Str("asset", asset).Int("attempt", attempt).Msg("share vault conflict, retrying")
			continue
		}
		return v, err
	}
}

func (s *Service) mutateOnce(ctx context.Context, asset string, fn mutation) (*domain.ShareVault, error) {
	var out *domain.ShareVault
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := load(tx, asset)
		if err != nil {
			return err
		}
		prev := v.Version
		ch, err := fn(tx, v, s.now())
		if err != nil {
			return err
		}
		v.Version = prev + 1
		res := tx.Model(&domain.ShareVault{}).
			Where("id = ? AND version = ?", v.ID, prev).
			Updates(map[string]interface{}{
				"total_assets":        v.TotalAssets,
				"total_shares":        v.TotalShares,
				"pending_withdrawals": v.PendingWithdrawals,
				"epoch":               v.Epoch,
				"last_roll_at":        v.LastRollAt,
				"version":             v.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVaultConflict
		}
		if ch.apply != nil {
			if err := ch.apply(tx); err != nil {
				return err
			}
		}
		if err := audit.Record(tx, domain.SubjectShareVault, v.ID, ch.event, ch.actor, ch.data); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func load(db *gorm.DB, asset string) (*domain.ShareVault, error) {
	var v domain.ShareVault
	if err := db.Where("asset = ?", asset).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func shareBalance(db *gorm.DB, vaultID, account uuid.UUID) (uint64, error) {
	var b domain.ShareBalance
	err := db.Where("vault_id = ? AND account_id = ?", vaultID, account).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return b.Shares, nil
}

func addShares(tx *gorm.DB, vaultID, account uuid.UUID, shares uint64) error {
	res := tx.Model(&domain.ShareBalance{}).
		Where("vault_id = ? AND account_id = ?", vaultID, account).
		Update("shares", gorm.Expr("shares + ?", shares))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Create(&domain.ShareBalance{VaultID: vaultID, AccountID: account, Shares: shares}).Error
}

func burnShares(tx *gorm.DB, vaultID, account uuid.UUID, shares uint64) error {
	res := tx.Model(&domain.ShareBalance{}).
		Where("vault_id = ? AND account_id = ? AND shares >= ?", vaultID, account, shares).
		Update("shares", gorm.Expr("shares - ?", shares))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientShares
	}
	return nil
}

func openRequest(db *gorm.DB, vaultID, account uuid.UUID) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	err := db.Where("vault_id = ? AND account_id = ? AND processed = ?", vaultID, account, false).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func requestByID(db *gorm.DB, vaultID, account, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	err := db.Where("id = ? AND vault_id = ? AND account_id = ?", id, vaultID, account).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func recordTx(tx *gorm.DB, kind string, v *domain.ShareVault, from, to *uuid.UUID, amount uint64) error {
	ref := v.ID
	return tx.Create(&domain.Transaction{
		Type:          kind,
		Asset:         v.Asset,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		ReferenceID:   &ref,
	}).Error
}
