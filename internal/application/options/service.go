package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xstock-options/internal/application/holdings"
	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxAttempts bounds re-runs of a transition after a version conflict.
const maxAttempts = 8

var errVersionConflict = errors.New("covered call version conflict")

// SnapshotCache stores committed option snapshots for the read path.
// A Get error of any kind is treated as a miss.
type SnapshotCache interface {
	PutOption(ctx context.Context, cc *domain.CoveredCall, vault *domain.Vault) error
	GetOption(ctx context.Context, id uuid.UUID) (*domain.CoveredCall, *domain.Vault, error)
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// Service runs the covered-call state machine. Every operation is one DB
// transaction; guards are evaluated on freshly loaded state inside it.
type Service struct {
	DB    *gorm.DB
	Cache SnapshotCache
	Now   func() time.Time

	// beforeUpdate runs inside an attempt between the guard and the
	// versioned row update; afterConflict runs once the losing attempt has
	// rolled back. Both are nil outside tests.
	beforeUpdate  func(tx *gorm.DB, cc *domain.CoveredCall) error
	afterConflict func(attempt int)
}

// CreateInput is the seller's creation instruction.
type CreateInput struct {
	Seller          uuid.UUID `json:"-"`
	UID             uint64    `json:"uid"`
	UnderlyingAsset string    `json:"underlying_asset"`
	QuoteAsset      string    `json:"quote_asset"`
	Strike          uint64    `json:"strike"`
	Premium         uint64    `json:"premium"`
	Amount          uint64    `json:"amount"`
	ExpiryTs        int64     `json:"expiry_ts"`
}

// OptionView is a committed snapshot of a covered call and its vault.
type OptionView struct {
	CoveredCall *domain.CoveredCall `json:"covered_call"`
	Vault       *domain.Vault       `json:"vault"`
	State       domain.OptionState  `json:"state"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validateCreate(in CreateInput, now time.Time) error {
	switch {
	case in.Seller == uuid.Nil:
		return fmt.Errorf("%w: seller is required", domain.ErrInvalidParameters)
	case in.Strike == 0:
		return fmt.Errorf("%w: strike must be positive", domain.ErrInvalidParameters)
	case in.Premium == 0:
		return fmt.Errorf("%w: premium must be positive", domain.ErrInvalidParameters)
	case in.Amount == 0:
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidParameters)
	case !validation.IsValidAmount(in.Strike), !validation.IsValidAmount(in.Premium), !validation.IsValidAmount(in.Amount):
		return fmt.Errorf("%w: strike, premium and amount must not exceed %d", domain.ErrInvalidParameters, validation.MaxAmount)
	case in.ExpiryTs <= now.Unix():
		return fmt.Errorf("%w: expiry must be in the future", domain.ErrInvalidParameters)
	case in.UnderlyingAsset == "" || in.QuoteAsset == "":
		return fmt.Errorf("%w: underlying and quote assets are required", domain.ErrInvalidParameters)
	case in.UnderlyingAsset == in.QuoteAsset:
		return fmt.Errorf("%w: underlying and quote assets must differ", domain.ErrInvalidParameters)
	case !validation.IsValidAsset(in.UnderlyingAsset) || !validation.IsValidAsset(in.QuoteAsset):
		return fmt.Errorf("%w: asset ids are at most %d bytes without whitespace", domain.ErrInvalidParameters, validation.MaxAssetLen)
	}
	return nil
}

// Create locks the seller's collateral into a new vault and records the
// unsold, unlisted covered call.
func (s *Service) Create(ctx context.Context, in CreateInput) (*OptionView, error) {
	now := s.now()
	if err := validateCreate(in, now); err != nil {
		return nil, err
	}
	id := domain.DeriveCoveredCallID(in.Seller, in.UnderlyingAsset, in.UID)

	var view *OptionView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.CoveredCall{}).Where("id = ?", id).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrAlreadyExists
		}

		if err := holdings.Debit(tx, in.Seller, in.UnderlyingAsset, in.Amount); err != nil {
			if errors.Is(err, holdings.ErrInsufficientBalance) {
				return domain.ErrInsufficientCollateral
			}
			return err
		}

		cc := &domain.CoveredCall{
			ID:              id,
			UID:             in.UID,
			Seller:          in.Seller,
			UnderlyingAsset: in.UnderlyingAsset,
			QuoteAsset:      in.QuoteAsset,
			Strike:          in.Strike,
			Premium:         in.Premium,
			Amount:          in.Amount,
			AskPrice:        in.Premium,
			ExpiryTs:        in.ExpiryTs,
			Version:         1,
		}
		if err := tx.Create(cc).Error; err != nil {
			return err
		}
		vault := &domain.Vault{
			VaultID:       domain.DeriveVaultID(id),
			CoveredCallID: id,
			Asset:         in.UnderlyingAsset,
			Balance:       in.Amount,
		}
		if err := tx.Create(vault).Error; err != nil {
			return err
		}

		seller := in.Seller
		if err := recordTx(tx, domain.TxCollateralLock, cc.UnderlyingAsset, &seller, nil, cc.Amount, id); err != nil {
			return err
		}
		if err := recordEvent(tx, cc, domain.EventCreated, in.Seller, map[string]interface{}{
			"uid":              cc.UID,
			"underlying_asset": cc.UnderlyingAsset,
			"quote_asset":      cc.QuoteAsset,
			"strike":           cc.Strike,
			"premium":          cc.Premium,
			"amount":           cc.Amount,
			"expiry_ts":        cc.ExpiryTs,
		}); err != nil {
			return err
		}
		view = &OptionView{CoveredCall: cc, Vault: vault, State: cc.State(now)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("covered_call", id.String()).Str("seller", in.Seller.String()).Uint64("amount", in.Amount).Msg("covered call created")
	s.cachePut(ctx, view)
	return view, nil
}

// ListForSale offers the option at ask. Only the current holder may list.
func (s *Service) ListForSale(ctx context.Context, id, caller uuid.UUID, ask uint64) (*OptionView, error) {
	return s.transition(ctx, id, func(cc *domain.CoveredCall, _ *domain.Vault, _ time.Time) (*effect, error) {
		if cc.Terminal() {
			return nil, domain.ErrOptionAlreadyExercised
		}
		if !validation.IsValidAmount(ask) {
			return nil, fmt.Errorf("%w: ask price must be between 1 and %d", domain.ErrInvalidParameters, validation.MaxAmount)
		}
		if caller != cc.Holder() {
			return nil, domain.ErrUnauthorized
		}
		cc.IsListed = true
		cc.AskPrice = ask
		return &effect{
			event: domain.EventListed,
			actor: caller,
			data:  map[string]interface{}{"ask_price": ask},
		}, nil
	})
}

// CancelListing withdraws an open listing. Collateral custody is untouched.
func (s *Service) CancelListing(ctx context.Context, id, caller uuid.UUID) (*OptionView, error) {
	return s.transition(ctx, id, func(cc *domain.CoveredCall, _ *domain.Vault, _ time.Time) (*effect, error) {
		if caller != cc.Holder() {
			return nil, domain.ErrUnauthorized
		}
		if cc.Terminal() {
			return nil, domain.ErrOptionAlreadyExercised
		}
		if !cc.IsListed {
			return nil, domain.ErrOptionNotListed
		}
		cc.IsListed = false
		return &effect{
			event: domain.EventListingCancelled,
			actor: caller,
			data:  map[string]interface{}{"ask_price": cc.AskPrice},
		}, nil
	})
}

// Buy transfers the long side to caller. The first sale of an unlisted
// option pays the creation premium; any listed sale pays the ask.
func (s *Service) Buy(ctx context.Context, id, caller uuid.UUID) (*OptionView, error) {
	return s.transition(ctx, id, func(cc *domain.CoveredCall, _ *domain.Vault, now time.Time) (*effect, error) {
		if cc.Terminal() {
			return nil, domain.ErrOptionAlreadyExercised
		}
		if !cc.IsListed && cc.Sold() {
			return nil, domain.ErrOptionNotListed
		}
		if cc.ExpiredAt(now) {
			return nil, domain.ErrOptionExpired
		}
		holder := cc.Holder()
		if caller == uuid.Nil || caller == holder {
			return nil, domain.ErrUnauthorized
		}
		price := cc.PurchasePrice()
		buyer := caller
		cc.Buyer = &buyer
		cc.IsListed = false
		return &effect{
			event: domain.EventPurchased,
			actor: caller,
			data: map[string]interface{}{
				"price":           price,
				"previous_holder": holder.String(),
			},
			apply: func(tx *gorm.DB) error {
				if err := holdings.Debit(tx, caller, cc.QuoteAsset, price); err != nil {
					if errors.Is(err, holdings.ErrInsufficientBalance) {
						return domain.ErrInsufficientFunds
					}
					return err
				}
				if err := holdings.Credit(tx, holder, cc.QuoteAsset, price); err != nil {
					return err
				}
				return recordTx(tx, domain.TxPremium, cc.QuoteAsset, &buyer, &holder, price, cc.ID)
			},
		}, nil
	})
}

// Exercise pays the strike to the seller and delivers the vault to the buyer.
func (s *Service) Exercise(ctx context.Context, id, caller uuid.UUID) (*OptionView, error) {
	return s.transition(ctx, id, func(cc *domain.CoveredCall, vault *domain.Vault, now time.Time) (*effect, error) {
		if cc.Buyer == nil || *cc.Buyer != caller {
			return nil, domain.ErrUnauthorized
		}
		if cc.Terminal() {
			return nil, domain.ErrOptionAlreadyExercised
		}
		if cc.ExpiredAt(now) {
			return nil, domain.ErrOptionExpired
		}
		buyer, seller := caller, cc.Seller
		cc.Exercised = true
		cc.BuyerExercised = true
		cc.IsListed = false
		released := settle(vault, buyer, now)
		return &effect{
			event: domain.EventExercised,
			actor: caller,
			data:  map[string]interface{}{"strike": cc.Strike, "collateral": released},
			apply: func(tx *gorm.DB) error {
				if err := holdings.Debit(tx, buyer, cc.QuoteAsset, cc.Strike); err != nil {
					if errors.Is(err, holdings.ErrInsufficientBalance) {
						return domain.ErrInsufficientFunds
					}
					return err
				}
				if err := holdings.Credit(tx, seller, cc.QuoteAsset, cc.Strike); err != nil {
					return err
				}
				if err := recordTx(tx, domain.TxStrike, cc.QuoteAsset, &buyer, &seller, cc.Strike, cc.ID); err != nil {
					return err
				}
				return release(tx, cc, vault, buyer, released)
			},
		}, nil
	})
}

// Reclaim returns the collateral to the seller. Allowed any time while
// unsold, and once expired when sold.
func (s *Service) Reclaim(ctx context.Context, id, caller uuid.UUID) (*OptionView, error) {
	return s.transition(ctx, id, func(cc *domain.CoveredCall, vault *domain.Vault, now time.Time) (*effect, error) {
		if caller != cc.Seller {
			return nil, domain.ErrUnauthorized
		}
		if cc.Terminal() {
			return nil, domain.ErrOptionAlreadyExercised
		}
		if cc.Sold() && !cc.ExpiredAt(now) {
			return nil, domain.ErrOptionNotExpired
		}
		seller := cc.Seller
		cc.Exercised = true
		cc.Cancelled = true
		cc.BuyerExercised = false
		cc.IsListed = false
		released := settle(vault, seller, now)
		return &effect{
			event: domain.EventReclaimed,
			actor: caller,
			data:  map[string]interface{}{"collateral": released, "sold": cc.Sold()},
			apply: func(tx *gorm.DB) error {
				return release(tx, cc, vault, seller, released)
			},
		}, nil
	})
}

// Get returns the committed snapshot. A cached snapshot is served only while
// its version matches the row; a cache that missed a write and an
// invalidation is read through.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OptionView, error) {
	db := s.DB.WithContext(ctx)
	if s.Cache != nil {
		if cc, vault, err := s.Cache.GetOption(ctx, id); err == nil {
			var current []int64
			if err := db.Model(&domain.CoveredCall{}).Where("id = ?", id).Pluck("version", &current).Error; err != nil {
				return nil, err
			}
			if len(current) == 1 && current[0] == cc.Version {
				return &OptionView{CoveredCall: cc, Vault: vault, State: cc.State(s.now())}, nil
			}
			log.Debug().Str("covered_call", id.String()).Int64("cached_version", cc.Version).Msg("stale option snapshot bypassed")
		}
	}
	cc, vault, err := load(db, id)
	if err != nil {
		return nil, err
	}
	view := &OptionView{CoveredCall: cc, Vault: vault, State: cc.State(s.now())}
	s.cachePut(ctx, view)
	return view, nil
}

// effect is what a guard function decided: the audit event plus the ledger
// movements to apply after the versioned row update.
type effect struct {
	event string
	actor uuid.UUID
	data  map[string]interface{}
	apply func(tx *gorm.DB) error
}

type guardFunc func(cc *domain.CoveredCall, vault *domain.Vault, now time.Time) (*effect, error)

// transition loads fresh state, runs guard, commits the row only if nobody
// else committed since the load, then applies the ledger side. A version
// conflict rolls everything back and re-runs guard on the newer state.
func (s *Service) transition(ctx context.Context, id uuid.UUID, guard guardFunc) (*OptionView, error) {
	for attempt := 1; ; attempt++ {
		view, err := s.attempt(ctx, id, guard)
		if errors.Is(err, errVersionConflict) && attempt < maxAttempts {
			log.Debug().Str("covered_call", id.String()).Int("attempt", attempt).Msg("version conflict, retrying")
			if hook := s.afterConflict; hook != nil {
				hook(attempt)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Info().Str("covered_call", id.String()).Str("state", string(view.State)).Int64("version", view.CoveredCall.Version).Msg("covered call transition committed")
		s.cachePut(ctx, view)
		return view, nil
	}
}

func (s *Service) attempt(ctx context.Context, id uuid.UUID, guard guardFunc) (*OptionView, error) {
	var view *OptionView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cc, vault, err := load(tx, id)
		if err != nil {
			return err
		}
		now := s.now()
		prev := cc.Version
		eff, err := guard(cc, vault, now)
		if err != nil {
			return err
		}
		cc.Version = prev + 1
		if s.beforeUpdate != nil {
			if err := s.beforeUpdate(tx, cc); err != nil {
				return err
			}
		}

		res := tx.Model(&domain.CoveredCall{}).
			Where("id = ? AND version = ?", cc.ID, prev).
			Updates(map[string]interface{}{
				"buyer":           cc.Buyer,
				"premium":         cc.Premium,
				"ask_price":       cc.AskPrice,
				"is_listed":       cc.IsListed,
				"exercised":       cc.Exercised,
				"buyer_exercised": cc.BuyerExercised,
				"cancelled":       cc.Cancelled,
				"version":         cc.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		if eff.apply != nil {
			if err := eff.apply(tx); err != nil {
				return err
			}
		}
		if err := recordEvent(tx, cc, eff.event, eff.actor, eff.data); err != nil {
			return err
		}
		if !vault.Conserved(cc.Amount) {
			return fmt.Errorf("vault %s out of balance: %d + %d != %d", vault.VaultID, vault.Balance, vault.PaidOut, cc.Amount)
		}
		view = &OptionView{CoveredCall: cc, Vault: vault, State: cc.State(now)}
		return nil
	})
	return view, err
}

func load(db *gorm.DB, id uuid.UUID) (*domain.CoveredCall, *domain.Vault, error) {
	var cc domain.CoveredCall
	if err := db.Where("id = ?", id).First(&cc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}
	var vault domain.Vault
	if err := db.Where("covered_call_id = ?", id).First(&vault).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("vault for %s: %w", id, domain.ErrNotFound)
		}
		return nil, nil, err
	}
	return &cc, &vault, nil
}

// settle empties the vault in memory and returns the released amount.
func settle(vault *domain.Vault, to uuid.UUID, now time.Time) uint64 {
	released := vault.Balance
	at := now.UTC()
	vault.PaidOut += released
	vault.Balance = 0
	vault.SettledTo = &to
	vault.SettledAt = &at
	return released
}

// release persists the emptied vault and credits its collateral to.
func release(tx *gorm.DB, cc *domain.CoveredCall, vault *domain.Vault, to uuid.UUID, amount uint64) error {
	res := tx.Model(&domain.Vault{}).
		Where("vault_id = ? AND paid_out = 0", vault.VaultID).
		Updates(map[string]interface{}{
			"balance":    vault.Balance,
			"paid_out":   vault.PaidOut,
			"settled_to": vault.SettledTo,
			"settled_at": vault.SettledAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}
	if err := holdings.Credit(tx, to, cc.UnderlyingAsset, amount); err != nil {
		return err
	}
	return recordTx(tx, domain.TxCollateralRelease, cc.UnderlyingAsset, nil, &to, amount, cc.ID)
}

func recordTx(tx *gorm.DB, kind, asset string, from, to *uuid.UUID, amount uint64, ccID uuid.UUID) error {
	return tx.Create(&domain.Transaction{
		Type:          kind,
		Asset:         asset,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		CoveredCallID: &ccID,
	}).Error
}

func recordEvent(tx *gorm.DB, cc *domain.CoveredCall, kind string, actor uuid.UUID, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.Create(&domain.OptionEvent{
		CoveredCallID: cc.ID,
		EventType:     kind,
		Actor:         actor,
		Version:       cc.Version,
		EventData:     datatypes.JSON(raw),
	}).Error
}

func (s *Service) cachePut(ctx context.Context, view *OptionView) {
	if s.Cache == nil || view == nil {
		return
	}
	id := view.CoveredCall.ID
	if err := s.Cache.PutOption(ctx, view.CoveredCall, view.Vault); err != nil {
		log.Warn().Err(err).Str("covered_call", id.String()).Msg("option snapshot cache write failed")
		// an older snapshot must not outlive a failed write
		if err := s.Cache.Invalidate(ctx, id); err != nil {
			log.Warn().Err(err).Str("covered_call", id.String()).Msg("option snapshot invalidate failed")
		}
	}
}
