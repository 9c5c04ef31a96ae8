// Package rfq runs requests for quote: a writer posts the option it wants to
// sell, registered makers compete to fill it at or above the floor premium.
package rfq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xstock-options/internal/application/audit"
	"xstock-options/internal/application/holdings"
	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/validation"
	"xstock-options/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultListLimit caps List when the filter carries no limit.
const DefaultListLimit = 100

// FeedSource is where Create snapshots the underlying's price.
type FeedSource interface {
	GetFeed(ctx context.Context, asset string) (*domain.PriceFeed, error)
}

type Service struct {
	DB     *gorm.DB
	Oracle FeedSource
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateInput struct {
	Creator         uuid.UUID         `json:"-"`
	UnderlyingAsset string            `json:"underlying_asset"`
	QuoteAsset      string            `json:"quote_asset"`
	OptionType      string            `json:"option_type"`
	ExpiryTs        int64             `json:"expiry_ts"`
	Strike          uint64            `json:"strike"`
	Size            uint64            `json:"size"`
	PremiumFloor    uint64            `json:"premium_floor"`
	ValidUntilTs    int64             `json:"valid_until_ts"`
	Settlement      domain.Settlement `json:"settlement"`
}

func (in *CreateInput) normalize(now time.Time) error {
	if in.Creator == uuid.Nil {
		return fmt.Errorf("%w: creator is required", domain.ErrInvalidParameters)
	}
	if !validation.IsValidAsset(in.UnderlyingAsset) || !validation.IsValidAsset(in.QuoteAsset) {
		return fmt.Errorf("%w: underlying and quote assets are required", domain.ErrInvalidParameters)
	}
	if in.UnderlyingAsset == in.QuoteAsset {
		return fmt.Errorf("%w: underlying and quote assets must differ", domain.ErrInvalidParameters)
	}
	if in.OptionType == "" {
		in.OptionType = string(pricing.Call)
	}
	typ, err := pricing.ParseOptionType(in.OptionType)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err)
	}
	in.OptionType = string(typ)
	switch in.Settlement {
	case "":
		in.Settlement = domain.SettlementPhysical
	case domain.SettlementCash, domain.SettlementPhysical:
	default:
		return fmt.Errorf("%w: settlement must be cash or physical", domain.ErrInvalidParameters)
	}
	if !validation.IsValidAmount(in.Strike) || !validation.IsValidAmount(in.Size) {
		return fmt.Errorf("%w: strike and size must be between 1 and %d", domain.ErrInvalidParameters, validation.MaxAmount)
	}
	if in.PremiumFloor > validation.MaxAmount {
		return fmt.Errorf("%w: premium floor must not exceed %d", domain.ErrInvalidParameters, validation.MaxAmount)
	}
	if in.ValidUntilTs <= now.Unix() || in.ExpiryTs <= now.Unix() {
		return fmt.Errorf("%w: quote window and expiry must be in the future", domain.ErrInvalidParameters)
	}
	if in.ValidUntilTs > in.ExpiryTs {
		return fmt.Errorf("%w: quote window must close before expiry", domain.ErrInvalidParameters)
	}
	return nil
}

// Create opens an RFQ and snapshots the underlying's latest published price.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.RFQ, error) {
	now := s.now()
	if err := in.normalize(now); err != nil {
		return nil, err
	}
	r := &domain.RFQ{
		Creator:         in.Creator,
		UnderlyingAsset: in.UnderlyingAsset,
		QuoteAsset:      in.QuoteAsset,
		OptionType:      in.OptionType,
		ExpiryTs:        in.ExpiryTs,
		Strike:          in.Strike,
		Size:            in.Size,
		PremiumFloor:    in.PremiumFloor,
		ValidUntilTs:    in.ValidUntilTs,
		Settlement:      in.Settlement,
		Status:          domain.RFQOpen,
	}
	if s.Oracle != nil {
		feed, err := s.Oracle.GetFeed(ctx, in.UnderlyingAsset)
		switch {
		case err == nil:
			r.OraclePrice = feed.Price
			r.OracleTs = feed.LastUpdated
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return audit.Record(tx, domain.SubjectRFQ, r.ID, domain.EventRFQCreated, in.Creator, map[string]interface{}{
			"underlying_asset": r.UnderlyingAsset,
			"quote_asset":      r.QuoteAsset,
			"option_type":      r.OptionType,
			"strike":           r.Strike,
			"size":             r.Size,
			"premium_floor":    r.PremiumFloor,
			"valid_until_ts":   r.ValidUntilTs,
			"oracle_price":     r.OraclePrice,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("rfq", r.ID.String()).Str("creator", in.Creator.String()).Str("underlying", r.UnderlyingAsset).Msg("rfq opened")
	return r, nil
}

// Fill pays premium from maker to the creator and closes the RFQ. Checks run
// in order: open, inside the quote window, active maker, floor.
func (s *Service) Fill(ctx context.Context, id, maker uuid.UUID, premium uint64) (*domain.RFQ, error) {
	if !validation.IsValidAmount(premium) {
		return nil, fmt.Errorf("%w: premium must be between 1 and %d", domain.ErrInvalidParameters, validation.MaxAmount)
	}
	now := s.now()
	var out *domain.RFQ
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := load(tx, id)
		if err != nil {
			return err
		}
		if r.Status != domain.RFQOpen {
			return domain.ErrRFQNotOpen
		}
		if r.QuoteWindowClosed(now) {
			return domain.ErrRFQExpired
		}
		var m domain.Maker
		if err := tx.Where("account_id = ?", maker).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMakerNotActive
			}
			return err
		}
		if !m.IsActive {
			return domain.ErrMakerNotActive
		}
		if maker == r.Creator {
			return domain.ErrUnauthorized
		}
		if premium < r.PremiumFloor {
			return domain.ErrPremiumBelowFloor
		}

		filledBy := maker
		if err := closeOpen(tx, r, map[string]interface{}{
			"status":         domain.RFQFilled,
			"filled_by":      &filledBy,
			"filled_premium": premium,
		}); err != nil {
			return err
		}
		r.Status, r.FilledBy, r.FilledPremium = domain.RFQFilled, &filledBy, premium

		if err := holdings.Debit(tx, maker, r.QuoteAsset, premium); err != nil {
			if errors.Is(err, holdings.ErrInsufficientBalance) {
				return domain.ErrInsufficientFunds
			}
			return err
		}
		if err := holdings.Credit(tx, r.Creator, r.QuoteAsset, premium); err != nil {
			return err
		}
		stats := tx.Model(&domain.Maker{}).
			Where("account_id = ? AND total_premium_paid <= ?", maker, validation.MaxAmount-premium).
			Updates(map[string]interface{}{
				"total_fills":        gorm.Expr("total_fills + 1"),
				"total_premium_paid": gorm.Expr("total_premium_paid + ?", premium),
			})
		if stats.Error != nil {
			return stats.Error
		}
		if stats.RowsAffected == 0 {
			return domain.ErrBalanceOverflow
		}
		creator, rid := r.Creator, r.ID
		if err := tx.Create(&domain.Transaction{
			Type:          domain.TxRFQPremium,
			Asset:         r.QuoteAsset,
			FromAccountID: &filledBy,
			ToAccountID:   &creator,
			Amount:        premium,
			ReferenceID:   &rid,
		}).Error; err != nil {
			return err
		}
		if err := audit.Record(tx, domain.SubjectRFQ, r.ID, domain.EventRFQFilled, maker, map[string]interface{}{
			"premium": premium,
		}); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("rfq", id.String()).Str("maker", maker.String()).Uint64("premium", premium).Msg("rfq filled")
	return out, nil
}

// Cancel closes an open RFQ on its creator's request.
func (s *Service) Cancel(ctx context.Context, id, caller uuid.UUID) (*domain.RFQ, error) {
	return s.finish(ctx, id, caller, domain.RFQCancelled, domain.EventRFQCancelled, func(r *domain.RFQ, _ time.Time) error {
		if caller != r.Creator {
			return domain.ErrUnauthorized
		}
		return nil
	})
}

// AdminCancel closes any open RFQ. The audit actor is the nil account.
func (s *Service) AdminCancel(ctx context.Context, id uuid.UUID) (*domain.RFQ, error) {
	return s.finish(ctx, id, uuid.Nil, domain.RFQCancelled, domain.EventRFQCancelled, nil)
}

// Expire closes an open RFQ whose quote window has passed. Anyone may call it.
func (s *Service) Expire(ctx context.Context, id, caller uuid.UUID) (*domain.RFQ, error) {
	return s.finish(ctx, id, caller, domain.RFQExpired, domain.EventRFQExpired, func(r *domain.RFQ, now time.Time) error {
		if r.Status != domain.RFQOpen {
			return domain.ErrRFQNotOpen
		}
		if !r.QuoteWindowClosed(now) {
			return domain.ErrRFQNotExpired
		}
		return nil
	})
}

func (s *Service) finish(ctx context.Context, id, actor uuid.UUID, to domain.RFQStatus, event string, guard func(r *domain.RFQ, now time.Time) error) (*domain.RFQ, error) {
	now := s.now()
	var out *domain.RFQ
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := load(tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(r, now); err != nil {
				return err
			}
		}
		if r.Status != domain.RFQOpen {
			return domain.ErrRFQNotOpen
		}
		if err := closeOpen(tx, r, map[string]interface{}{"status": to}); err != nil {
			return err
		}
		r.Status = to
		if err := audit.Record(tx, domain.SubjectRFQ, r.ID, event, actor, nil); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("rfq", id.String()).Str("status", string(to)).Msg("rfq closed")
	return out, nil
}

// closeOpen moves r out of Open only if nobody else did since it was loaded.
func closeOpen(tx *gorm.DB, r *domain.RFQ, fields map[string]interface{}) error {
	res := tx.Model(&domain.RFQ{}).Where("id = ? AND status = ?", r.ID, domain.RFQOpen).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRFQNotOpen
	}
	return nil
}

func load(db *gorm.DB, id uuid.UUID) (*domain.RFQ, error) {
	var r domain.RFQ
	if err := db.Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Get returns one RFQ.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.RFQ, error) {
	return load(s.DB.WithContext(ctx), id)
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Status          domain.RFQStatus
	UnderlyingAsset string
	Creator         uuid.UUID
	Limit           int
}

// List returns matching RFQs, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]domain.RFQ, error) {
	q := s.DB.WithContext(ctx).Model(&domain.RFQ{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UnderlyingAsset != "" {
		q = q.Where("underlying_asset = ?", f.UnderlyingAsset)
	}
	if f.Creator != uuid.Nil {
		q = q.Where("creator = ?", f.Creator)
	}
	limit := f.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	out := []domain.RFQ{}
	if err := q.Order(`"createdAt" DESC`).Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AddMaker registers account as an active maker, reactivating a
// deactivated one.
func (s *Service) AddMaker(ctx context.Context, account uuid.UUID) (*domain.Maker, error) {
	if account == uuid.Nil {
		return nil, fmt.Errorf("%w: account_id is required", domain.ErrInvalidParameters)
	}
	var m domain.Maker
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Account{}).Where("account_id = ?", account).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		err := tx.Where("account_id = ?", account).First(&m).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = domain.Maker{AccountID: account, IsActive: true}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case m.IsActive:
			return domain.ErrAlreadyExists
		default:
			if err := tx.Model(&m).Update("is_active", true).Error; err != nil {
				return err
			}
			m.IsActive = true
		}
		return audit.Record(tx, domain.SubjectMaker, account, domain.EventMakerAdded, uuid.Nil, nil)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("maker", account.String()).Msg("rfq maker activated")
	return &m, nil
}

// DeactivateMaker stops account from filling. Its totals are kept.
func (s *Service) DeactivateMaker(ctx context.Context, account uuid.UUID) (*domain.Maker, error) {
	var m domain.Maker
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if err := tx.Model(&m).Update("is_active", false).Error; err != nil {
			return err
		}
		m.IsActive = false
		return audit.Record(tx, domain.SubjectMaker, account, domain.EventMakerDeactivated, uuid.Nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMaker returns a maker's status and totals.
func (s *Service) GetMaker(ctx context.Context, account uuid.UUID) (*domain.Maker, error) {
	var m domain.Maker
	if err := s.DB.WithContext(ctx).Where("account_id = ?", account).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
