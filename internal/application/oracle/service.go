package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultHistoryLimit caps how many samples History returns when the caller
// passes no limit.
const DefaultHistoryLimit = 500

// ErrNoPrice is returned when a feed exists but has never been published. It
// matches domain.ErrNotFound.
var ErrNoPrice = fmt.Errorf("%w: price feed has no published price", domain.ErrNotFound)

// PriceCache holds the latest published feed for fast reads.
type PriceCache interface {
	SetFeed(ctx context.Context, feed *domain.PriceFeed) error
	GetFeed(ctx context.Context, asset string) (*domain.PriceFeed, error)
}

// Service manages per-asset price feeds and their history.
type Service struct {
	DB    *gorm.DB
	Cache PriceCache
	Now   func() time.Time
	// StaleAfter marks feeds not updated within the window as stale on read.
	// Zero disables the check.
	StaleAfter time.Duration
}

type CreateFeedInput struct {
	Asset     string    `json:"asset"`
	Authority uuid.UUID `json:"authority"`
	Decimals  int32     `json:"decimals"`
}

type UpdatePriceInput struct {
	Price  uint64              `json:"price"`
	Conf   uint64              `json:"conf"`
	Status domain.OracleStatus `json:"status"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateFeed registers an asset with an unpublished price and the given
// publishing authority.
func (s *Service) CreateFeed(ctx context.Context, in CreateFeedInput) (*domain.PriceFeed, error) {
	if !validation.IsValidAsset(in.Asset) || in.Authority == uuid.Nil {
		return nil, fmt.Errorf("%w: asset and authority are required", domain.ErrInvalidParameters)
	}
	if in.Decimals < 0 || in.Decimals > 18 {
		return nil, fmt.Errorf("%w: decimals must be within 0..18", domain.ErrInvalidParameters)
	}
	feed := &domain.PriceFeed{
		Asset:     in.Asset,
		Authority: in.Authority,
		Decimals:  in.Decimals,
		Status:    domain.OracleUnknown,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.PriceFeed{}).Where("asset = ?", in.Asset).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrAlreadyExists
		}
		return tx.Create(feed).Error
	})
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// UpdatePrice publishes a new price. Only the feed authority may publish;
// every publish is also appended to the history.
func (s *Service) UpdatePrice(ctx context.Context, asset string, caller uuid.UUID, in UpdatePriceInput) (*domain.PriceFeed, error) {
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown oracle status %q", domain.ErrInvalidParameters, in.Status)
	}
	ts := s.now().Unix()
	var feed domain.PriceFeed
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset = ?", asset).First(&feed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if feed.Authority != caller {
			return domain.ErrUnauthorized
		}
		feed.Price = in.Price
		feed.Conf = in.Conf
		feed.Status = in.Status
		feed.LastUpdated = ts
		if err := tx.Model(&domain.PriceFeed{}).Where("asset = ?", asset).Updates(map[string]interface{}{
			"price":        feed.Price,
			"conf":         feed.Conf,
			"status":       feed.Status,
			"last_updated": feed.LastUpdated,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&domain.PriceSample{
			Asset:     asset,
			Price:     in.Price,
			Conf:      in.Conf,
			Status:    in.Status,
			Timestamp: ts,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("asset", asset).Uint64("price", feed.Price).Uint64("conf", feed.Conf).Str("status", string(feed.Status)).Int64("timestamp", ts).Msg("price update")
	if s.Cache != nil {
		if err := s.Cache.SetFeed(ctx, &feed); err != nil {
			log.Warn().Err(err).Str("asset", asset).Msg("price cache write failed")
		}
	}
	return &feed, nil
}

// GetFeed returns the latest feed, preferring the cache.
func (s *Service) GetFeed(ctx context.Context, asset string) (*domain.PriceFeed, error) {
	if s.Cache != nil {
		if feed, err := s.Cache.GetFeed(ctx, asset); err == nil {
			return s.markStale(feed), nil
		}
	}
	var feed domain.PriceFeed
	if err := s.DB.WithContext(ctx).Where("asset = ?", asset).First(&feed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s.markStale(&feed), nil
}

func (s *Service) markStale(feed *domain.PriceFeed) *domain.PriceFeed {
	if s.StaleAfter > 0 && feed.LastUpdated > 0 &&
		s.now().Sub(time.Unix(feed.LastUpdated, 0)) > s.StaleAfter {
		feed.Status = domain.OracleStale
	}
	return feed
}

// Spot returns the latest price scaled to a float.
func (s *Service) Spot(ctx context.Context, asset string) (float64, error) {
	feed, err := s.GetFeed(ctx, asset)
	if err != nil {
		return 0, err
	}
	if feed.LastUpdated == 0 || feed.Price == 0 {
		return 0, ErrNoPrice
	}
	return feed.Spot(), nil
}

// History returns up to limit most recent samples, oldest first.
func (s *Service) History(ctx context.Context, asset string, limit int) ([]domain.PriceSample, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	samples := []domain.PriceSample{}
	if err := s.DB.WithContext(ctx).
		Where("asset = ?", asset).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&samples).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Closes returns the history as scaled prices for volatility estimation.
func (s *Service) Closes(ctx context.Context, asset string, limit int) ([]float64, error) {
	feed, err := s.GetFeed(ctx, asset)
	if err != nil {
		return nil, err
	}
	samples, err := s.History(ctx, asset, limit)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, 0, len(samples))
	for _, smp := range samples {
		p := domain.PriceFeed{Price: smp.Price, Decimals: feed.Decimals}
		prices = append(prices, p.Spot())
	}
	return prices, nil
}
