package marketplace

import (
	"context"
	"sort"
	"time"

	"xstock-options/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Filter narrows a scan. Zero values match everything.
type Filter struct {
	Asset       string
	Participant uuid.UUID
	State       domain.OptionState
}

// Entry is one covered call with its derived state at scan time.
type Entry struct {
	*domain.CoveredCall
	State domain.OptionState `json:"state"`
}

// Service encapsulates marketplace discovery. Options are found by scanning
// every covered call and filtering in memory; there is no secondary index.
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

func (f Filter) match(c *domain.CoveredCall, st domain.OptionState) bool {
	if f.Asset != "" && c.UnderlyingAsset != f.Asset {
		return false
	}
	if f.Participant != uuid.Nil && c.Seller != f.Participant && (c.Buyer == nil || *c.Buyer != f.Participant) {
		return false
	}
	if f.State != "" && st != f.State {
		return false
	}
	return true
}

// Scan returns every covered call matching f, newest first.
func (s *Service) Scan(ctx context.Context, f Filter) ([]Entry, error) {
	var all []domain.CoveredCall
	if err := s.DB.WithContext(ctx).Order(`"createdAt" DESC`).Find(&all).Error; err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Entry, 0, len(all))
	for i := range all {
		c := &all[i]
		st := c.State(now)
		if f.match(c, st) {
			out = append(out, Entry{CoveredCall: c, State: st})
		}
	}
	return out, nil
}

// Listed returns buyable options: listed or never sold, unexpired and not
// terminal, cheapest first.
func (s *Service) Listed(ctx context.Context, asset string) ([]Entry, error) {
	all, err := s.Scan(ctx, Filter{Asset: asset})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Terminal() || e.ExpiredAt(now) {
			continue
		}
		if e.State == domain.StateListed || e.State == domain.StateCreated {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PurchasePrice() < out[j].PurchasePrice()
	})
	return out, nil
}
