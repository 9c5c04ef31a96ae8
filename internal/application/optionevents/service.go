package optionevents

import (
	"context"
	"fmt"

	"xstock-options/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// GetOptionEvents returns the audit trail of one covered call in commit order.
func (s *Service) GetOptionEvents(ctx context.Context, coveredCallID uuid.UUID) ([]domain.OptionEvent, error) {
	if coveredCallID == uuid.Nil {
		return nil, fmt.Errorf("%w: covered call id is required", domain.ErrInvalidParameters)
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.CoveredCall{}).Where("id = ?", coveredCallID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNotFound
	}

	events := []domain.OptionEvent{}
	if err := s.DB.WithContext(ctx).Where("covered_call_id = ?", coveredCallID).Order("version ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetAccountEvents returns events an account performed, newest first.
func (s *Service) GetAccountEvents(ctx context.Context, accountID uuid.UUID) ([]domain.OptionEvent, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("%w: account id is required", domain.ErrInvalidParameters)
	}
	events := []domain.OptionEvent{}
	if err := s.DB.WithContext(ctx).Where("actor = ?", accountID).Order(`"createdAt" DESC`).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
