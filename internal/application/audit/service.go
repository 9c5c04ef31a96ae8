// Package audit keeps the event trail of RFQs, makers and share vaults.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"xstock-options/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record appends one event inside tx.
func Record(tx *gorm.DB, subject string, subjectID uuid.UUID, kind string, actor uuid.UUID, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.Create(&domain.AuditEvent{
		Subject:   subject,
		SubjectID: subjectID,
		EventType: kind,
		Actor:     actor,
		EventData: datatypes.JSON(raw),
	}).Error
}

type Service struct {
	DB *gorm.DB
}

// Events returns the trail of one subject, oldest first.
func (s *Service) Events(ctx context.Context, subject string, subjectID uuid.UUID) ([]domain.AuditEvent, error) {
	if subjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: subject id is required", domain.ErrInvalidParameters)
	}
	events := []domain.AuditEvent{}
	if err := s.DB.WithContext(ctx).
		Where("subject = ? AND subject_id = ?", subject, subjectID).
		Order(`"createdAt" ASC`).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
