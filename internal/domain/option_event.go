package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventCreated          = "CREATED"
	EventListed           = "LISTED"
	EventListingCancelled = "LISTING_CANCELLED"
	EventPurchased        = "PURCHASED"
	EventExercised        = "EXERCISED"
	EventReclaimed        = "RECLAIMED"
)

// OptionEvent is the audit row written alongside every committed transition.
type OptionEvent struct {
	EventID       uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	CoveredCallID uuid.UUID      `gorm:"column:covered_call_id;type:uuid;not null;index" json:"covered_call_id"`
	EventType     string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	Actor         uuid.UUID      `gorm:"column:actor;type:uuid;not null;index" json:"actor"`
	Version       int64          `gorm:"column:version;not null" json:"version"`
	EventData     datatypes.JSON `gorm:"column:event_data;not null" json:"event_data"`
	CreatedAt     time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (OptionEvent) TableName() string {
	return "OptionEvents"
}

func (e *OptionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
