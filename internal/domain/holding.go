package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Holding is one account's balance of one asset, in base units.
type Holding struct {
	HoldingID uuid.UUID `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_holding_account_asset" json:"account_id"`
	Asset     string    `gorm:"column:asset;type:varchar(32);not null;uniqueIndex:idx_holding_account_asset" json:"asset"`
	Balance   uint64    `gorm:"column:balance;not null" json:"balance"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Holding) TableName() string {
	return "Holdings"
}

// BeforeCreate: never insert zero UUID for primary key; generate random when not set.
func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}
