package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RFQStatus is where a request for quote stands. Only Open moves.
type RFQStatus string

const (
	RFQOpen      RFQStatus = "open"
	RFQFilled    RFQStatus = "filled"
	RFQCancelled RFQStatus = "cancelled"
	RFQExpired   RFQStatus = "expired"
)

// ParseRFQStatus accepts the lower-case status names.
func ParseRFQStatus(s string) (RFQStatus, bool) {
	switch st := RFQStatus(s); st {
	case RFQOpen, RFQFilled, RFQCancelled, RFQExpired:
		return st, true
	}
	return "", false
}

// Settlement is how an RFQ's option settles at expiry.
type Settlement string

const (
	SettlementCash     Settlement = "cash"
	SettlementPhysical Settlement = "physical"
)

// RFQ asks registered makers to price an option the creator wants to write.
// A maker fills by paying at least PremiumFloor before ValidUntilTs.
// OraclePrice and OracleTs snapshot the underlying's feed at creation and
// are zero when no feed was published.
type RFQ struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Creator         uuid.UUID  `gorm:"column:creator;type:uuid;not null;index" json:"creator"`
	UnderlyingAsset string     `gorm:"column:underlying_asset;type:varchar(32);not null;index" json:"underlying_asset"`
	QuoteAsset      string     `gorm:"column:quote_asset;type:varchar(32);not null" json:"quote_asset"`
	OptionType      string     `gorm:"column:option_type;type:varchar(8);not null" json:"option_type"`
	ExpiryTs        int64      `gorm:"column:expiry_ts;not null" json:"expiry_ts"`
	Strike          uint64     `gorm:"column:strike;not null" json:"strike"`
	Size            uint64     `gorm:"column:size;not null" json:"size"`
	PremiumFloor    uint64     `gorm:"column:premium_floor;not null" json:"premium_floor"`
	ValidUntilTs    int64      `gorm:"column:valid_until_ts;not null" json:"valid_until_ts"`
	Settlement      Settlement `gorm:"column:settlement;type:varchar(10);not null" json:"settlement"`
	OraclePrice     uint64     `gorm:"column:oracle_price;not null" json:"oracle_price"`
	OracleTs        int64      `gorm:"column:oracle_ts;not null" json:"oracle_ts"`
	Status          RFQStatus  `gorm:"column:status;type:varchar(10);not null;index" json:"status"`
	FilledBy        *uuid.UUID `gorm:"column:filled_by;type:uuid;index" json:"filled_by"`
	FilledPremium   uint64     `gorm:"column:filled_premium;not null" json:"filled_premium"`
	CreatedAt       time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (RFQ) TableName() string {
	return "RFQs"
}

func (r *RFQ) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// QuoteWindowClosed reports whether fills are no longer accepted at now.
func (r *RFQ) QuoteWindowClosed(now time.Time) bool {
	return now.Unix() >= r.ValidUntilTs
}

// Maker is an account allowed to fill RFQs, with its running fill totals.
type Maker struct {
	AccountID        uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	IsActive         bool      `gorm:"column:is_active;not null" json:"is_active"`
	TotalFills       uint64    `gorm:"column:total_fills;not null" json:"total_fills"`
	TotalPremiumPaid uint64    `gorm:"column:total_premium_paid;not null" json:"total_premium_paid"`
	CreatedAt        time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Maker) TableName() string {
	return "Makers"
}
