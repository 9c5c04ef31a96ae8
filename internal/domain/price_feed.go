package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// OracleStatus is the publisher's confidence in a price.
type OracleStatus string

const (
	OracleUnknown  OracleStatus = "unknown"
	OracleOk       OracleStatus = "ok"
	OracleDegraded OracleStatus = "degraded"
	OracleDisputed OracleStatus = "disputed"
	OracleStale    OracleStatus = "stale"
)

func (s OracleStatus) Valid() bool {
	switch s {
	case OracleUnknown, OracleOk, OracleDegraded, OracleDisputed, OracleStale:
		return true
	}
	return false
}

// PriceFeed is the latest published price for one asset. Only Authority may
// update it.
type PriceFeed struct {
	Asset       string       `gorm:"column:asset;type:varchar(32);primaryKey" json:"asset"`
	Authority   uuid.UUID    `gorm:"column:authority;type:uuid;not null" json:"authority"`
	Decimals    int32        `gorm:"column:decimals;not null" json:"decimals"`
	Price       uint64       `gorm:"column:price;not null" json:"price"`
	Conf        uint64       `gorm:"column:conf;not null" json:"conf"`
	Status      OracleStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	LastUpdated int64        `gorm:"column:last_updated;not null" json:"last_updated"`
	CreatedAt   time.Time    `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PriceFeed) TableName() string {
	return "PriceFeeds"
}

// Spot is Price scaled by Decimals.
func (f *PriceFeed) Spot() float64 {
	return float64(f.Price) / math.Pow10(int(f.Decimals))
}

// PriceSample is one historical update of a feed, oldest first by Timestamp.
type PriceSample struct {
	ID        uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Asset     string       `gorm:"column:asset;type:varchar(32);not null;index:idx_sample_asset_ts" json:"asset"`
	Price     uint64       `gorm:"column:price;not null" json:"price"`
	Conf      uint64       `gorm:"column:conf;not null" json:"conf"`
	Status    OracleStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Timestamp int64        `gorm:"column:timestamp;not null;index:idx_sample_asset_ts" json:"timestamp"`
}

func (PriceSample) TableName() string {
	return "PriceSamples"
}
