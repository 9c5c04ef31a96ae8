package domain

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// OptionNamespace scopes deterministic covered-call and vault ids.
var OptionNamespace = uuid.MustParse("5b0f7c64-3c8e-4f3a-9d0e-2a61c3f1e8b4")

// OptionState is the derived lifecycle position of a CoveredCall.
type OptionState string

const (
	StateCreated     OptionState = "created"
	StateListed      OptionState = "listed"
	StateSoldOpen    OptionState = "sold_open"
	StateSoldExpired OptionState = "sold_expired"
	StateExercised   OptionState = "exercised"
	StateReclaimed   OptionState = "reclaimed"
)

// ParseOptionState validates a state filter value.
func ParseOptionState(s string) (OptionState, bool) {
	switch st := OptionState(s); st {
	case StateCreated, StateListed, StateSoldOpen, StateSoldExpired, StateExercised, StateReclaimed:
		return st, true
	}
	return "", false
}

// CoveredCall is one option instance. Strike, Amount and the identity
// fields never change after creation.
type CoveredCall struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UID             uint64     `gorm:"column:uid;not null" json:"uid"`
	Seller          uuid.UUID  `gorm:"column:seller;type:uuid;not null;index" json:"seller"`
	Buyer           *uuid.UUID `gorm:"column:buyer;type:uuid;index" json:"buyer"`
	UnderlyingAsset string     `gorm:"column:underlying_asset;type:varchar(32);not null;index" json:"underlying_asset"`
	QuoteAsset      string     `gorm:"column:quote_asset;type:varchar(32);not null" json:"quote_asset"`
	Strike          uint64     `gorm:"column:strike;not null" json:"strike"`
	Premium         uint64     `gorm:"column:premium;not null" json:"premium"`
	Amount          uint64     `gorm:"column:amount;not null" json:"amount"`
	AskPrice        uint64     `gorm:"column:ask_price;not null" json:"ask_price"`
	ExpiryTs        int64      `gorm:"column:expiry_ts;not null" json:"expiry_ts"`
	IsListed        bool       `gorm:"column:is_listed;not null" json:"is_listed"`
	Exercised       bool       `gorm:"column:exercised;not null" json:"exercised"`
	BuyerExercised  bool       `gorm:"column:buyer_exercised;not null" json:"buyer_exercised"`
	Cancelled       bool       `gorm:"column:cancelled;not null" json:"cancelled"`
	Version         int64      `gorm:"column:version;not null" json:"version"`
	CreatedAt       time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (CoveredCall) TableName() string {
	return "CoveredCalls"
}

// DeriveCoveredCallID hashes seller, underlying asset and the seller's
// sequence number into the contract id.
func DeriveCoveredCallID(seller uuid.UUID, underlying string, uid uint64) uuid.UUID {
	seed := make([]byte, 0, len("covered_call")+16+len(underlying)+8)
	seed = append(seed, "covered_call"...)
	seed = append(seed, seller[:]...)
	seed = append(seed, underlying...)
	seed = binary.LittleEndian.AppendUint64(seed, uid)
	return uuid.NewSHA1(OptionNamespace, seed)
}

// Holder is the account that currently owns the long side: the buyer once
// sold, the seller before that.
func (c *CoveredCall) Holder() uuid.UUID {
	if c.Buyer != nil {
		return *c.Buyer
	}
	return c.Seller
}

func (c *CoveredCall) Sold() bool { return c.Buyer != nil }

// Terminal reports whether exercise or reclaim has committed.
func (c *CoveredCall) Terminal() bool { return c.Exercised }

// Expiry is ExpiryTs as a time.
func (c *CoveredCall) Expiry() time.Time { return time.Unix(c.ExpiryTs, 0) }

// ExpiredAt reports whether the exercise window has closed at now.
func (c *CoveredCall) ExpiredAt(now time.Time) bool {
	return now.Unix() >= c.ExpiryTs
}

// PurchasePrice is what the next buyer pays: the ask while listed, the
// creation premium for an unlisted first sale.
func (c *CoveredCall) PurchasePrice() uint64 {
	if c.IsListed {
		return c.AskPrice
	}
	return c.Premium
}

// State derives the lifecycle position at now.
func (c *CoveredCall) State(now time.Time) OptionState {
	switch {
	case c.Exercised && c.BuyerExercised:
		return StateExercised
	case c.Exercised:
		return StateReclaimed
	case c.IsListed:
		return StateListed
	case !c.Sold():
		return StateCreated
	case c.ExpiredAt(now):
		return StateSoldExpired
	}
	return StateSoldOpen
}
