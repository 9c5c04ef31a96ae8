package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vault escrows one covered call's collateral. Balance starts at the
// contract amount and is paid out exactly once.
type Vault struct {
	VaultID       uuid.UUID  `gorm:"column:vault_id;type:uuid;primaryKey" json:"vault_id"`
	CoveredCallID uuid.UUID  `gorm:"column:covered_call_id;type:uuid;not null;uniqueIndex" json:"covered_call_id"`
	Asset         string     `gorm:"column:asset;type:varchar(32);not null" json:"asset"`
	Balance       uint64     `gorm:"column:balance;not null" json:"balance"`
	PaidOut       uint64     `gorm:"column:paid_out;not null" json:"paid_out"`
	SettledTo     *uuid.UUID `gorm:"column:settled_to;type:uuid" json:"settled_to"`
	SettledAt     *time.Time `gorm:"column:settled_at" json:"settled_at"`
	CreatedAt     time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Vault) TableName() string {
	return "Vaults"
}

// DeriveVaultID ties a vault id to its covered call.
func DeriveVaultID(coveredCallID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(OptionNamespace, append([]byte("vault"), coveredCallID[:]...))
}

// Conserved checks balance + paid out against the covered amount.
func (v *Vault) Conserved(amount uint64) bool {
	return v.Balance+v.PaidOut == amount
}

// Settled reports whether the single payout happened.
func (v *Vault) Settled() bool { return v.SettledTo != nil }
