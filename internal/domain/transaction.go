package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger movement kinds.
const (
	TxDeposit           = "deposit"
	TxCollateralLock    = "collateral_lock"
	TxPremium           = "premium"
	TxStrike            = "strike"
	TxCollateralRelease = "collateral_release"
	TxRFQPremium        = "rfq_premium"
	TxVaultDeposit      = "vault_deposit"
	TxVaultWithdrawal   = "vault_withdrawal"
	TxVaultPremium      = "vault_premium"
)

// Transaction records one asset movement. A nil From is a mint (deposit); a
// nil To or From paired with CoveredCallID is the vault side. ReferenceID
// points at the RFQ or share vault behind the other kinds.
type Transaction struct {
	TxID          uuid.UUID  `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	Type          string     `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Asset         string     `gorm:"column:asset;type:varchar(32);not null" json:"asset"`
	FromAccountID *uuid.UUID `gorm:"column:from_account_id;type:uuid;index" json:"from_account_id"`
	ToAccountID   *uuid.UUID `gorm:"column:to_account_id;type:uuid;index" json:"to_account_id"`
	Amount        uint64     `gorm:"column:amount;not null" json:"amount"`
	CoveredCallID *uuid.UUID `gorm:"column:covered_call_id;type:uuid;index" json:"covered_call_id"`
	ReferenceID   *uuid.UUID `gorm:"column:reference_id;type:uuid;index" json:"reference_id,omitempty"`
	CreatedAt     time.Time  `gorm:"column:createdAt" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "Transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}
