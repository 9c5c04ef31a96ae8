package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxUtilizationBps is 100% in basis points.
const MaxUtilizationBps = 10_000

// ShareVault pools one asset from many depositors. Shares are minted
// against TotalAssets at the current ratio; Authority rolls epochs and
// books the premium the pool earned. Withdrawals requested in an epoch are
// paid once a later epoch has started.
type ShareVault struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Asset              string     `gorm:"column:asset;type:varchar(32);not null;uniqueIndex" json:"asset"`
	Authority          uuid.UUID  `gorm:"column:authority;type:uuid;not null" json:"authority"`
	UtilizationCapBps  uint32     `gorm:"column:utilization_cap_bps;not null" json:"utilization_cap_bps"`
	TotalAssets        uint64     `gorm:"column:total_assets;not null" json:"total_assets"`
	TotalShares        uint64     `gorm:"column:total_shares;not null" json:"total_shares"`
	PendingWithdrawals uint64     `gorm:"column:pending_withdrawals;not null" json:"pending_withdrawals"`
	Epoch              uint64     `gorm:"column:epoch;not null" json:"epoch"`
	LastRollAt         *time.Time `gorm:"column:last_roll_at" json:"last_roll_at"`
	Version            int64      `gorm:"column:version;not null" json:"version"`
	CreatedAt          time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ShareVault) TableName() string {
	return "ShareVaults"
}

// DeriveShareVaultID gives each asset one pool id.
func DeriveShareVaultID(asset string) uuid.UUID {
	return uuid.NewSHA1(OptionNamespace, []byte("share-vault:"+asset))
}

// Deployable is the part of TotalAssets the authority may commit to writing
// options under the utilization cap.
func (v *ShareVault) Deployable() uint64 {
	q, _ := MulDiv(v.TotalAssets, uint64(v.UtilizationCapBps), MaxUtilizationBps)
	return q
}

// ShareBalance is one depositor's shares in one pool.
type ShareBalance struct {
	VaultID   uuid.UUID `gorm:"column:vault_id;type:uuid;primaryKey" json:"vault_id"`
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	Shares    uint64    `gorm:"column:shares;not null" json:"shares"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ShareBalance) TableName() string {
	return "ShareBalances"
}

// WithdrawalRequest queues shares for redemption after RequestEpoch ends.
// An account has at most one unprocessed request per pool.
type WithdrawalRequest struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VaultID      uuid.UUID  `gorm:"column:vault_id;type:uuid;not null;index:idx_withdrawal_owner" json:"vault_id"`
	AccountID    uuid.UUID  `gorm:"column:account_id;type:uuid;not null;index:idx_withdrawal_owner" json:"account_id"`
	Shares       uint64     `gorm:"column:shares;not null" json:"shares"`
	RequestEpoch uint64     `gorm:"column:request_epoch;not null" json:"request_epoch"`
	Processed    bool       `gorm:"column:processed;not null" json:"processed"`
	Amount       uint64     `gorm:"column:amount;not null" json:"amount"`
	ProcessedAt  *time.Time `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt    time.Time  `gorm:"column:createdAt" json:"createdAt"`
}

func (WithdrawalRequest) TableName() string {
	return "WithdrawalRequests"
}

func (w *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
