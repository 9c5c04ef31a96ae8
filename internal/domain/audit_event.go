package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit subjects outside the covered-call state machine.
const (
	SubjectRFQ        = "rfq"
	SubjectMaker      = "maker"
	SubjectShareVault = "share_vault"
)

const (
	EventRFQCreated   = "RFQ_CREATED"
	EventRFQFilled    = "RFQ_FILLED"
	EventRFQCancelled = "RFQ_CANCELLED"
	EventRFQExpired   = "RFQ_EXPIRED"

	EventMakerAdded       = "MAKER_ADDED"
	EventMakerDeactivated = "MAKER_DEACTIVATED"

	EventVaultCreated        = "VAULT_CREATED"
	EventVaultDeposit        = "VAULT_DEPOSIT"
	EventWithdrawalRequested = "WITHDRAWAL_REQUESTED"
	EventWithdrawalProcessed = "WITHDRAWAL_PROCESSED"
	EventEpochAdvanced       = "EPOCH_ADVANCED"
)

// AuditEvent is the append-only trail of RFQ, maker and share-vault changes.
type AuditEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	Subject   string         `gorm:"column:subject;type:varchar(16);not null;index:idx_audit_subject" json:"subject"`
	SubjectID uuid.UUID      `gorm:"column:subject_id;type:uuid;not null;index:idx_audit_subject" json:"subject_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	Actor     uuid.UUID      `gorm:"column:actor;type:uuid;not null;index" json:"actor"`
	EventData datatypes.JSON `gorm:"column:event_data;not null" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (AuditEvent) TableName() string {
	return "AuditEvents"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
