package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a venue participant. Requests authenticate with the account id
// and an API key whose bcrypt hash is stored here.
type Account struct {
	AccountID  uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	Name       string    `gorm:"column:name;type:varchar(64);not null;uniqueIndex" json:"name"`
	APIKeyHash string    `gorm:"column:api_key_hash;not null" json:"-"`
	CreatedAt  time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Account) TableName() string {
	return "Accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.AccountID == uuid.Nil {
		a.AccountID = uuid.New()
	}
	return nil
}
