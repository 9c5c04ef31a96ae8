package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterInput for account registration.
type RegisterInput struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// AccountShape is what authenticated handlers see in Locals("account").
type AccountShape struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
}

// AccountFinder abstracts credential lookup (GORM in production, doubles in tests).
type AccountFinder interface {
	FindByIDAndKey(accountID, apiKey string) (*domain.Account, error)
}

// GormAccountFinder implements AccountFinder using GORM and bcrypt.
type GormAccountFinder struct{ DB *gorm.DB }

func (g *GormAccountFinder) FindByIDAndKey(accountID, apiKey string) (*domain.Account, error) {
	return Authenticate(g.DB, accountID, apiKey)
}

// GenerateAPIKey returns 32 random bytes, hex encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Register stores a new account with the bcrypt hash of its API key.
func Register(db *gorm.DB, input RegisterInput, cost int) (*domain.Account, error) {
	if input.Name == "" || input.APIKey == "" {
		return nil, ErrNameAPIKeyRequired
	}
	if !validation.IsValidAccountName(input.Name) {
		return nil, ErrInvalidName
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	var existing int64
	if err := db.Model(&domain.Account{}).Where("name = ?", input.Name).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrNameTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.APIKey), cost)
	if err != nil {
		return nil, err
	}
	account := &domain.Account{Name: input.Name, APIKeyHash: string(hash)}
	if err := db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate loads the account and verifies the API key against its hash.
func Authenticate(db *gorm.DB, accountID, apiKey string) (*domain.Account, error) {
	if accountID == "" || apiKey == "" {
		return nil, ErrCredentialsMissing
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrInvalidAccount
	}
	var a domain.Account
	if err := db.Where("account_id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAccount
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrIncorrectAPIKey
	}
	return &a, nil
}

// VerifyAccount validates what auth middleware stored and returns it for /me.
func VerifyAccount(local interface{}) (*AccountShape, error) {
	a, ok := local.(*AccountShape)
	if !ok || a == nil || a.AccountID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return a, nil
}
