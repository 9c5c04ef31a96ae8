package transactions

import (
	"context"

	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/units"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// FormattedTx is a ledger row with a display amount.
type FormattedTx struct {
	TxID          uuid.UUID       `json:"tx_id"`
	Type          string          `json:"type"`
	Asset         string          `json:"asset"`
	Amount        uint64          `json:"amount"`
	DisplayAmount decimal.Decimal `json:"display_amount"`
	Direction     string          `json:"direction"`
	CreatedAt     interface{}     `json:"created_at"`
	FromAccountID *uuid.UUID      `json:"from_account_id"`
	ToAccountID   *uuid.UUID      `json:"to_account_id"`
	CoveredCallID *uuid.UUID      `json:"covered_call_id"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
}

// ViewTransactions lists every movement into or out of an account, newest first.
func (s *Service) ViewTransactions(ctx context.Context, accountID uuid.UUID) ([]FormattedTx, error) {
	var txs []domain.Transaction
	if err := s.DB.WithContext(ctx).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order(`"createdAt" DESC`).
		Find(&txs).Error; err != nil {
		return nil, err
	}

	out := make([]FormattedTx, 0, len(txs))
	for _, tx := range txs {
		direction := "in"
		if tx.FromAccountID != nil && *tx.FromAccountID == accountID {
			direction = "out"
		}
		out = append(out, FormattedTx{
			TxID:          tx.TxID,
			Type:          tx.Type,
			Asset:         tx.Asset,
			Amount:        tx.Amount,
			DisplayAmount: units.ToDisplay(tx.Amount, units.DefaultDecimals),
			Direction:     direction,
			CreatedAt:     tx.CreatedAt,
			FromAccountID: tx.FromAccountID,
			ToAccountID:   tx.ToAccountID,
			CoveredCallID: tx.CoveredCallID,
			ReferenceID:   tx.ReferenceID,
		})
	}
	return out, nil
}

// ViewOptionTransactions lists the ledger movements of one covered call.
func (s *Service) ViewOptionTransactions(ctx context.Context, coveredCallID uuid.UUID) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	if err := s.DB.WithContext(ctx).
		Where("covered_call_id = ?", coveredCallID).
		Order(`"createdAt" ASC`).
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}
