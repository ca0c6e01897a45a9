package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
)

// Service posts immutable wallet transactions and keeps the cached wallet
// balance in lockstep with them.
type Service interface {
	// Post applies a signed amount to a wallet and records the matching
	// transaction row. Both writes happen on the caller's transaction, so
	// they commit or roll back together.
	Post(ctx context.Context, tx *gorm.DB, input PostInput) (*models.WalletTransaction, error)
	Balance(ctx context.Context, walletID uuid.UUID) (int64, error)
	History(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

type service struct {
	repo Repository
}

// PostInput captures a single balance movement. Amount is signed: positive
// credits the wallet, negative debits it.
type PostInput struct {
	WalletID        uuid.UUID
	Amount          int64
	Type            enums.WalletTransactionType
	OrderID         *uuid.UUID
	PayoutRequestID *uuid.UUID
	Description     string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Post(ctx context.Context, tx *gorm.DB, input PostInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.WalletID == uuid.Nil {
		return nil, fmt.Errorf("wallet id is required")
	}
	if input.Amount == 0 {
		return nil, fmt.Errorf("amount must be non-zero")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid wallet transaction type %q", input.Type)
	}
	if input.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	repo := s.repo.WithTx(tx)

	updated, err := repo.ApplyBalanceDelta(ctx, input.WalletID, input.Amount)
	if err != nil {
		return nil, fmt.Errorf("applying balance delta: %w", err)
	}
	if !updated {
		// Either the wallet is missing or the debit would overdraw it.
		if _, findErr := repo.FindWalletByID(ctx, input.WalletID); findErr != nil {
			return nil, errors.Wrap(errors.CodeNotFound, findErr, "wallet not found")
		}
		return nil, errors.New(errors.CodeInsufficientFunds, "wallet balance too low")
	}

	posting := &models.WalletTransaction{
		WalletID:        input.WalletID,
		Amount:          input.Amount,
		Type:            input.Type,
		OrderID:         input.OrderID,
		PayoutRequestID: input.PayoutRequestID,
		Description:     input.Description,
	}
	if err := repo.CreateTransaction(ctx, posting); err != nil {
		return nil, fmt.Errorf("recording wallet transaction: %w", err)
	}
	return posting, nil
}

func (s *service) Balance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	if walletID == uuid.Nil {
		return 0, fmt.Errorf("wallet id is required")
	}
	wallet, err := s.repo.FindWalletByID(ctx, walletID)
	if err != nil {
		return 0, errors.Wrap(errors.CodeNotFound, err, "wallet not found")
	}
	return wallet.Balance, nil
}

func (s *service) History(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	if walletID == uuid.Nil {
		return nil, fmt.Errorf("wallet id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByWalletID(ctx, walletID, limit, offset)
}
