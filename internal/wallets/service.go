package wallets

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/pkg/config"
	"github.com/pradiptarana/jokipay-backend/pkg/db"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
	"github.com/pradiptarana/jokipay-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes wallet reads and the payout workflow.
type Service interface {
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	// CreditInTx posts a credit against a user's wallet on the caller's
	// transaction, creating the wallet on first use. WalletID on the input
	// is resolved from the user and may be left zero.
	CreditInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input ledger.PostInput) (*models.WalletTransaction, error)
	// DebitInTx posts a debit against a wallet on the caller's transaction.
	// Amount on the input is positive; the sign is applied here so callers
	// never build negative postings themselves.
	DebitInTx(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, input ledger.PostInput) (*models.WalletTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)

	AddPayoutAccount(ctx context.Context, input AddPayoutAccountInput) (*models.PayoutAccount, error)
	ListPayoutAccounts(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error)
	RemovePayoutAccount(ctx context.Context, userID, accountID uuid.UUID) error

	RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error)
	ListPendingPayouts(ctx context.Context, limit, offset int) ([]models.PayoutRequest, error)
	ApprovePayout(ctx context.Context, input PayoutDecisionInput) (*models.PayoutRequest, error)
	RejectPayout(ctx context.Context, input PayoutDecisionInput) (*models.PayoutRequest, error)
}

type service struct {
	repo     Repository
	ledger   ledger.Service
	notifier notifications.Service
	tx       txRunner
	cfg      config.PayoutConfig
	metrics  *metrics.SettlementMetrics
	logg     *logger.Logger
}

// AddPayoutAccountInput registers a bank destination for a user.
type AddPayoutAccountInput struct {
	UserID        uuid.UUID
	BankName      string
	AccountNumber string
	AccountHolder string
}

// NewService builds a wallet service with the required dependencies.
func NewService(
	repo Repository,
	ledgerSvc ledger.Service,
	notifier notifications.Service,
	tx txRunner,
	cfg config.PayoutConfig,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		ledger:   ledgerSvc,
		notifier: notifier,
		tx:       tx,
		cfg:      cfg,
		metrics:  settlementMetrics,
		logg:     logg,
	}, nil
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
// A concurrent create racing past the lookup is absorbed by the unique index
// on user_id.
func (s *service) GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindWalletByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("finding wallet: %w", err)
	}

	created := &models.Wallet{UserID: userID}
	if err := repo.CreateWallet(ctx, created); err != nil {
		if db.IsUniqueViolation(err) {
			return repo.FindWalletByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("creating wallet: %w", err)
	}
	return created, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	wallet, err := s.walletByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	wallet, err := s.walletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, wallet.ID, limit, offset)
}

func (s *service) AddPayoutAccount(ctx context.Context, input AddPayoutAccountInput) (*models.PayoutAccount, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	if input.BankName == "" || input.AccountNumber == "" || input.AccountHolder == "" {
		return nil, errors.New(errors.CodeValidation, "bank name, account number and holder are required")
	}

	account := &models.PayoutAccount{
		UserID:        input.UserID,
		BankName:      input.BankName,
		AccountNumber: input.AccountNumber,
		AccountHolder: input.AccountHolder,
	}
	if err := s.repo.CreatePayoutAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("creating payout account: %w", err)
	}
	return account, nil
}

func (s *service) ListPayoutAccounts(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.ListPayoutAccountsByUserID(ctx, userID)
}

// RemovePayoutAccount deletes a bank destination. Accounts referenced by any
// payout request stay on record for audit.
func (s *service) RemovePayoutAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	if accountID == uuid.Nil {
		return errors.New(errors.CodeValidation, "payout account id required")
	}

	referenced, err := s.repo.CountPayoutRequestsByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("counting payout requests: %w", err)
	}
	if referenced > 0 {
		return errors.New(errors.CodeConflict, "payout account is used by payout requests")
	}

	deleted, err := s.repo.DeletePayoutAccount(ctx, accountID, userID)
	if err != nil {
		return fmt.Errorf("deleting payout account: %w", err)
	}
	if !deleted {
		return errors.New(errors.CodeNotFound, "payout account not found")
	}
	return nil
}

func (s *service) walletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "wallet not found")
		}
		return nil, fmt.Errorf("finding wallet: %w", err)
	}
	return wallet, nil
}

func (s *service) CreditInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input ledger.PostInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	wallet, err := s.GetOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	input.WalletID = wallet.ID
	return s.ledger.Post(ctx, tx, input)
}

func (s *service) DebitInTx(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, input ledger.PostInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive")
	}
	input.WalletID = walletID
	input.Amount = -input.Amount
	return s.ledger.Post(ctx, tx, input)
}
