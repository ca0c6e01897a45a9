package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
)

// Repository manages persistence for wallet balances and their postings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, posting *models.WalletTransaction) error
	// ApplyBalanceDelta adds delta to the wallet balance only when the result
	// stays non-negative. It reports whether a row was updated.
	ApplyBalanceDelta(ctx context.Context, walletID uuid.UUID, delta int64) (bool, error)
	FindWalletByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	ListByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTransaction(ctx context.Context, posting *models.WalletTransaction) error {
	if posting.ID == uuid.Nil {
		posting.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(posting).Error
}

func (r *repository) ApplyBalanceDelta(ctx context.Context, walletID uuid.UUID, delta int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND balance + ? >= 0", walletID, delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindWalletByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("id = ?", walletID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) ListByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var postings []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}
