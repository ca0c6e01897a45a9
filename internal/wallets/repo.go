package wallets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Repository manages persistence for wallets, payout accounts and payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error

	CreatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error
	FindPayoutAccountByID(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error)
	ListPayoutAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error)
	// DeletePayoutAccount removes an account owned by the user. It reports
	// whether a row was deleted.
	DeletePayoutAccount(ctx context.Context, id, userID uuid.UUID) (bool, error)
	CountPayoutRequestsByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	CreatePayoutRequest(ctx context.Context, request *models.PayoutRequest) error
	FindPayoutRequestByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListPayoutRequestsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error)
	ListPayoutRequestsByStatus(ctx context.Context, status enums.PayoutStatus, limit, offset int) ([]models.PayoutRequest, error)
	// TransitionPayoutStatus moves a pending request into a terminal status.
	// It reports whether the row was still pending.
	TransitionPayoutStatus(ctx context.Context, id uuid.UUID, to enums.PayoutStatus, adminNotes *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) CreatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindPayoutAccountByID(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListPayoutAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error) {
	var accounts []models.PayoutAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) DeletePayoutAccount(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.PayoutAccount{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CountPayoutRequestsByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("payout_account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreatePayoutRequest(ctx context.Context, request *models.PayoutRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindPayoutRequestByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListPayoutRequestsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error) {
	var requests []models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListPayoutRequestsByStatus(ctx context.Context, status enums.PayoutStatus, limit, offset int) ([]models.PayoutRequest, error) {
	var requests []models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("requested_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) TransitionPayoutStatus(ctx context.Context, id uuid.UUID, to enums.PayoutStatus, adminNotes *string) (bool, error) {
	now := time.Now()
	updates := map[string]any{
		"status":       to,
		"processed_at": &now,
	}
	if adminNotes != nil {
		updates["admin_notes"] = adminNotes
	}
	result := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
