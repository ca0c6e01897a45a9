package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Repository manages persistence for gateway payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdateGatewaySession(ctx context.Context, id uuid.UUID, token, redirectURL string) error
	// MarkSettled promotes the payment to settlement unless it is already
	// there. It reports whether this call performed the promotion.
	MarkSettled(ctx context.Context, orderID uuid.UUID, transactionID, paymentMethod *string) (bool, error)
	// TransitionFromPending moves a pending payment into a non-settlement
	// terminal status. Settled payments are never regressed.
	TransitionFromPending(ctx context.Context, orderID uuid.UUID, to enums.PaymentStatus, transactionID, paymentMethod *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdateGatewaySession(ctx context.Context, id uuid.UUID, token, redirectURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway_token":        token,
			"gateway_redirect_url": redirectURL,
		}).Error
}

func (r *repository) MarkSettled(ctx context.Context, orderID uuid.UUID, transactionID, paymentMethod *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status <> ?", orderID, enums.PaymentStatusSettlement).
		Updates(map[string]any{
			"status":                 enums.PaymentStatusSettlement,
			"gateway_transaction_id": transactionID,
			"payment_method":         paymentMethod,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) TransitionFromPending(ctx context.Context, orderID uuid.UUID, to enums.PaymentStatus, transactionID, paymentMethod *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":                 to,
			"gateway_transaction_id": transactionID,
			"payment_method":         paymentMethod,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
