package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Repository manages persistence for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyerID(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListBySellerID(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error)
	// TransitionStatus moves an order from one of the expected statuses to
	// the target status. It reports whether a row was updated.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error)
	IncrementCompletedOrders(ctx context.Context, sellerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByBuyerID(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.list(ctx, "buyer_id = ?", buyerID, limit, offset)
}

func (r *repository) ListBySellerID(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.list(ctx, "seller_id = ?", sellerID, limit, offset)
}

func (r *repository) list(ctx context.Context, where string, id uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where(where, id).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementCompletedOrders(ctx context.Context, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", sellerID).
		Update("completed_orders", gorm.Expr("completed_orders + 1")).Error
}
