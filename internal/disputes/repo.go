package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Repository manages persistence for disputes and their message threads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	ListByStatus(ctx context.Context, status enums.DisputeStatus, limit, offset int) ([]models.Dispute, error)
	// Resolve moves an open dispute into resolved with its outcome recorded.
	// It reports whether the row was still open.
	Resolve(ctx context.Context, id uuid.UUID, resolution enums.DisputeResolution, resolvedByID uuid.UUID, adminNotes *string) (bool, error)

	CreateMessage(ctx context.Context, message *models.DisputeMessage) error
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.DisputeStatusOpen).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, resolution enums.DisputeResolution, resolvedByID uuid.UUID, adminNotes *string) (bool, error) {
	now := time.Now()
	updates := map[string]any{
		"status":         enums.DisputeStatusResolved,
		"resolution":     resolution,
		"resolved_by_id": resolvedByID,
		"resolved_at":    &now,
	}
	if adminNotes != nil {
		updates["admin_notes"] = adminNotes
	}
	result := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, enums.DisputeStatusOpen).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateMessage(ctx context.Context, message *models.DisputeMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	var messages []models.DisputeMessage
	if err := r.db.WithContext(ctx).
		Where("dispute_id = ?", disputeID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
