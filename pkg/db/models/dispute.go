package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Dispute records a disagreement over an order. A partial unique index keeps
// at most one open dispute per order.
type Dispute struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	OpenedByID   uuid.UUID                `gorm:"column:opened_by_id;type:uuid;not null"`
	Status       enums.DisputeStatus      `gorm:"column:status;type:dispute_status_enum;not null;default:'open'"`
	Resolution   *enums.DisputeResolution `gorm:"column:resolution;type:dispute_resolution_enum"`
	ResolvedByID *uuid.UUID               `gorm:"column:resolved_by_id;type:uuid"`
	AdminNotes   *string                  `gorm:"column:admin_notes;type:text"`
	ResolvedAt   *time.Time               `gorm:"column:resolved_at"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
}

// DisputeMessage is one message on a dispute thread.
type DisputeMessage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DisputeID uuid.UUID `gorm:"column:dispute_id;type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"column:sender_id;type:uuid;not null"`
	Body      string    `gorm:"column:body;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
