package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// PayoutRequest is a withdrawal intent. The requested amount is debited from
// the wallet the moment the request is created; rejection credits it back.
type PayoutRequest struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID        uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	PayoutAccountID uuid.UUID          `gorm:"column:payout_account_id;type:uuid;not null"`
	Amount          int64              `gorm:"column:amount;not null"`
	Status          enums.PayoutStatus `gorm:"column:status;type:payout_status_enum;not null;default:'pending'"`
	AdminNotes      *string            `gorm:"column:admin_notes;type:text"`
	RequestedAt     time.Time          `gorm:"column:requested_at;autoCreateTime"`
	ProcessedAt     *time.Time         `gorm:"column:processed_at"`
}
