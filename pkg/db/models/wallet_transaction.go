package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// WalletTransaction is one immutable ledger posting. Rows are never updated
// or deleted; they are the audit trail for every balance movement.
type WalletTransaction struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID        uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index"`
	Amount          int64                       `gorm:"column:amount;not null"`
	Type            enums.WalletTransactionType `gorm:"column:type;type:wallet_transaction_type_enum;not null"`
	OrderID         *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	PayoutRequestID *uuid.UUID                  `gorm:"column:payout_request_id;type:uuid"`
	Description     string                      `gorm:"column:description;type:text;not null"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
