package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutAccount is a bank destination owned by a user. Payout requests
// reference accounts but never mutate them.
type PayoutAccount struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	BankName      string    `gorm:"column:bank_name;type:text;not null"`
	AccountNumber string    `gorm:"column:account_number;type:text;not null"`
	AccountHolder string    `gorm:"column:account_holder;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
