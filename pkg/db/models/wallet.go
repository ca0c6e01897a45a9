package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds one user's escrow balance in integer Rupiah. The cached
// balance always equals the sum of the wallet's transactions; both are
// written in the same database transaction.
type Wallet struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;unique"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
