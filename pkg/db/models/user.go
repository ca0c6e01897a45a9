package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// User is the minimal projection of a marketplace account the escrow core
// reads. Account management lives outside this service.
type User struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FullName        string         `gorm:"column:full_name;type:text;not null"`
	Email           string         `gorm:"column:email;type:text;not null;unique"`
	Role            enums.UserRole `gorm:"column:role;type:user_role_enum;not null;default:'user'"`
	CompletedOrders int            `gorm:"column:completed_orders;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
