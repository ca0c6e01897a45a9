package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Order represents one purchased service. The escrow core reads
// buyer/seller/price and writes status transitions triggered by settlement,
// acceptance, and dispute resolution.
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID   uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID  uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	ServiceID uuid.UUID         `gorm:"column:service_id;type:uuid;not null"`
	Title     string            `gorm:"column:title;type:text;not null"`
	Price     int64             `gorm:"column:price;not null"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending_payment'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
