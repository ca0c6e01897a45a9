package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/pkg/enums"
)

// Payment tracks the gateway payment for one order. The order id doubles as
// the gateway order reference, and the persisted status is the idempotency
// key for duplicate webhook deliveries.
type Payment struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID           `gorm:"column:order_id;type:uuid;not null;unique"`
	Amount               int64               `gorm:"column:amount;not null"`
	Status               enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null;default:'pending'"`
	GatewayToken         *string             `gorm:"column:gateway_token;type:text"`
	GatewayRedirectURL   *string             `gorm:"column:gateway_redirect_url;type:text"`
	GatewayTransactionID *string             `gorm:"column:gateway_transaction_id;type:text"`
	PaymentMethod        *string             `gorm:"column:payment_method;type:text"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
