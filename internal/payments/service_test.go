package payments

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/internal/orders"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
	"github.com/pradiptarana/jokipay-backend/pkg/midtrans"
	"github.com/pradiptarana/jokipay-backend/pkg/outbox"
)

const testServerKey = "SB-Mid-server-testkey"

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

type stubGateway struct {
	serverKey string
	snapFn    func(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error)
}

func (s stubGateway) ServerKey() string {
	return s.serverKey
}

func (s stubGateway) CreateSnapTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error) {
	if s.snapFn != nil {
		return s.snapFn(ctx, req)
	}
	return &midtrans.SnapResponse{Token: "snap-token", RedirectURL: "https://pay.example/redirect"}, nil
}

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL DEFAULT 'user',
  completed_orders INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  service_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  amount INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  gateway_token TEXT,
  gateway_redirect_url TEXT,
  gateway_transaction_id TEXT,
  payment_method TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  UNIQUE (event_type, aggregate_id)
);`,
		`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  content TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func newPaymentTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})

	emitter, err := outbox.NewService(outbox.NewRepository(db), logg)
	require.NoError(t, err)

	notifier, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		orders.NewRepository(db),
		stubGateway{serverKey: testServerKey},
		emitter,
		notifier,
		gormTxRunner{db: db},
		logg,
	)
	require.NoError(t, err)
	return svc
}

func seedPaidOrder(t *testing.T, db *gorm.DB, price int64) (*models.Order, *models.Payment) {
	t.Helper()

	buyer := &models.User{ID: uuid.New(), FullName: "Buyer", Email: uuid.NewString() + "@test.id"}
	seller := &models.User{ID: uuid.New(), FullName: "Seller", Email: uuid.NewString() + "@test.id"}
	require.NoError(t, db.Create(buyer).Error)
	require.NoError(t, db.Create(seller).Error)

	order := &models.Order{
		ID:        uuid.New(),
		BuyerID:   buyer.ID,
		SellerID:  seller.ID,
		ServiceID: uuid.New(),
		Title:     "Thesis proofreading",
		Price:     price,
		Status:    enums.OrderStatusPendingPayment,
	}
	require.NoError(t, db.Create(order).Error)

	payment := &models.Payment{
		ID:      uuid.New(),
		OrderID: order.ID,
		Amount:  price,
		Status:  enums.PaymentStatusPending,
	}
	require.NoError(t, db.Create(payment).Error)

	return order, payment
}

func signedNotification(order *models.Order, status, grossAmount string) CallbackNotification {
	statusCode := "200"
	return CallbackNotification{
		OrderID:           order.ID.String(),
		StatusCode:        statusCode,
		GrossAmount:       grossAmount,
		SignatureKey:      midtrans.SignatureKey(order.ID.String(), statusCode, grossAmount, testServerKey),
		TransactionStatus: status,
		TransactionID:     "trx-" + uuid.NewString(),
		PaymentType:       "qris",
		Raw:               json.RawMessage(`{"transaction_status":"` + status + `"}`),
	}
}

func TestService_HandleCallbackSettlement(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)

	result, err := svc.HandleCallback(context.Background(), signedNotification(order, "settlement", "150000.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, order.ID, result.OrderID)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusSettlement, payment.Status)
	require.NotNil(t, payment.GatewayTransactionID)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", order.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestService_HandleCallbackDuplicateDelivery(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)
	ctx := context.Background()

	first, err := svc.HandleCallback(ctx, signedNotification(order, "settlement", "150000.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, first.Outcome)

	second, err := svc.HandleCallback(ctx, signedNotification(order, "settlement", "150000.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", order.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events, "duplicate deliveries must emit exactly one settlement event")
}

func TestService_HandleCallbackTamperedSignature(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)

	notification := signedNotification(order, "settlement", "150000.00")
	notification.SignatureKey = "deadbeef"

	_, err := svc.HandleCallback(context.Background(), notification)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidSignature))

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status, "tampered delivery must not change the payment")
}

func TestService_HandleCallbackAmountMismatch(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)

	_, err := svc.HandleCallback(context.Background(), signedNotification(order, "settlement", "1.00"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestService_HandleCallbackUnknownStatus(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)

	_, err := svc.HandleCallback(context.Background(), signedNotification(order, "refund", "150000.00"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestService_HandleCallbackExpireCancelsOrder(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)

	result, err := svc.HandleCallback(context.Background(), signedNotification(order, "expire", "150000.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, result.Outcome)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusExpire, payment.Status)

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)

	var notification models.Notification
	require.NoError(t, db.Where("user_id = ?", order.BuyerID).First(&notification).Error)
	assert.Contains(t, notification.Content, "cancelled")
}

func TestService_HandleCallbackSettlementAfterExpireIsAccepted(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)
	order, _ := seedPaidOrder(t, db, 150000)
	ctx := context.Background()

	_, err := svc.HandleCallback(ctx, signedNotification(order, "expire", "150000.00"))
	require.NoError(t, err)

	// The gateway can settle a payment it previously reported expired
	// (late bank transfer confirmation). Settlement wins.
	result, err := svc.HandleCallback(ctx, signedNotification(order, "settlement", "150000.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusSettlement, payment.Status)
}

func TestService_HandleCallbackUnknownOrder(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)

	orderID := uuid.New().String()
	gross := "150000.00"
	notification := CallbackNotification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       gross,
		SignatureKey:      midtrans.SignatureKey(orderID, "200", gross, testServerKey),
		TransactionStatus: "settlement",
	}

	_, err := svc.HandleCallback(context.Background(), notification)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestService_CreatePayment(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentTestService(t, db)

	buyer := &models.User{ID: uuid.New(), FullName: "Buyer", Email: uuid.NewString() + "@test.id"}
	seller := &models.User{ID: uuid.New(), FullName: "Seller", Email: uuid.NewString() + "@test.id"}
	require.NoError(t, db.Create(buyer).Error)
	require.NoError(t, db.Create(seller).Error)

	order := &models.Order{
		ID:        uuid.New(),
		BuyerID:   buyer.ID,
		SellerID:  seller.ID,
		ServiceID: uuid.New(),
		Title:     "CV review",
		Price:     75000,
		Status:    enums.OrderStatusPendingPayment,
	}
	require.NoError(t, db.Create(order).Error)
	ctx := context.Background()

	payment, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: order.ID, ActorUserID: buyer.ID})
	require.NoError(t, err)
	require.NotNil(t, payment.GatewayToken)
	assert.Equal(t, "snap-token", *payment.GatewayToken)
	assert.Equal(t, int64(75000), payment.Amount)

	// A second call reuses the open session instead of creating a new one.
	again, err := svc.CreatePayment(ctx, CreatePaymentInput{OrderID: order.ID, ActorUserID: buyer.ID})
	require.NoError(t, err)
	assert.Equal(t, payment.ID, again.ID)

	// Only the buyer can open a payment session.
	_, err = svc.CreatePayment(ctx, CreatePaymentInput{OrderID: order.ID, ActorUserID: seller.ID})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))
}
