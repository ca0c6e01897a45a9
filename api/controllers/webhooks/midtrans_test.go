package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/internal/orders"
	"github.com/pradiptarana/jokipay-backend/internal/payments"
	"github.com/pradiptarana/jokipay-backend/internal/wallets"
	"github.com/pradiptarana/jokipay-backend/pkg/config"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
	"github.com/pradiptarana/jokipay-backend/pkg/midtrans"
	"github.com/pradiptarana/jokipay-backend/pkg/outbox"
)

const webhookTestServerKey = "SB-Mid-server-testkey"

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

type stubGateway struct{}

func (stubGateway) ServerKey() string {
	return webhookTestServerKey
}

func (stubGateway) CreateSnapTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error) {
	return &midtrans.SnapResponse{Token: "snap-token", RedirectURL: "https://pay.example/redirect"}, nil
}

type memoryGuard struct {
	keys map[string]struct{}
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{keys: map[string]struct{}{}}
}

func (g *memoryGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := g.keys[key]; ok {
		return false, nil
	}
	g.keys[key] = struct{}{}
	return true, nil
}

func (g *memoryGuard) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (g *memoryGuard) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(g.keys, key)
	}
	return nil
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
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
		`CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  type TEXT NOT NULL,
  order_id TEXT,
  payout_request_id TEXT,
  description TEXT NOT NULL DEFAULT '',
  created_at DATETIME
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

func newWebhookHandler(t *testing.T, db *gorm.DB, guard idempotencyGuard) http.HandlerFunc {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
	runner := gormTxRunner{db: db}

	emitter, err := outbox.NewService(outbox.NewRepository(db), logg)
	require.NoError(t, err)

	notifier, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	walletSvc, err := wallets.NewService(
		wallets.NewRepository(db), ledgerSvc, notifier, runner,
		config.PayoutConfig{MinimumAmount: 50000}, nil, logg)
	require.NoError(t, err)

	orderSvc, err := orders.NewService(orders.NewRepository(db), walletSvc, notifier, runner, logg)
	require.NoError(t, err)

	paymentSvc, err := payments.NewService(
		payments.NewRepository(db), orders.NewRepository(db),
		stubGateway{}, emitter, notifier, runner, logg)
	require.NoError(t, err)

	return MidtransWebhook(paymentSvc, orderSvc, guard, nil, logg)
}

func seedPendingOrder(t *testing.T, db *gorm.DB, price int64) *models.Order {
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
		Title:     "Landing page build",
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

	return order
}

func notificationBody(t *testing.T, order *models.Order, status, grossAmount string) []byte {
	t.Helper()

	statusCode := "200"
	body, err := json.Marshal(map[string]string{
		"order_id":           order.ID.String(),
		"status_code":        statusCode,
		"gross_amount":       grossAmount,
		"signature_key":      midtrans.SignatureKey(order.ID.String(), statusCode, grossAmount, webhookTestServerKey),
		"transaction_status": status,
		"transaction_id":     "trx-" + uuid.NewString(),
		"payment_type":       "qris",
	})
	require.NoError(t, err)
	return body
}

func postWebhook(handler http.HandlerFunc, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data["outcome"]
}

func TestMidtransWebhook_SettlementActivatesOrder(t *testing.T) {
	db := setupWebhookTestDB(t)
	handler := newWebhookHandler(t, db, newMemoryGuard())
	order := seedPendingOrder(t, db, 150000)

	rec := postWebhook(handler, notificationBody(t, order, "settlement", "150000.00"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "settled", decodeOutcome(t, rec))

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusSettlement, payment.Status)

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusInProgress, updated.Status)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", order.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestMidtransWebhook_SettlementAfterExpiryReactivatesOrder(t *testing.T) {
	db := setupWebhookTestDB(t)
	handler := newWebhookHandler(t, db, newMemoryGuard())
	order := seedPendingOrder(t, db, 150000)

	expired := postWebhook(handler, notificationBody(t, order, "expire", "150000.00"))
	require.Equal(t, http.StatusOK, expired.Code, expired.Body.String())
	assert.Equal(t, "expired", decodeOutcome(t, expired))

	var cancelled models.Order
	require.NoError(t, db.First(&cancelled, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	settled := postWebhook(handler, notificationBody(t, order, "settlement", "150000.00"))
	require.Equal(t, http.StatusOK, settled.Code, settled.Body.String())
	assert.Equal(t, "settled", decodeOutcome(t, settled))

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusSettlement, payment.Status)

	var reactivated models.Order
	require.NoError(t, db.First(&reactivated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusInProgress, reactivated.Status,
		"a gateway-confirmed settlement must revive the locally cancelled order")

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", order.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestMidtransWebhook_DuplicateDeliveryIsAbsorbed(t *testing.T) {
	db := setupWebhookTestDB(t)
	handler := newWebhookHandler(t, db, newMemoryGuard())
	order := seedPendingOrder(t, db, 150000)

	first := postWebhook(handler, notificationBody(t, order, "settlement", "150000.00"))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "settled", decodeOutcome(t, first))

	second := postWebhook(handler, notificationBody(t, order, "settlement", "150000.00"))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "already_processed", decodeOutcome(t, second))

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", order.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)

	var notificationCount int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notificationCount).Error)
	assert.Equal(t, int64(2), notificationCount, "activation notifications must not duplicate")
}

func TestMidtransWebhook_TamperedSignatureReleasesGuard(t *testing.T) {
	db := setupWebhookTestDB(t)
	handler := newWebhookHandler(t, db, newMemoryGuard())
	order := seedPendingOrder(t, db, 150000)

	var tampered map[string]string
	require.NoError(t, json.Unmarshal(notificationBody(t, order, "settlement", "150000.00"), &tampered))
	tampered["signature_key"] = "deadbeef"
	body, err := json.Marshal(tampered)
	require.NoError(t, err)

	rec := postWebhook(handler, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	// A later, correctly signed delivery for the same order and status is
	// not blocked by the failed attempt.
	retry := postWebhook(handler, notificationBody(t, order, "settlement", "150000.00"))
	require.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, "settled", decodeOutcome(t, retry))
}

func TestMidtransWebhook_MissingFields(t *testing.T) {
	db := setupWebhookTestDB(t)
	handler := newWebhookHandler(t, db, newMemoryGuard())

	rec := postWebhook(handler, []byte(`{"order_id":""}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
