package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/internal/wallets"
	"github.com/pradiptarana/jokipay-backend/pkg/config"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

func setupOrdersTestDB(t *testing.T) *gorm.DB {
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
  description TEXT NOT NULL,
  created_at DATETIME
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

func newOrderTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	notifier, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)

	walletSvc, err := wallets.NewService(
		wallets.NewRepository(db),
		ledgerSvc,
		notifier,
		gormTxRunner{db: db},
		config.PayoutConfig{MinimumAmount: 50000},
		nil,
		logg,
	)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(db), walletSvc, notifier, gormTxRunner{db: db}, logg)
	require.NoError(t, err)
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, price int64) *models.Order {
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
		Title:     "Logo design",
		Price:     price,
		Status:    status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestService_HandlePaymentSuccess(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusPendingPayment, 150000)
	ctx := context.Background()

	require.NoError(t, svc.HandlePaymentSuccess(ctx, order.ID))

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusInProgress, updated.Status)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id IN ?", []uuid.UUID{order.BuyerID, order.SellerID}).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// A duplicate delivery is absorbed without another notification.
	require.NoError(t, svc.HandlePaymentSuccess(ctx, order.ID))
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id IN ?", []uuid.UUID{order.BuyerID, order.SellerID}).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestService_HandlePaymentSuccessUnknownOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)

	err := svc.HandlePaymentSuccess(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestService_CompleteOrderReleasesFunds(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusInProgress, 200000)
	ctx := context.Background()

	completed, err := svc.CompleteOrder(ctx, order.ID, order.BuyerID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, completed.Status)

	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "user_id = ?", order.SellerID).Error)
	assert.Equal(t, int64(200000), wallet.Balance)

	var posting models.WalletTransaction
	require.NoError(t, db.First(&posting, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.WalletTransactionOrderRelease, posting.Type)
	assert.Equal(t, int64(200000), posting.Amount)

	var seller models.User
	require.NoError(t, db.First(&seller, "id = ?", order.SellerID).Error)
	assert.Equal(t, 1, seller.CompletedOrders)
}

func TestService_CompleteOrderTwiceCreditsOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusInProgress, 200000)
	ctx := context.Background()

	_, err := svc.CompleteOrder(ctx, order.ID, order.BuyerID)
	require.NoError(t, err)

	_, err = svc.CompleteOrder(ctx, order.ID, order.BuyerID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "user_id = ?", order.SellerID).Error)
	assert.Equal(t, int64(200000), wallet.Balance, "double accept must not double the release")
}

func TestService_CompleteOrderWrongActor(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusInProgress, 200000)

	_, err := svc.CompleteOrder(context.Background(), order.ID, order.SellerID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))
}

func TestService_CompleteOrderPendingPayment(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusPendingPayment, 200000)

	_, err := svc.CompleteOrder(context.Background(), order.ID, order.BuyerID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))
}

func TestService_DetailAuthorization(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusInProgress, 100000)
	ctx := context.Background()

	_, err := svc.Detail(ctx, order.ID, order.BuyerID, enums.UserRoleUser)
	require.NoError(t, err)

	_, err = svc.Detail(ctx, order.ID, uuid.New(), enums.UserRoleUser)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))

	_, err = svc.Detail(ctx, order.ID, uuid.New(), enums.UserRoleAdmin)
	require.NoError(t, err)
}
