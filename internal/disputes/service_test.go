package disputes

import (
	"context"
	stdErrors "errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/internal/orders"
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

func setupDisputesTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE IF NOT EXISTS disputes (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  opened_by_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  resolution TEXT,
  resolved_by_id TEXT,
  admin_notes TEXT,
  resolved_at DATETIME,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS dispute_messages (
  id TEXT PRIMARY KEY,
  dispute_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  body TEXT NOT NULL,
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

func newDisputeTestService(t *testing.T, db *gorm.DB, notifier notifications.Service) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "disputes-test", Output: io.Discard})

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	if notifier == nil {
		notifier, err = notifications.NewService(notifications.NewRepository(db))
		require.NoError(t, err)
	}

	walletRepo := wallets.NewRepository(db)
	walletSvc, err := wallets.NewService(
		walletRepo,
		ledgerSvc,
		notifier,
		gormTxRunner{db: db},
		config.PayoutConfig{MinimumAmount: 50000},
		nil,
		logg,
	)
	require.NoError(t, err)

	orderSvc, err := orders.NewService(orders.NewRepository(db), walletSvc, notifier, gormTxRunner{db: db}, logg)
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		orders.NewRepository(db),
		orderSvc,
		walletRepo,
		ledgerSvc,
		notifier,
		gormTxRunner{db: db},
		logg,
	)
	require.NoError(t, err)
	return svc
}

func seedDisputableOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, price int64) *models.Order {
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
		Title:     "Website fixes",
		Price:     price,
		Status:    status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedBuyerWallet(t *testing.T, db *gorm.DB, order *models.Order, balance int64) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{ID: uuid.New(), UserID: order.BuyerID, Balance: balance}
	require.NoError(t, db.Create(wallet).Error)
	return wallet
}

func TestService_OpenDispute(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusInProgress, 150000)
	ctx := context.Background()

	dispute, err := svc.Open(ctx, OpenInput{
		OrderID:     order.ID,
		ActorUserID: order.BuyerID,
		Reason:      "Work was never delivered",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusOpen, dispute.Status)

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusDisputed, updated.Status)

	var message models.DisputeMessage
	require.NoError(t, db.First(&message, "dispute_id = ?", dispute.ID).Error)
	assert.Equal(t, "Work was never delivered", message.Body)
	assert.Equal(t, order.BuyerID, message.SenderID)

	var notification models.Notification
	require.NoError(t, db.Where("user_id = ?", order.SellerID).First(&notification).Error)
	assert.Equal(t, enums.NotificationTypeDispute, notification.Type)

	// A second dispute on the same order is refused.
	_, err = svc.Open(ctx, OpenInput{
		OrderID:     order.ID,
		ActorUserID: order.SellerID,
		Reason:      "Counter claim",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConflict))
}

func TestService_OpenDisputeWrongState(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusPendingPayment, 150000)

	_, err := svc.Open(context.Background(), OpenInput{
		OrderID:     order.ID,
		ActorUserID: order.BuyerID,
		Reason:      "Too early",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))
}

func TestService_OpenDisputeStranger(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusInProgress, 150000)

	_, err := svc.Open(context.Background(), OpenInput{
		OrderID:     order.ID,
		ActorUserID: uuid.New(),
		Reason:      "Not my order",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))
}

func TestService_ResolveRefundToBuyer(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusInProgress, 150000)
	wallet := seedBuyerWallet(t, db, order, 25000)
	ctx := context.Background()

	dispute, err := svc.Open(ctx, OpenInput{OrderID: order.ID, ActorUserID: order.BuyerID, Reason: "No delivery"})
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, ResolveInput{
		DisputeID:   dispute.ID,
		AdminUserID: uuid.New(),
		Resolution:  enums.DisputeResolutionRefundToBuyer,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, enums.DisputeResolutionRefundToBuyer, *resolved.Resolution)

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusResolved, updated.Status)

	var refreshed models.Wallet
	require.NoError(t, db.First(&refreshed, "id = ?", wallet.ID).Error)
	assert.Equal(t, int64(175000), refreshed.Balance)

	var posting models.WalletTransaction
	require.NoError(t, db.First(&posting, "order_id = ? AND type = ?", order.ID, enums.WalletTransactionDisputeRefund).Error)
	assert.Equal(t, int64(150000), posting.Amount)
}

func TestService_ResolveRefundWithoutBuyerWallet(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusInProgress, 150000)
	ctx := context.Background()

	dispute, err := svc.Open(ctx, OpenInput{OrderID: order.ID, ActorUserID: order.BuyerID, Reason: "No delivery"})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, ResolveInput{
		DisputeID:   dispute.ID,
		AdminUserID: uuid.New(),
		Resolution:  enums.DisputeResolutionRefundToBuyer,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	// The whole resolution rolls back.
	var unchanged models.Dispute
	require.NoError(t, db.First(&unchanged, "id = ?", dispute.ID).Error)
	assert.Equal(t, enums.DisputeStatusOpen, unchanged.Status)

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusDisputed, updated.Status)
}

func TestService_ResolveReleaseToSeller(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusInProgress, 150000)
	ctx := context.Background()

	dispute, err := svc.Open(ctx, OpenInput{OrderID: order.ID, ActorUserID: order.BuyerID, Reason: "Quality issue"})
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, ResolveInput{
		DisputeID:   dispute.ID,
		AdminUserID: uuid.New(),
		Resolution:  enums.DisputeResolutionReleaseToSeller,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, resolved.Status)

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCompleted, updated.Status)

	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "user_id = ?", order.SellerID).Error)
	assert.Equal(t, int64(150000), wallet.Balance)

	var seller models.User
	require.NoError(t, db.First(&seller, "id = ?", order.SellerID).Error)
	assert.Equal(t, 1, seller.CompletedOrders)
}

func TestService_ResolveTwice(t *testing.T) {
	db := setupDisputesTestDB(t)
	svc := newDisputeTestService(t, db, nil)
	order := seedDisputableOrder(t, db, enums.OrderStatusInProgress, 150000)
	ctx := context.Background()

	dispute, err := svc.Open(ctx, OpenInput{OrderID: order.ID, ActorUserID: order.BuyerID, Reason: "No delivery"})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, ResolveInput{
		DisputeID:   dispute.ID,
		AdminUserID: uuid.New(),
		Resolution:  enums.DisputeResolutionReleaseToSeller,
	})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, ResolveInput{
		DisputeID:   dispute.ID,
		AdminUserID: uuid.New(),
		Resolution:  enums.DisputeResolutionRefundToBuyer,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "user_id = ?", order.SellerID).Error)
	assert.Equal(t, int64(150000), wallet.Balance, "second verdict must not move funds")
}

type failingNotifier struct {
	notifications.Service
}

func (failingNotifier) CreateInTx(ctx context.Context, tx *gorm.DB, input notifications.CreateInput) (*models.Notification, error) {
	return nil, stdErrors.New("notification store unavailable")
}

func TestService_ResolveRollsBackWhenNotificationFails(t *testing.T) {
	db := setupDisputesTestDB(t)

	real, err := notifications.NewService(notifications.NewRepository(db))
	require.NoError(t, err)
	svc := newDisputeTestService(t, db, failingNotifier{Service: real})

	order := seedDisputableOrder(t, db, enums.OrderStatusDisputed, 150000)
	seedBuyerWallet(t, db, order, 0)

	dispute := &models.Dispute{
		ID:         uuid.New(),
		OrderID:    order.ID,
		OpenedByID: order.BuyerID,
		Status:     enums.DisputeStatusOpen,
	}
	require.NoError(t, db.Create(dispute).Error)

	_, err = svc.Resolve(context.Background(), ResolveInput{
		DisputeID:   dispute.ID,
		AdminUserID: uuid.New(),
		Resolution:  enums.DisputeResolutionRefundToBuyer,
	})
	require.Error(t, err)

	var unchanged models.Dispute
	require.NoError(t, db.First(&unchanged, "id = ?", dispute.ID).Error)
	assert.Equal(t, enums.DisputeStatusOpen, unchanged.Status, "failed notification must roll back the verdict")

	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "user_id = ?", order.BuyerID).Error)
	assert.Zero(t, wallet.Balance)
}
