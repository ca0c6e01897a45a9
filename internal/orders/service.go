package orders

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletCreditor interface {
	CreditInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input ledger.PostInput) (*models.WalletTransaction, error)
}

// Service drives order lifecycle transitions.
type Service interface {
	Detail(ctx context.Context, orderID, actorUserID uuid.UUID, actorRole enums.UserRole) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error)

	// HandlePaymentSuccess moves a paid order into progress. The gateway is
	// the source of truth for money movement, so a settlement that lands
	// after the order was cancelled for an expired payment reactivates it.
	// Safe to call more than once for the same order.
	HandlePaymentSuccess(ctx context.Context, orderID uuid.UUID) error

	// CompleteOrder is the buyer accepting delivered work. It releases the
	// escrowed price to the seller's wallet.
	CompleteOrder(ctx context.Context, orderID, actorUserID uuid.UUID) (*models.Order, error)

	// CompleteOrderInTx runs the completion flow on the caller's
	// transaction. Used by dispute resolution when funds are released to
	// the seller.
	CompleteOrderInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo     Repository
	wallets  walletCreditor
	notifier notifications.Service
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	wallets walletCreditor,
	notifier notifications.Service,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet creditor required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		wallets:  wallets,
		notifier: notifier,
		tx:       tx,
		logg:     logg,
	}, nil
}

func (s *service) Detail(ctx context.Context, orderID, actorUserID uuid.UUID, actorRole enums.UserRole) (*models.Order, error) {
	order, err := s.findOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if actorRole != enums.UserRoleAdmin && order.BuyerID != actorUserID && order.SellerID != actorUserID {
		return nil, errors.New(errors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByBuyerID(ctx, buyerID, limit, offset)
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if sellerID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListBySellerID(ctx, sellerID, limit, offset)
}

func (s *service) HandlePaymentSuccess(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return fmt.Errorf("order id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}

		transitioned, err := repo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPendingPayment, enums.OrderStatusCancelled},
			enums.OrderStatusInProgress)
		if err != nil {
			return fmt.Errorf("transitioning order: %w", err)
		}
		if !transitioned {
			// Duplicate settlement deliveries land here once the first
			// one has moved the order forward.
			ctx = s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Info(ctx, "order already past pending payment")
			return nil
		}

		if _, err := s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
			UserID:  order.SellerID,
			Type:    enums.NotificationTypeOrder,
			Content: fmt.Sprintf("Payment received for %q. You can start working now.", order.Title),
		}); err != nil {
			return err
		}
		_, err = s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
			UserID:  order.BuyerID,
			Type:    enums.NotificationTypeOrder,
			Content: fmt.Sprintf("Your payment for %q was received. The order is now in progress.", order.Title),
		})
		return err
	})
}

func (s *service) CompleteOrder(ctx context.Context, orderID, actorUserID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id required")
	}
	if actorUserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}

	var completed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != actorUserID {
			return errors.New(errors.CodeForbidden, "only the buyer can accept the order")
		}

		if err := s.completeInTx(ctx, tx, order, []enums.OrderStatus{enums.OrderStatusInProgress}); err != nil {
			return err
		}

		completed, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, completed.ID.String())
	s.logg.Info(ctx, "order completed, funds released to seller")
	return completed, nil
}

func (s *service) CompleteOrderInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	order, err := s.findOrder(ctx, s.repo.WithTx(tx), orderID)
	if err != nil {
		return err
	}
	return s.completeInTx(ctx, tx, order,
		[]enums.OrderStatus{enums.OrderStatusInProgress, enums.OrderStatusDisputed})
}

// completeInTx performs the release: status transition, seller credit and
// completed order counter, all on one transaction.
func (s *service) completeInTx(ctx context.Context, tx *gorm.DB, order *models.Order, from []enums.OrderStatus) error {
	repo := s.repo.WithTx(tx)

	transitioned, err := repo.TransitionStatus(ctx, order.ID, from, enums.OrderStatusCompleted)
	if err != nil {
		return fmt.Errorf("transitioning order: %w", err)
	}
	if !transitioned {
		return errors.New(errors.CodeStateConflict,
			fmt.Sprintf("order cannot be completed from status %s", order.Status))
	}

	if _, err := s.wallets.CreditInTx(ctx, tx, order.SellerID, ledger.PostInput{
		Amount:      order.Price,
		Type:        enums.WalletTransactionOrderRelease,
		OrderID:     &order.ID,
		Description: fmt.Sprintf("Funds released for order %q", order.Title),
	}); err != nil {
		return err
	}

	if err := repo.IncrementCompletedOrders(ctx, order.SellerID); err != nil {
		return fmt.Errorf("incrementing completed orders: %w", err)
	}

	_, err = s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypeWallet,
		Content: fmt.Sprintf("Rp %d has been released to your wallet for order %q.", order.Price, order.Title),
	})
	return err
}

func (s *service) findOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, fmt.Errorf("finding order: %w", err)
	}
	return order, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
