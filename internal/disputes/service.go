package disputes

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/internal/orders"
	"github.com/pradiptarana/jokipay-backend/internal/wallets"
	"github.com/pradiptarana/jokipay-backend/pkg/db"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCompleter interface {
	CompleteOrderInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// OpenInput captures a new dispute from a buyer or seller.
type OpenInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	Reason      string
}

// ResolveInput carries an admin verdict on an open dispute.
type ResolveInput struct {
	DisputeID   uuid.UUID
	AdminUserID uuid.UUID
	Resolution  enums.DisputeResolution
	AdminNotes  *string
}

// Detail bundles a dispute with its message thread.
type Detail struct {
	Dispute  models.Dispute
	Messages []models.DisputeMessage
}

// Service owns dispute lifecycle: opening, messaging and admin resolution.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID, actorUserID uuid.UUID, actorRole enums.UserRole) (*Detail, error)
	AddMessage(ctx context.Context, disputeID, actorUserID uuid.UUID, actorRole enums.UserRole, body string) (*models.DisputeMessage, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
}

type service struct {
	repo       Repository
	orderRepo  orders.Repository
	orderSvc   orderCompleter
	walletRepo wallets.Repository
	ledger     ledger.Service
	notifier   notifications.Service
	tx         txRunner
	logg       *logger.Logger
}

// NewService builds a dispute service with the required dependencies.
func NewService(
	repo Repository,
	orderRepo orders.Repository,
	orderSvc orderCompleter,
	walletRepo wallets.Repository,
	ledgerSvc ledger.Service,
	notifier notifications.Service,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order completer required")
	}
	if walletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
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
		repo:       repo,
		orderRepo:  orderRepo,
		orderSvc:   orderSvc,
		walletRepo: walletRepo,
		ledger:     ledgerSvc,
		notifier:   notifier,
		tx:         tx,
		logg:       logg,
	}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	if input.Reason == "" {
		return nil, errors.New(errors.CodeValidation, "reason is required")
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		order, err := orderRepo.FindByID(ctx, input.OrderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "order not found")
			}
			return fmt.Errorf("finding order: %w", err)
		}
		if order.BuyerID != input.ActorUserID && order.SellerID != input.ActorUserID {
			return errors.New(errors.CodeForbidden, "order belongs to another user")
		}

		transitioned, err := orderRepo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusInProgress},
			enums.OrderStatusDisputed)
		if err != nil {
			return fmt.Errorf("transitioning order: %w", err)
		}
		if !transitioned {
			if order.Status == enums.OrderStatusDisputed {
				return errors.New(errors.CodeConflict, "order already has an open dispute")
			}
			return errors.New(errors.CodeStateConflict,
				fmt.Sprintf("order is %s and cannot be disputed", order.Status))
		}

		dispute = &models.Dispute{
			OrderID:    order.ID,
			OpenedByID: input.ActorUserID,
			Status:     enums.DisputeStatusOpen,
		}
		if err := repo.Create(ctx, dispute); err != nil {
			if db.IsUniqueViolation(err) {
				return errors.New(errors.CodeConflict, "order already has an open dispute")
			}
			return fmt.Errorf("creating dispute: %w", err)
		}

		if err := repo.CreateMessage(ctx, &models.DisputeMessage{
			DisputeID: dispute.ID,
			SenderID:  input.ActorUserID,
			Body:      input.Reason,
		}); err != nil {
			return fmt.Errorf("creating dispute message: %w", err)
		}

		counterparty := order.SellerID
		if input.ActorUserID == order.SellerID {
			counterparty = order.BuyerID
		}
		_, err = s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
			UserID:  counterparty,
			Type:    enums.NotificationTypeDispute,
			Content: fmt.Sprintf("A dispute was opened on order %q.", order.Title),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	s.logg.Info(ctx, "dispute opened")
	return dispute, nil
}

func (s *service) Get(ctx context.Context, disputeID, actorUserID uuid.UUID, actorRole enums.UserRole) (*Detail, error) {
	dispute, order, err := s.findWithOrder(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(order, actorUserID, actorRole); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, dispute.ID)
	if err != nil {
		return nil, fmt.Errorf("listing dispute messages: %w", err)
	}
	return &Detail{Dispute: *dispute, Messages: messages}, nil
}

func (s *service) AddMessage(ctx context.Context, disputeID, actorUserID uuid.UUID, actorRole enums.UserRole, body string) (*models.DisputeMessage, error) {
	if body == "" {
		return nil, errors.New(errors.CodeValidation, "message body is required")
	}

	dispute, order, err := s.findWithOrder(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(order, actorUserID, actorRole); err != nil {
		return nil, err
	}
	if dispute.Status != enums.DisputeStatusOpen {
		return nil, errors.New(errors.CodeStateConflict, "dispute is already resolved")
	}

	message := &models.DisputeMessage{
		DisputeID: dispute.ID,
		SenderID:  actorUserID,
		Body:      body,
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("creating dispute message: %w", err)
	}
	return message, nil
}

func (s *service) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByStatus(ctx, enums.DisputeStatusOpen, limit, offset)
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "dispute id required")
	}
	if input.AdminUserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "admin identity missing")
	}
	if !input.Resolution.IsValid() {
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("invalid resolution %q", input.Resolution))
	}

	var resolved *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		dispute, order, err := s.findWithOrderTx(ctx, tx, input.DisputeID)
		if err != nil {
			return err
		}

		transitioned, err := repo.Resolve(ctx, dispute.ID, input.Resolution, input.AdminUserID, input.AdminNotes)
		if err != nil {
			return fmt.Errorf("resolving dispute: %w", err)
		}
		if !transitioned {
			return errors.New(errors.CodeStateConflict, "dispute is already resolved")
		}

		switch input.Resolution {
		case enums.DisputeResolutionRefundToBuyer:
			if err := s.refundBuyer(ctx, tx, dispute, order); err != nil {
				return err
			}
		case enums.DisputeResolutionReleaseToSeller:
			if err := s.orderSvc.CompleteOrderInTx(ctx, tx, order.ID); err != nil {
				return err
			}
		}

		if err := s.notifyResolution(ctx, tx, order, input.Resolution); err != nil {
			return err
		}

		resolved, err = repo.FindByID(ctx, dispute.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, resolved.OrderID.String())
	s.logg.Info(ctx, fmt.Sprintf("dispute resolved with %s", input.Resolution))
	return resolved, nil
}

// refundBuyer returns the escrowed price to the buyer. The buyer must already
// hold a wallet: a refund is never the first wallet interaction because the
// money entered escrow through this same marketplace.
func (s *service) refundBuyer(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, order *models.Order) error {
	orderRepo := s.orderRepo.WithTx(tx)

	transitioned, err := orderRepo.TransitionStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusDisputed},
		enums.OrderStatusResolved)
	if err != nil {
		return fmt.Errorf("transitioning order: %w", err)
	}
	if !transitioned {
		return errors.New(errors.CodeStateConflict,
			fmt.Sprintf("order is %s and cannot be refunded", order.Status))
	}

	wallet, err := s.walletRepo.WithTx(tx).FindWalletByUserID(ctx, order.BuyerID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "buyer wallet not found")
		}
		return fmt.Errorf("finding buyer wallet: %w", err)
	}

	_, err = s.ledger.Post(ctx, tx, ledger.PostInput{
		WalletID:    wallet.ID,
		Amount:      order.Price,
		Type:        enums.WalletTransactionDisputeRefund,
		OrderID:     &order.ID,
		Description: fmt.Sprintf("Refund for disputed order %q", order.Title),
	})
	return err
}

func (s *service) notifyResolution(ctx context.Context, tx *gorm.DB, order *models.Order, resolution enums.DisputeResolution) error {
	var buyerMsg, sellerMsg string
	switch resolution {
	case enums.DisputeResolutionRefundToBuyer:
		buyerMsg = fmt.Sprintf("The dispute on %q was resolved in your favor. Rp %d was refunded to your wallet.", order.Title, order.Price)
		sellerMsg = fmt.Sprintf("The dispute on %q was resolved in the buyer's favor.", order.Title)
	case enums.DisputeResolutionReleaseToSeller:
		buyerMsg = fmt.Sprintf("The dispute on %q was resolved in the seller's favor.", order.Title)
		sellerMsg = fmt.Sprintf("The dispute on %q was resolved in your favor. Rp %d was released to your wallet.", order.Title, order.Price)
	}

	if _, err := s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
		UserID:  order.BuyerID,
		Type:    enums.NotificationTypeDispute,
		Content: buyerMsg,
	}); err != nil {
		return err
	}
	_, err := s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypeDispute,
		Content: sellerMsg,
	})
	return err
}

func (s *service) findWithOrder(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, *models.Order, error) {
	return s.findWithOrderTx(ctx, nil, disputeID)
}

func (s *service) findWithOrderTx(ctx context.Context, tx *gorm.DB, disputeID uuid.UUID) (*models.Dispute, *models.Order, error) {
	if disputeID == uuid.Nil {
		return nil, nil, errors.New(errors.CodeValidation, "dispute id required")
	}

	dispute, err := s.repo.WithTx(tx).FindByID(ctx, disputeID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.New(errors.CodeNotFound, "dispute not found")
		}
		return nil, nil, fmt.Errorf("finding dispute: %w", err)
	}

	order, err := s.orderRepo.WithTx(tx).FindByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding dispute order: %w", err)
	}
	return dispute, order, nil
}

func authorizeParty(order *models.Order, actorUserID uuid.UUID, actorRole enums.UserRole) error {
	if actorUserID == uuid.Nil {
		return errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	if actorRole == enums.UserRoleAdmin {
		return nil
	}
	if order.BuyerID != actorUserID && order.SellerID != actorUserID {
		return errors.New(errors.CodeForbidden, "dispute belongs to another user")
	}
	return nil
}
