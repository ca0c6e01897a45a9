package payments

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	ServerKey() string
	CreateSnapTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

// SettlementOutcome tells the webhook controller how a notification was applied.
type SettlementOutcome string

const (
	OutcomeSettled          SettlementOutcome = "settled"
	OutcomeAlreadyProcessed SettlementOutcome = "already_processed"
	OutcomePending          SettlementOutcome = "pending"
	OutcomeExpired          SettlementOutcome = "expired"
	OutcomeCancelled        SettlementOutcome = "cancelled"
)

// CallbackNotification mirrors the gateway's webhook payload.
type CallbackNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`

	// Raw is the unmodified request body, persisted with the settlement event.
	Raw json.RawMessage `json:"-"`
}

// CallbackResult reports the applied outcome for one webhook delivery.
type CallbackResult struct {
	Outcome SettlementOutcome
	OrderID uuid.UUID
}

// CreatePaymentInput opens (or reuses) a hosted payment session for an order.
type CreatePaymentInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
}

// Service owns the payment lifecycle: session creation and webhook settlement.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, error)
	HandleCallback(ctx context.Context, notification CallbackNotification) (*CallbackResult, error)
}

type service struct {
	repo      Repository
	orderRepo orders.Repository
	gateway   gateway
	outbox    outboxEmitter
	notifier  notifications.Service
	tx        txRunner
	logg      *logger.Logger
}

// NewService builds a payment service with the required dependencies.
func NewService(
	repo Repository,
	orderRepo orders.Repository,
	gw gateway,
	emitter outboxEmitter,
	notifier notifications.Service,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
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
		repo:      repo,
		orderRepo: orderRepo,
		gateway:   gw,
		outbox:    emitter,
		notifier:  notifier,
		tx:        tx,
		logg:      logg,
	}, nil
}

func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.orderRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, fmt.Errorf("finding order: %w", err)
	}
	if order.BuyerID != input.ActorUserID {
		return nil, errors.New(errors.CodeForbidden, "only the buyer can pay for the order")
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("order is %s and cannot be paid", order.Status))
	}

	payment, err := s.repo.FindByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		if payment.Status != enums.PaymentStatusPending {
			return nil, errors.New(errors.CodeStateConflict,
				fmt.Sprintf("payment is already %s", payment.Status))
		}
		if payment.GatewayToken != nil && *payment.GatewayToken != "" {
			return payment, nil
		}
	case stdErrors.Is(err, gorm.ErrRecordNotFound):
		payment = &models.Payment{
			OrderID: order.ID,
			Amount:  order.Price,
			Status:  enums.PaymentStatusPending,
		}
		if err := s.repo.Create(ctx, payment); err != nil {
			return nil, fmt.Errorf("creating payment: %w", err)
		}
	default:
		return nil, fmt.Errorf("finding payment: %w", err)
	}

	snap, err := s.gateway.CreateSnapTransaction(ctx, midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:     order.ID.String(),
			GrossAmount: order.Price,
		},
		ItemDetails: []midtrans.ItemDetail{{
			ID:       order.ServiceID.String(),
			Price:    order.Price,
			Quantity: 1,
			Name:     order.Title,
		}},
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "creating gateway session")
	}

	if err := s.repo.UpdateGatewaySession(ctx, payment.ID, snap.Token, snap.RedirectURL); err != nil {
		return nil, fmt.Errorf("storing gateway session: %w", err)
	}
	payment.GatewayToken = &snap.Token
	payment.GatewayRedirectURL = &snap.RedirectURL

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "gateway payment session created")
	return payment, nil
}

func (s *service) HandleCallback(ctx context.Context, notification CallbackNotification) (*CallbackResult, error) {
	if !midtrans.ValidSignature(
		notification.OrderID,
		notification.StatusCode,
		notification.GrossAmount,
		s.gateway.ServerKey(),
		notification.SignatureKey,
	) {
		return nil, errors.New(errors.CodeInvalidSignature, "webhook signature verification failed")
	}

	orderID, err := uuid.Parse(notification.OrderID)
	if err != nil {
		return nil, errors.New(errors.CodeValidation, "order id is not a valid uuid")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "payment not found for order")
		}
		return nil, fmt.Errorf("finding payment: %w", err)
	}

	gross, err := decimal.NewFromString(notification.GrossAmount)
	if err != nil {
		return nil, errors.New(errors.CodeValidation, "gross amount is not a number")
	}
	if !gross.Equal(decimal.NewFromInt(payment.Amount)) {
		return nil, errors.New(errors.CodeValidation, "gross amount does not match the payment")
	}

	target, err := mapTransactionStatus(notification.TransactionStatus)
	if err != nil {
		return nil, err
	}

	var transactionID, paymentMethod *string
	if notification.TransactionID != "" {
		transactionID = &notification.TransactionID
	}
	if notification.PaymentType != "" {
		paymentMethod = &notification.PaymentType
	}

	result := &CallbackResult{OrderID: orderID}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		switch target {
		case enums.PaymentStatusSettlement:
			settledNow, err := repo.MarkSettled(ctx, orderID, transactionID, paymentMethod)
			if err != nil {
				return fmt.Errorf("marking payment settled: %w", err)
			}
			if !settledNow {
				result.Outcome = OutcomeAlreadyProcessed
				return nil
			}

			emitted, err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentSettled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Data: outbox.SettlementEvent{
					OrderID:    orderID,
					PaymentID:  payment.ID,
					Amount:     payment.Amount,
					RawPayload: notification.Raw,
				},
			})
			if err != nil {
				return err
			}
			if !emitted {
				s.logg.Warn(ctx, "settlement event already staged for order")
			}
			result.Outcome = OutcomeSettled
			return nil

		case enums.PaymentStatusPending:
			result.Outcome = OutcomePending
			return nil

		default:
			transitioned, err := repo.TransitionFromPending(ctx, orderID, target, transactionID, paymentMethod)
			if err != nil {
				return fmt.Errorf("transitioning payment: %w", err)
			}
			if !transitioned {
				result.Outcome = OutcomeAlreadyProcessed
				return nil
			}
			if target == enums.PaymentStatusExpire {
				result.Outcome = OutcomeExpired
			} else {
				result.Outcome = OutcomeCancelled
			}
			return s.cancelUnpaidOrder(ctx, tx, orderID)
		}
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, fmt.Sprintf("webhook applied with outcome %s", result.Outcome))
	return result, nil
}

// cancelUnpaidOrder releases an order whose payment will never arrive.
func (s *service) cancelUnpaidOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	orderRepo := s.orderRepo.WithTx(tx)

	order, err := orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "order not found")
		}
		return fmt.Errorf("finding order: %w", err)
	}

	cancelled, err := orderRepo.TransitionStatus(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPendingPayment},
		enums.OrderStatusCancelled)
	if err != nil {
		return fmt.Errorf("cancelling order: %w", err)
	}
	if !cancelled {
		return nil
	}

	_, err = s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
		UserID:  order.BuyerID,
		Type:    enums.NotificationTypeOrder,
		Content: fmt.Sprintf("Your order %q was cancelled because the payment was not completed.", order.Title),
	})
	return err
}

func mapTransactionStatus(status string) (enums.PaymentStatus, error) {
	switch status {
	case "settlement", "capture":
		return enums.PaymentStatusSettlement, nil
	case "pending":
		return enums.PaymentStatusPending, nil
	case "expire":
		return enums.PaymentStatusExpire, nil
	case "cancel", "deny":
		return enums.PaymentStatusCancelled, nil
	default:
		return "", errors.New(errors.CodeStateConflict,
			fmt.Sprintf("unrecognized transaction status %q", status))
	}
}
