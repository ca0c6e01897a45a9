package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pradiptarana/jokipay-backend/api/responses"
	"github.com/pradiptarana/jokipay-backend/internal/payments"
	pkgerrors "github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
	"github.com/pradiptarana/jokipay-backend/pkg/metrics"
)

const (
	webhookBodyLimit   = 1 << 20
	webhookGuardScope  = "midtrans-webhook"
	webhookGuardExpiry = 24 * time.Hour
)

type settlementService interface {
	HandleCallback(ctx context.Context, notification payments.CallbackNotification) (*payments.CallbackResult, error)
}

type orderActivator interface {
	HandlePaymentSuccess(ctx context.Context, orderID uuid.UUID) error
}

type idempotencyGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

// MidtransWebhook applies gateway payment notifications to the ledger.
func MidtransWebhook(
	svc settlementService,
	activator orderActivator,
	guard idempotencyGuard,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		if svc == nil || activator == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		var notification payments.CallbackNotification
		if err := json.Unmarshal(payload, &notification); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification"))
			return
		}
		notification.Raw = payload

		if notification.OrderID == "" || notification.TransactionStatus == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id and transaction_status are required"))
			return
		}

		guardKey := guard.IdempotencyKey(webhookGuardScope,
			notification.OrderID+":"+notification.TransactionStatus)
		fresh, err := guard.SetNX(ctx, guardKey, time.Now().UTC().Format(time.RFC3339), webhookGuardExpiry)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if !fresh {
			settlementMetrics.ObserveWebhook(string(payments.OutcomeAlreadyProcessed), time.Since(start))
			responses.WriteSuccess(w, map[string]string{"outcome": string(payments.OutcomeAlreadyProcessed)})
			return
		}

		result, err := svc.HandleCallback(ctx, notification)
		if err != nil {
			_ = guard.Del(ctx, guardKey)
			settlementMetrics.ObserveWebhook("error", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// A retried delivery can land after the payment settled but before
		// the order moved forward, so activation runs for both outcomes.
		// HandlePaymentSuccess is safe to repeat.
		if result.Outcome == payments.OutcomeSettled || result.Outcome == payments.OutcomeAlreadyProcessed {
			if err := activator.HandlePaymentSuccess(ctx, result.OrderID); err != nil {
				_ = guard.Del(ctx, guardKey)
				settlementMetrics.ObserveWebhook("error", time.Since(start))
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		settlementMetrics.ObserveWebhook(string(result.Outcome), time.Since(start))
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("midtrans notification for order %s applied as %s", result.OrderID, result.Outcome))
		}
		responses.WriteSuccess(w, map[string]string{
			"outcome":  string(result.Outcome),
			"order_id": result.OrderID.String(),
		})
	}
}
