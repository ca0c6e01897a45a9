package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pradiptarana/jokipay-backend/api/controllers"
	webhookcontrollers "github.com/pradiptarana/jokipay-backend/api/controllers/webhooks"
	"github.com/pradiptarana/jokipay-backend/api/middleware"
	"github.com/pradiptarana/jokipay-backend/internal/disputes"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/internal/orders"
	"github.com/pradiptarana/jokipay-backend/internal/payments"
	"github.com/pradiptarana/jokipay-backend/internal/wallets"
	"github.com/pradiptarana/jokipay-backend/pkg/config"
	"github.com/pradiptarana/jokipay-backend/pkg/db"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
	"github.com/pradiptarana/jokipay-backend/pkg/metrics"
	"github.com/pradiptarana/jokipay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	settlementMetrics *metrics.SettlementMetrics,
	walletService wallets.Service,
	orderService orders.Service,
	paymentService payments.Service,
	disputeService disputes.Service,
	notificationService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/webhook", webhookcontrollers.MidtransWebhook(
			paymentService, orderService, redisClient, settlementMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(walletService, logg))
			r.Get("/history", controllers.WalletHistory(walletService, logg))
			r.Route("/payout-accounts", func(r chi.Router) {
				r.Get("/", controllers.PayoutAccountList(walletService, logg))
				r.Post("/", controllers.PayoutAccountCreate(walletService, logg))
				r.Delete("/{payoutAccountId}", controllers.PayoutAccountDelete(walletService, logg))
			})
			r.Route("/payout-requests", func(r chi.Router) {
				r.Get("/", controllers.PayoutRequestList(walletService, logg))
				r.Post("/", controllers.PayoutRequestCreate(walletService, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(orderService, logg))
			r.Post("/{orderId}/pay", controllers.OrderPay(paymentService, logg))
			r.Post("/{orderId}/complete", controllers.OrderComplete(orderService, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/orders/{orderId}", controllers.DisputeOpen(disputeService, logg))
			r.Get("/{disputeId}", controllers.DisputeDetail(disputeService, logg))
			r.Post("/{disputeId}/messages", controllers.DisputeMessageCreate(disputeService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/pending", controllers.AdminPendingPayouts(walletService, logg))
			r.Post("/{payoutRequestId}/approve", controllers.AdminApprovePayout(walletService, logg))
			r.Post("/{payoutRequestId}/reject", controllers.AdminRejectPayout(walletService, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Get("/open", controllers.AdminOpenDisputes(disputeService, logg))
			r.Post("/{disputeId}/resolve", controllers.AdminResolveDispute(disputeService, logg))
		})
	})

	return r
}
