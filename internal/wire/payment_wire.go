package wire

import (
	"payment-orchestrator/internal/adaptor"
	"payment-orchestrator/pkg/middleware"
	"payment-orchestrator/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	// Caller identity sudah diverifikasi oleh signature gateway di depan service ini

	// POST /{providerGroup}/payment - Run a payment through the fallback chain
	r.Post("/{providerGroup}/payment", paymentHandler.ProcessPayment)

	// GET /payment/verify/{transactionId} - Ask the provider about a payment
	r.Get("/payment/verify/{transactionId}", paymentHandler.VerifyPayment)

	// POST /payment/refund/{transactionId} - Full or partial refund
	r.Post("/payment/refund/{transactionId}", paymentHandler.RefundPayment)

	// GET /payment/{transactionId} - Transaction with its attempts
	r.Get("/payment/{transactionId}", paymentHandler.GetTransaction)

	// ==================== ADMIN ROUTES ====================
	r.Route("/admin/payments", func(r chi.Router) {
		r.Use(middleware.Admin(config.Admin.KeyHash, log))

		// GET /admin/payments/pending - Runs still pending or processing
		r.Get("/pending", paymentHandler.ListPending)

		// GET /admin/payments/recent?window=24h - Transactions created inside the window
		r.Get("/recent", paymentHandler.ListRecent)

		// GET /admin/payments/{transactionId} - Detail with provider diagnostics and audit trail
		r.Get("/{transactionId}", paymentHandler.GetTransactionAdmin)

		// POST /admin/payments/{transactionId}/cancel
		r.Post("/{transactionId}/cancel", paymentHandler.CancelPayment)

		// POST /admin/payments/{transactionId}/dispute
		r.Post("/{transactionId}/dispute", paymentHandler.OpenDispute)

		// POST /admin/payments/{transactionId}/dispute/resolve
		r.Post("/{transactionId}/dispute/resolve", paymentHandler.ResolveDispute)
	})
}
