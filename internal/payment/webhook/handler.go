package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/transport"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TokenHeader carries the shared callback token configured on the gateway.
const TokenHeader = "x-callback-token"

const maxBodyBytes = 1 << 20

// Payload is the invoice callback the gateway posts.
type Payload struct {
	ID         string           `json:"id"`
	ExternalID string           `json:"external_id"`
	Status     string           `json:"status"`
	Amount     *decimal.Decimal `json:"amount"`
	PaidAt     *time.Time       `json:"paid_at,omitempty"`
}

type Reconciler interface {
	ReconcilePayment(ctx context.Context, orderID string, target order.Status, amount *decimal.Decimal) (order.Outcome, error)
}

type Handler struct {
	orders Reconciler
	repo   payment.Repository
	token  string
}

func NewHandler(orders Reconciler, repo payment.Repository, token string) *Handler {
	return &Handler{orders: orders, repo: repo, token: token}
}

type message struct {
	Message string `json:"message"`
}

// Handle answers 200 to every authenticated delivery. Failures past the
// token check are logged.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("layer", "handler"), zap.String("method", "PaymentWebhook"))

	if !h.authorized(r) {
		log.Warn("rejected callback with bad token")
		transport.WriteBody(w, r, http.StatusUnauthorized, message{"Unauthorized"})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read callback body", zap.Error(err))
		h.ack(w, r)
		return
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn("malformed callback body", zap.Error(err))
		h.ack(w, r)
		return
	}
	log = log.With(
		zap.String("invoice_id", p.ID),
		zap.String("order_id", p.ExternalID),
		zap.String("status", p.Status),
	)

	callbackID, duplicate, err := h.repo.SaveCallback(ctx, payment.Callback{
		InvoiceID:  p.ID,
		ExternalID: p.ExternalID,
		Status:     p.Status,
		Amount:     p.Amount,
		PaidAt:     p.PaidAt,
	})
	if err != nil {
		log.Warn("failed to record callback", zap.Error(err))
	} else if duplicate {
		log.Info("repeat delivery")
	}

	target, ok := targetStatus(p.Status)
	if !ok {
		log.Info("ignoring callback status")
		h.ack(w, r)
		return
	}

	outcome, err := h.orders.ReconcilePayment(ctx, p.ExternalID, target, p.Amount)
	if err != nil {
		log.Error("failed to reconcile payment", zap.Error(err))
		h.ack(w, r)
		return
	}
	log.Info("callback reconciled", zap.String("outcome", string(outcome)))

	if err := h.repo.UpdatePaymentStatus(ctx, p.ID, p.Status, p.PaidAt); err != nil {
		log.Warn("failed to update payment record", zap.Error(err))
	}
	if callbackID != 0 {
		if err := h.repo.MarkCallbackProcessed(ctx, callbackID, string(outcome)); err != nil {
			log.Warn("failed to mark callback processed", zap.Error(err))
		}
	}

	h.ack(w, r)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got := r.Header.Get(TokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func (h *Handler) ack(w http.ResponseWriter, r *http.Request) {
	transport.WriteBody(w, r, http.StatusOK, message{"Webhook received"})
}

func targetStatus(invoiceStatus string) (order.Status, bool) {
	switch invoiceStatus {
	case payment.InvoicePaid, payment.InvoiceSettled:
		return order.StatusPaid, true
	case payment.InvoiceExpired, payment.InvoiceFailed:
		return order.StatusPending, true
	}
	return "", false
}
