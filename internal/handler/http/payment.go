package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vipogroup/vipo-orders/internal/service"
	"github.com/vipogroup/vipo-orders/pkg/httputil"
	"github.com/vipogroup/vipo-orders/pkg/validator"
)

// PaymentHandler handles HTTP ingestion of payment gateway events. Signature
// verification happens at the gateway adapter in front of this service.
type PaymentHandler struct {
	reconciler *service.Reconciler
	logger     *slog.Logger
}

// NewPaymentHandler creates a new payment event HTTP handler.
func NewPaymentHandler(reconciler *service.Reconciler, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// PaymentEventRequest is the JSON request body for a payment gateway event.
type PaymentEventRequest struct {
	EventID       string `json:"event_id" validate:"required"`
	OrderID       string `json:"order_id" validate:"required,uuid"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type" validate:"required"`
	Amount        int64  `json:"amount" validate:"gte=0"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	Source        string `json:"source"`
}

// IngestPaymentEvent handles POST /api/v1/payments/events
func (h *PaymentHandler) IngestPaymentEvent(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req PaymentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	paymentEvent, err := h.reconciler.Ingest(r.Context(), service.IngestPaymentEventInput{
		EventID:       req.EventID,
		OrderID:       req.OrderID,
		TransactionID: req.TransactionID,
		Type:          req.Type,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Source:        req.Source,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: paymentEvent})
}

// ListOrderPaymentEvents handles GET /api/v1/orders/{id}/payment-events
func (h *PaymentHandler) ListOrderPaymentEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	events, err := h.reconciler.OrderPaymentEvents(r.Context(), id.String())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: events})
}
