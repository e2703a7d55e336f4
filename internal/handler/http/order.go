package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/repository"
	"github.com/vipogroup/vipo-orders/internal/service"
	"github.com/vipogroup/vipo-orders/pkg/httputil"
	"github.com/vipogroup/vipo-orders/pkg/pagination"
	"github.com/vipogroup/vipo-orders/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	TenantID         string `json:"tenant_id" validate:"required"`
	UserID           string `json:"user_id" validate:"required"`
	AgentID          string `json:"agent_id"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	SubtotalAmount   int64  `json:"subtotal_amount" validate:"gte=0"`
	TotalAmount      int64  `json:"total_amount" validate:"gte=0"`
	Currency         string `json:"currency" validate:"required,len=3"`
	CommissionAmount int64  `json:"commission_amount" validate:"gte=0"`
	Notes            string `json:"notes"`
}

// UpdateStatusRequest is the JSON request body for updating order status.
// Status accepts legacy and gateway spellings; they are normalized before the
// transition graph is consulted.
type UpdateStatusRequest struct {
	Status        string `json:"status" validate:"required"`
	PaymentStatus string `json:"payment_status"`
	Reason        string `json:"reason"`
	AllowIllegal  bool   `json:"allow_illegal"`
}

// CancelOrderRequest is the JSON request body for canceling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// actorFromRequest derives the acting identity from the gateway-set headers.
// Absent headers mean an ordinary user call.
func actorFromRequest(r *http.Request) domain.Actor {
	role := r.Header.Get("X-Actor-Role")
	id := r.Header.Get("X-Actor-Id")
	email := r.Header.Get("X-Actor-Email")

	switch role {
	case domain.ActorTypeAdmin:
		return domain.AdminActor(id, email)
	case domain.ActorTypeSystem:
		return domain.SystemActor()
	default:
		return domain.Actor{Type: domain.ActorTypeUser, ID: id, Email: email}
	}
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateOrderRequest
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

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		TenantID:         req.TenantID,
		UserID:           req.UserID,
		AgentID:          req.AgentID,
		Status:           req.Status,
		PaymentStatus:    req.PaymentStatus,
		SubtotalAmount:   req.SubtotalAmount,
		TotalAmount:      req.TotalAmount,
		Currency:         req.Currency,
		CommissionAmount: req.CommissionAmount,
		Notes:            req.Notes,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.OrderFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := r.URL.Query().Get("tenant_id"); v != "" {
		filter.TenantID = &v
	}
	if v := r.URL.Query().Get("agent_id"); v != "" {
		filter.AgentID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.NormalizeOrderStatus(v)
		filter.Status = &status
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(orders, total, params))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrderStatus handles PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStatusRequest
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

	actor := actorFromRequest(r)
	if req.AllowIllegal && actor.Type != domain.ActorTypeAdmin {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "FORBIDDEN",
				Message: "allow_illegal requires the admin role",
			},
		})
		return
	}

	result, err := h.service.UpdateOrderStatus(r.Context(), service.ApplyStatusUpdateInput{
		OrderID:           id.String(),
		NextStatus:        req.Status,
		NextPaymentStatus: req.PaymentStatus,
		Actor:             actor,
		Reason:            req.Reason,
		AllowIllegal:      req.AllowIllegal,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for cancel; default reason is empty.
		req = CancelOrderRequest{}
	}

	result, err := h.service.CancelOrder(r.Context(), id.String(), req.Reason, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// GetOrderAudit handles GET /api/v1/orders/{id}/audit
func (h *OrderHandler) GetOrderAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "limit must be a valid positive integer"},
			})
			return
		}
		limit = n
	}

	entries, err := h.service.OrderAuditTrail(r.Context(), id.String(), limit)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}
