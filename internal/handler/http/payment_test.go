package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/service"
	pkgkafka "github.com/vipogroup/vipo-orders/pkg/kafka"
)

// --- Mock Payment Event Repository ---

type mockPaymentEventRepository struct {
	mock.Mock
}

func (m *mockPaymentEventRepository) Create(ctx context.Context, e *domain.PaymentEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockPaymentEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.PaymentEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentEvent), args.Error(1)
}

func (m *mockPaymentEventRepository) MarkStatus(ctx context.Context, eventID, status, processingError string) error {
	args := m.Called(ctx, eventID, status, processingError)
	return args.Error(0)
}

func (m *mockPaymentEventRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentEvent), args.Error(1)
}

// --- Test Helpers ---

func testPaymentHandler(
	events *mockPaymentEventRepository,
	orders *mockOrderRepository,
	audit *mockAuditLogRepository,
) *PaymentHandler {
	logger := testLogger()
	lifecycle := service.NewOrderLifecycle(orders, audit, testEventProducer(), logger)
	seen := pkgkafka.NewMemoryIdempotencyStore(time.Hour)
	reconciler := service.NewReconciler(events, lifecycle, seen, logger)
	return NewPaymentHandler(reconciler, logger)
}

func setupPaymentRouter(handler *PaymentHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Post("/events", handler.IngestPaymentEvent)
	})
	r.Get("/api/v1/orders/{id}/payment-events", handler.ListOrderPaymentEvents)
	return r
}

// --- Tests ---

func TestIngestPaymentEvent_HTTP_Accepted(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	router := setupPaymentRouter(testPaymentHandler(events, orders, audit))

	order := sampleOrder()
	events.On("Create", mock.Anything, mock.AnythingOfType("*domain.PaymentEvent")).Return(nil)
	events.On("MarkStatus", mock.Anything, "evt-001", domain.PaymentEventStatusProcessed, "").Return(nil)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	orders.On("UpdateStatus", mock.Anything, order.ID, mock.AnythingOfType("repository.StatusUpdate")).Return(nil)
	audit.On("Create", mock.Anything, mock.AnythingOfType("*domain.AuditEntry")).Return(nil)

	body, _ := json.Marshal(PaymentEventRequest{
		EventID:  "evt-001",
		OrderID:  order.ID,
		Type:     domain.PaymentEventSuccess,
		Amount:   10000,
		Currency: "ILS",
		Source:   "tranzila",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	orders.AssertExpectations(t)
}

func TestIngestPaymentEvent_HTTP_ValidationError(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	router := setupPaymentRouter(testPaymentHandler(events, orders, audit))

	// Missing event_id and a non-UUID order_id.
	body, _ := json.Marshal(PaymentEventRequest{OrderID: "not-a-uuid", Type: "success"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListOrderPaymentEvents_HTTP(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	router := setupPaymentRouter(testPaymentHandler(events, orders, audit))

	stored := []domain.PaymentEvent{
		{ID: "pe-1", EventID: "evt-001", OrderID: testOrderID, Type: domain.PaymentEventSuccess, Status: domain.PaymentEventStatusProcessed},
	}
	events.On("ListByOrder", mock.Anything, testOrderID).Return(stored, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+testOrderID+"/payment-events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.NotNil(t, resp.Data)
}
