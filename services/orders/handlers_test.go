package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
	Error      string          `json:"error"`
	Path       string          `json:"path"`
	Timestamp  time.Time       `json:"timestamp"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *useCaseFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newUseCaseFixture(t, time.Hour)
	r := gin.New()
	r.Use(requestLogger())
	NewOrderHandler(f.uc, noop.NewTracerProvider().Tracer("test")).RegisterRoutes(r)
	return r, f
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandler_CreateOrder(t *testing.T) {
	// Arrange
	r, f := newTestRouter(t)
	f.gateway.On("ProcessPayment", mock.Anything, mock.Anything).
		Return(&PaymentResponse{PaymentID: "pay-1", Status: PaymentStatusSuccess}, nil).Once()

	// Act
	w, env := doRequest(t, r, http.MethodPost, "/api/orders", map[string]any{
		"userId":      "user-1",
		"totalAmount": 25.5,
		"items":       []map[string]any{{"productId": "p-1", "quantity": 1, "price": 25.5}},
	})

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var order Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, OrderStatusConfirmed, order.Status)
	assert.Equal(t, "pay-1", order.PaymentID)
	assert.Equal(t, "25.5", order.TotalAmount.String())
}

func TestHandler_CreateOrder_Validation(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing user", map[string]any{"totalAmount": 10}},
		{"bad quantity", map[string]any{"userId": "u1", "items": []map[string]any{{"productId": "p", "quantity": 0, "price": 1}}}},
		{"not json", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, r, http.MethodPost, "/api/orders", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, "Bad Request", env.Error)
			assert.Equal(t, "/api/orders", env.Path)
		})
	}
}

func TestHandler_GetOrder_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doRequest(t, r, http.MethodGet, "/api/orders/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "order not found", env.Message)
}

func TestHandler_GetOrderStatus(t *testing.T) {
	r, f := newTestRouter(t)
	order := f.seed(t, OrderStatusConfirmed)

	w, env := doRequest(t, r, http.MethodGet, "/api/orders/"+order.ID+"/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var view OrderStatusView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, order.ID, view.ID)
	assert.Equal(t, OrderStatusConfirmed, view.Status)
}

func TestHandler_ListOrders(t *testing.T) {
	// Arrange
	r, f := newTestRouter(t)
	for i := 0; i < 12; i++ {
		f.seed(t, OrderStatusCreated)
	}

	// Act
	w, env := doRequest(t, r, http.MethodGet, "/api/orders?page=2&limit=5", nil)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var orders []Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Len(t, orders, 5)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 12, env.Pagination.Total)
	assert.Equal(t, 3, env.Pagination.TotalPages)
	assert.True(t, env.Pagination.HasNext)
	assert.True(t, env.Pagination.HasPrev)
}

func TestHandler_ListOrdersByUser(t *testing.T) {
	r, f := newTestRouter(t)
	f.seed(t, OrderStatusCreated)

	w, env := doRequest(t, r, http.MethodGet, "/api/orders/user/user-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.Pagination.Total)

	w, env = doRequest(t, r, http.MethodGet, "/api/orders/user/nobody", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Pagination.Total)
}

func TestHandler_CancelOrder(t *testing.T) {
	r, f := newTestRouter(t)
	confirmed := f.seed(t, OrderStatusConfirmed)
	delivered := f.seed(t, OrderStatusDelivered)

	w, env := doRequest(t, r, http.MethodPatch, "/api/orders/"+confirmed.ID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = doRequest(t, r, http.MethodPatch, "/api/orders/"+delivered.ID+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot cancel a delivered order", env.Message)
}

func TestHandler_UpdateOrder(t *testing.T) {
	r, f := newTestRouter(t)
	order := f.seed(t, OrderStatusCreated)
	cancelled := f.seed(t, OrderStatusCancelled)

	w, env := doRequest(t, r, http.MethodPatch, "/api/orders/"+order.ID, map[string]any{"notes": "ring twice"})
	assert.Equal(t, http.StatusOK, w.Code)
	var updated Order
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "ring twice", updated.Notes)

	w, _ = doRequest(t, r, http.MethodPatch, "/api/orders/"+cancelled.ID, map[string]any{"notes": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(t, r, http.MethodPatch, "/api/orders/missing", map[string]any{"notes": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_DeleteOrder(t *testing.T) {
	r, f := newTestRouter(t)
	order := f.seed(t, OrderStatusCreated)

	w, _ := doRequest(t, r, http.MethodDelete, "/api/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, r, http.MethodDelete, "/api/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetOrderPayment(t *testing.T) {
	r, f := newTestRouter(t)
	order := f.seed(t, OrderStatusConfirmed)
	f.gateway.On("GetPaymentStatus", mock.Anything, "pay-seed").
		Return(nil, &PaymentTransportError{StatusCode: http.StatusBadGateway, Err: context.DeadlineExceeded}).Once()

	w, env := doRequest(t, r, http.MethodGet, "/api/orders/"+order.ID+"/payment", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", env.Message)
}

func TestHandler_GetOrderPayment_UnknownToPaymentsService(t *testing.T) {
	r, f := newTestRouter(t)
	order := f.seed(t, OrderStatusConfirmed)
	f.gateway.On("GetPaymentStatus", mock.Anything, "pay-seed").Return(nil, ErrPaymentNotFound).Once()

	w, _ := doRequest(t, r, http.MethodGet, "/api/orders/"+order.ID+"/payment", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HealthCheck(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"orders-service"}`, w.Body.String())
}
