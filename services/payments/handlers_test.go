package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestRouter(t *testing.T, processor Processor) (*gin.Engine, *MemoryPaymentRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryPaymentRepository()
	r := gin.New()
	NewPaymentHandler(NewPaymentUseCase(repo, processor), noop.NewTracerProvider().Tracer("test")).RegisterRoutes(r)
	return r, repo
}

func serve(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_ProcessPayment(t *testing.T) {
	// Arrange
	processor := new(StubProcessor)
	processor.On("Decide", mock.Anything).Return(false, "Daily limit exceeded").Once()
	r, _ := newTestRouter(t, processor)

	// Act
	w := serve(r, http.MethodPost, "/api/payments/process", map[string]any{
		"orderId":   "order-1",
		"userId":    "user-1",
		"amount":    150.0,
		"authToken": "dummy_token_user-1",
		"pin":       "1111",
	})

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, PaymentStatusFailed, resp.Status)
	assert.Equal(t, "Daily limit exceeded", resp.Message)
	assert.NotEmpty(t, resp.PaymentID)
}

func TestHandler_ProcessPayment_BadRequest(t *testing.T) {
	r, _ := newTestRouter(t, new(StubProcessor))

	w := serve(r, http.MethodPost, "/api/payments/process", map[string]any{"orderId": "order-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/api/payments/process", map[string]any{
		"orderId": "o", "userId": "u", "authToken": "t", "pin": "p", "amount": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetPayment(t *testing.T) {
	// Arrange
	r, repo := newTestRouter(t, new(StubProcessor))
	payment := NewPayment(paymentRequest("42"))
	payment.Succeed("tx-9")
	require.NoError(t, repo.CreatePayment(context.Background(), payment))

	// Act
	found := serve(r, http.MethodGet, "/api/payments/"+payment.ID, nil)
	status := serve(r, http.MethodGet, "/api/payments/"+payment.ID+"/status", nil)
	missing := serve(r, http.MethodGet, "/api/payments/missing", nil)

	// Assert
	assert.Equal(t, http.StatusOK, found.Code)
	var got Payment
	require.NoError(t, json.Unmarshal(found.Body.Bytes(), &got))
	assert.Equal(t, "tx-9", got.TransactionID)

	assert.Equal(t, http.StatusOK, status.Code)
	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &resp))
	assert.Equal(t, PaymentStatusSuccess, resp.Status)

	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHandler_ListPayments(t *testing.T) {
	r, repo := newTestRouter(t, new(StubProcessor))
	require.NoError(t, repo.CreatePayment(context.Background(), NewPayment(paymentRequest("1"))))

	for _, path := range []string{"/api/payments", "/api/payments/order/order-1", "/api/payments/user/user-1"} {
		w := serve(r, http.MethodGet, path, nil)

		assert.Equal(t, http.StatusOK, w.Code, path)
		var payments []Payment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payments))
		assert.Len(t, payments, 1, path)
	}

	w := serve(r, http.MethodGet, "/api/payments/user/nobody", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHandler_HealthCheck(t *testing.T) {
	r, _ := newTestRouter(t, new(StubProcessor))

	w := serve(r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"payments-service"}`, w.Body.String())
}
