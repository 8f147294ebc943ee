package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PaymentUseCaseInterface define a interface para o use case
type PaymentUseCaseInterface interface {
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResponse, error)
	ListPayments(ctx context.Context) ([]*Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error)
}

// PaymentHandler contém os handlers HTTP para pagamentos
type PaymentHandler struct {
	useCase PaymentUseCaseInterface
	tracer  trace.Tracer
}

// NewPaymentHandler cria uma nova instância de PaymentHandler
func NewPaymentHandler(useCase PaymentUseCaseInterface, tracer trace.Tracer) *PaymentHandler {
	return &PaymentHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// RegisterRoutes registra as rotas do serviço
func (h *PaymentHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	payments := r.Group("/api/payments")
	payments.POST("/process", h.ProcessPayment)
	payments.GET("", h.ListPayments)
	payments.GET("/order/:orderId", h.ListPaymentsByOrder)
	payments.GET("/user/:userId", h.ListPaymentsByUser)
	payments.GET("/:id", h.GetPayment)
	payments.GET("/:id/status", h.GetPaymentStatus)
}

// ProcessPayment processa o pagamento de um pedido; recusas retornam 200 com status failed
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "process_payment")
	defer span.End()

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("user_id", req.UserID),
		attribute.String("amount", req.Amount.String()),
	)

	resp, err := h.useCase.ProcessPayment(ctx, req)
	if err != nil {
		span.RecordError(err)
		writeError(c, err, "Failed to process payment")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListPayments lista todos os pagamentos
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.useCase.ListPayments(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to list payments")
		return
	}
	c.JSON(http.StatusOK, payments)
}

// ListPaymentsByOrder lista os pagamentos de um pedido
func (h *PaymentHandler) ListPaymentsByOrder(c *gin.Context) {
	payments, err := h.useCase.ListPaymentsByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err, "Failed to list payments")
		return
	}
	c.JSON(http.StatusOK, payments)
}

// ListPaymentsByUser lista os pagamentos de um usuário
func (h *PaymentHandler) ListPaymentsByUser(c *gin.Context) {
	payments, err := h.useCase.ListPaymentsByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err, "Failed to list payments")
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GetPayment retorna um pagamento
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.useCase.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to get payment")
		return
	}
	c.JSON(http.StatusOK, payment)
}

// GetPaymentStatus retorna o status de um pagamento
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	resp, err := h.useCase.GetPaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to get payment status")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HealthCheck é o endpoint de health check
func (h *PaymentHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "payments-service",
	})
}

func writeError(c *gin.Context, err error, fallback string) {
	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		zlog.Ctx(c.Request.Context()).Error().Err(err).Msg("❌ " + fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
