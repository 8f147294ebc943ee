package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderUseCaseInterface define a interface para o use case
type OrderUseCaseInterface interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatusView, error)
	GetOrderPayment(ctx context.Context, orderID string) (*PaymentResponse, error)
	ListOrders(ctx context.Context, page, limit int) (*OrderPage, error)
	ListOrdersByUser(ctx context.Context, userID string, page, limit int) (*OrderPage, error)
	UpdateOrder(ctx context.Context, orderID string, patch OrderPatch) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) (*Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// OrderHandler contém os handlers HTTP
type OrderHandler struct {
	useCase OrderUseCaseInterface
	tracer  trace.Tracer
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(useCase OrderUseCaseInterface, tracer trace.Tracer) *OrderHandler {
	return &OrderHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// apiResponse é o envelope comum das respostas
type apiResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
	Path       string      `json:"path,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// RegisterRoutes registra as rotas do serviço
func (h *OrderHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	orders := r.Group("/api/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/user/:userId", h.ListOrdersByUser)
	orders.GET("/:id", h.GetOrder)
	orders.GET("/:id/status", h.GetOrderStatus)
	orders.GET("/:id/payment", h.GetOrderPayment)
	orders.PATCH("/:id", h.UpdateOrder)
	orders.PATCH("/:id/cancel", h.CancelOrder)
	orders.DELETE("/:id", h.DeleteOrder)
}

// CreateOrder cria um pedido e processa o pagamento
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_order")
	defer span.End()

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		respondError(c, &ValidationError{Field: "body", Message: err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("total_amount", req.TotalAmount.String()),
	)

	order, err := h.useCase.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("order_status", string(order.Status)),
	)
	respond(c, http.StatusCreated, order, "Order created successfully")
}

// ListOrders lista pedidos paginados
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, limit := pageParams(c)

	result, err := h.useCase.ListOrders(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, result, "Orders retrieved successfully")
}

// ListOrdersByUser lista pedidos de um usuário
func (h *OrderHandler) ListOrdersByUser(c *gin.Context) {
	page, limit := pageParams(c)

	result, err := h.useCase.ListOrdersByUser(c.Request.Context(), c.Param("userId"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, result, "User orders retrieved successfully")
}

// GetOrder retorna um pedido
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.useCase.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order, "Order retrieved successfully")
}

// GetOrderStatus retorna o status do pedido
func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	status, err := h.useCase.GetOrderStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, status, "Order status retrieved successfully")
}

// GetOrderPayment retorna o pagamento associado ao pedido
func (h *OrderHandler) GetOrderPayment(c *gin.Context) {
	payment, err := h.useCase.GetOrderPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, payment, "Order payment retrieved successfully")
}

// UpdateOrder atualiza um pedido
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_order")
	defer span.End()

	var patch OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		span.RecordError(err)
		respondError(c, &ValidationError{Field: "body", Message: err.Error()})
		return
	}

	order, err := h.useCase.UpdateOrder(ctx, c.Param("id"), patch)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order, "Order updated successfully")
}

// CancelOrder cancela um pedido
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "cancel_order")
	defer span.End()

	order, err := h.useCase.CancelOrder(ctx, c.Param("id"))
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order, "Order cancelled successfully")
}

// DeleteOrder remove um pedido
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.useCase.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Order deleted successfully")
}

// HealthCheck verifica a saúde do serviço
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orders-service",
	})
}

// requestLogger injeta no contexto um logger com o trace_id da requisição
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := zlog.With().Str("path", c.FullPath()).Logger()
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			logger = logger.With().Str("trace_id", sc.TraceID().String()).Logger()
		}
		c.Request = c.Request.WithContext(logger.WithContext(ctx))
		c.Next()
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	return page, limit
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, apiResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondPage(c *gin.Context, result *OrderPage, message string) {
	c.JSON(http.StatusOK, apiResponse{
		Success:    true,
		Message:    message,
		Data:       result.Orders,
		Pagination: &result.Pagination,
		Timestamp:  time.Now().UTC(),
	})
}

func respondError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "Internal Server Error"

	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrPaymentNotFound):
		status, kind = http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrInvalidTransition), errors.As(err, &validationErr):
		status, kind = http.StatusBadRequest, "Bad Request"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		zlog.Ctx(c.Request.Context()).Error().Err(err).Msg("❌ Request failed")
		message = "Internal server error"
	}

	c.JSON(status, apiResponse{
		Success:   false,
		Message:   message,
		Error:     kind,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}
