package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Credencial fixa de demonstração aceita pelo serviço de pagamentos; não é autenticação real.
	paymentTokenPrefix = "dummy_token_"
	paymentPIN         = "1111"

	deliverySourceTimer = "timer"
	deliverySourceSweep = "sweep"

	deliveryCallbackTimeout = 10 * time.Second
	persistOutcomeTimeout   = 5 * time.Second
)

// DeliveryTimers é o registro de timers de entrega usado pelo OrderUseCase
type DeliveryTimers interface {
	Schedule(orderID string, delay time.Duration, fn func())
	Cancel(orderID string) bool
}

// OrderUseCase contém a lógica de negócio dos pedidos e é o único dono das transições de status
type OrderUseCase struct {
	repository    Repository
	payments      PaymentGateway
	timers        DeliveryTimers
	deliveryDelay time.Duration
	tracer        trace.Tracer

	transitionCounter metric.Int64Counter
	paymentCounter    metric.Int64Counter
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	payments PaymentGateway,
	timers DeliveryTimers,
	deliveryDelay time.Duration,
) *OrderUseCase {
	meter := otel.Meter("orders-service")

	transitionCounter, err := meter.Int64Counter("orders.transitions",
		metric.WithDescription("Order status transitions by target status and trigger"))
	if err != nil {
		zlog.Warn().Err(err).Msg("⚠️  failed to create orders.transitions counter")
	}
	paymentCounter, err := meter.Int64Counter("orders.payment_outcomes",
		metric.WithDescription("Payment gateway outcomes observed during order creation"))
	if err != nil {
		zlog.Warn().Err(err).Msg("⚠️  failed to create orders.payment_outcomes counter")
	}

	return &OrderUseCase{
		repository:        repository,
		payments:          payments,
		timers:            timers,
		deliveryDelay:     deliveryDelay,
		tracer:            otel.Tracer("orders-service"),
		transitionCounter: transitionCounter,
		paymentCounter:    paymentCounter,
	}
}

// CreateOrder persiste o pedido, processa o pagamento de forma síncrona e
// retorna o pedido já CONFIRMED ou CANCELLED. Falhas de pagamento não viram erro.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()

	logger := zlog.Ctx(ctx)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	order := NewOrder(req)
	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("user_id", order.UserID),
		attribute.String("total_amount", order.TotalAmount.String()),
	)

	if err := uc.repository.CreateOrder(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		logger.Error().Err(err).Str("order_id", order.ID).Msg("❌ Failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	uc.recordTransition(ctx, OrderStatusCreated, "request")
	logger.Info().Str("order_id", order.ID).Str("user_id", order.UserID).Msg("📦 Order created")

	// From here on the order exists; a client disconnect must not leave it CREATED.
	ctx = context.WithoutCancel(ctx)

	resp, err := uc.payments.ProcessPayment(ctx, PaymentRequest{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.TotalAmount,
		AuthToken: paymentTokenPrefix + order.UserID,
		Pin:       paymentPIN,
	})

	switch {
	case err != nil:
		// Transport failures are absorbed: the order is cancelled, the caller still gets it.
		span.RecordError(err)
		uc.recordPayment(ctx, "transport_error")
		logger.Error().Err(err).Str("order_id", order.ID).Msg("❌ Payment processing error, cancelling order")
		_ = order.Cancel()
	case resp.Succeeded():
		uc.recordPayment(ctx, PaymentStatusSuccess)
		if err := order.Confirm(resp.PaymentID); err != nil {
			span.RecordError(err)
			logger.Error().Err(err).Str("order_id", order.ID).Msg("❌ Could not confirm order, cancelling")
			_ = order.Cancel()
		}
	default:
		var reason string
		if resp != nil {
			reason = resp.Message
		}
		uc.recordPayment(ctx, PaymentStatusFailed)
		logger.Warn().Str("order_id", order.ID).Str("reason", reason).Msg("💳 Payment declined, order cancelled")
		_ = order.Cancel()
	}

	persistCtx, cancel := context.WithTimeout(ctx, persistOutcomeTimeout)
	defer cancel()

	ok, err := uc.repository.UpdateOrder(persistCtx, order, OrderStatusCreated)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist payment outcome")
		logger.Error().Err(err).Str("order_id", order.ID).Msg("❌ Failed to persist payment outcome")
		return nil, fmt.Errorf("failed to update order after payment: %w", err)
	}
	if !ok {
		err := newInvalidTransition(OrderStatusCreated, order.Status, "order status changed concurrently")
		span.RecordError(err)
		logger.Error().Err(err).Str("order_id", order.ID).Msg("❌ Order changed while payment was in flight")
		return nil, err
	}
	uc.recordTransition(ctx, order.Status, "payment")

	if order.Status == OrderStatusConfirmed {
		uc.scheduleDelivery(order.ID)
		logger.Info().
			Str("order_id", order.ID).
			Str("payment_id", order.PaymentID).
			Dur("delivery_delay", uc.deliveryDelay).
			Msg("✅ Order confirmed, delivery scheduled")
	}

	span.SetAttributes(attribute.String("order_status", string(order.Status)))
	return order, nil
}

// GetOrder busca um pedido pelo ID
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return uc.repository.GetOrder(ctx, orderID)
}

// GetOrderStatus retorna apenas id, status e updatedAt
func (uc *OrderUseCase) GetOrderStatus(ctx context.Context, orderID string) (OrderStatusView, error) {
	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return OrderStatusView{}, err
	}
	return order.StatusView(), nil
}

// GetOrderPayment consulta no serviço de pagamentos o pagamento associado ao pedido
func (uc *OrderUseCase) GetOrderPayment(ctx context.Context, orderID string) (*PaymentResponse, error) {
	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentID == "" {
		return nil, ErrPaymentNotFound
	}
	return uc.payments.GetPaymentStatus(ctx, order.PaymentID)
}

// ListOrders lista pedidos paginados, mais recentes primeiro
func (uc *OrderUseCase) ListOrders(ctx context.Context, page, limit int) (*OrderPage, error) {
	page, limit = normalizePage(page, limit)

	orders, total, err := uc.repository.ListOrders(ctx, pageOffset(page, limit), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return &OrderPage{Orders: orders, Pagination: NewPagination(page, limit, total)}, nil
}

// ListOrdersByUser lista pedidos de um usuário, mais recentes primeiro
func (uc *OrderUseCase) ListOrdersByUser(ctx context.Context, userID string, page, limit int) (*OrderPage, error) {
	page, limit = normalizePage(page, limit)

	orders, total, err := uc.repository.ListOrdersByUser(ctx, userID, pageOffset(page, limit), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return &OrderPage{Orders: orders, Pagination: NewPagination(page, limit, total)}, nil
}

// UpdateOrder aplica uma atualização explícita ao pedido
func (uc *OrderUseCase) UpdateOrder(ctx context.Context, orderID string, patch OrderPatch) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "orders.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if err := order.ApplyPatch(patch); err != nil {
		span.RecordError(err)
		return nil, err
	}

	ok, err := uc.repository.UpdateOrder(ctx, order, previous)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if !ok {
		// Delivered (or cancelled) by someone else after the read.
		return nil, newInvalidTransition(previous, order.Status, "order status changed concurrently")
	}

	if order.Status != previous {
		uc.recordTransition(ctx, order.Status, "update")
	}
	if order.Status == OrderStatusCancelled || order.Status == OrderStatusDelivered {
		uc.timers.Cancel(order.ID)
	}

	zlog.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("from", string(previous)).
		Str("to", string(order.Status)).
		Msg("✏️  Order updated")
	return order, nil
}

// CancelOrder cancela um pedido ainda não entregue
func (uc *OrderUseCase) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "orders.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if err := order.Cancel(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	ok, err := uc.repository.TransitionStatus(ctx, order.ID, previous, OrderStatusCancelled, order.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !ok {
		// Lost a race with the delivery timer or the sweep.
		return nil, newInvalidTransition(previous, OrderStatusCancelled, "order status changed concurrently")
	}

	uc.timers.Cancel(order.ID)
	uc.recordTransition(ctx, OrderStatusCancelled, "cancel")
	zlog.Ctx(ctx).Info().Str("order_id", order.ID).Msg("↩️  Order cancelled")
	return order, nil
}

// DeleteOrder remove o pedido e desarma seu timer de entrega
func (uc *OrderUseCase) DeleteOrder(ctx context.Context, orderID string) error {
	if err := uc.repository.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	uc.timers.Cancel(orderID)
	zlog.Ctx(ctx).Info().Str("order_id", orderID).Msg("🗑️  Order deleted")
	return nil
}

// DeliverIfConfirmed relê o pedido e só o entrega se ainda estiver CONFIRMED.
// Usado pelo timer e pela varredura; retorna true apenas para quem efetivou a transição.
func (uc *OrderUseCase) DeliverIfConfirmed(ctx context.Context, orderID, source string) (bool, error) {
	ctx, span := uc.tracer.Start(ctx, "orders.DeliverIfConfirmed")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("delivery_source", source),
	)

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if order.Status != OrderStatusConfirmed {
		return false, nil
	}
	if err := order.Deliver(); err != nil {
		return false, err
	}

	ok, err := uc.repository.TransitionStatus(ctx, order.ID, OrderStatusConfirmed, OrderStatusDelivered, order.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to deliver order: %w", err)
	}
	if !ok {
		return false, nil
	}

	if source != deliverySourceTimer {
		uc.timers.Cancel(order.ID)
	}
	uc.recordTransition(ctx, OrderStatusDelivered, source)
	zlog.Ctx(ctx).Info().Str("order_id", order.ID).Str("source", source).Msg("🚚 Order delivered")
	return true, nil
}

func (uc *OrderUseCase) scheduleDelivery(orderID string) {
	uc.timers.Schedule(orderID, uc.deliveryDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryCallbackTimeout)
		defer cancel()

		if _, err := uc.DeliverIfConfirmed(ctx, orderID, deliverySourceTimer); err != nil && !errors.Is(err, ErrOrderNotFound) {
			zlog.Error().Err(err).Str("order_id", orderID).Msg("❌ Failed to auto-deliver order")
		}
	})
}

func (uc *OrderUseCase) recordTransition(ctx context.Context, status OrderStatus, source string) {
	if uc.transitionCounter == nil {
		return
	}
	uc.transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("source", source),
	))
}

func (uc *OrderUseCase) recordPayment(ctx context.Context, outcome string) {
	if uc.paymentCounter == nil {
		return
	}
	uc.paymentCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
