package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// PaymentUseCase contém a lógica de negócio de pagamentos
type PaymentUseCase struct {
	repository     PaymentRepository
	processor      Processor
	tracer         trace.Tracer
	paymentCounter metric.Int64Counter
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(repository PaymentRepository, processor Processor) *PaymentUseCase {
	paymentCounter, err := otel.Meter("payments-service").Int64Counter("payments.processed",
		metric.WithDescription("Processed payments by resulting status"))
	if err != nil {
		zlog.Warn().Err(err).Msg("⚠️  failed to create payments.processed counter")
	}

	return &PaymentUseCase{
		repository:     repository,
		processor:      processor,
		tracer:         otel.Tracer("payments-service"),
		paymentCounter: paymentCounter,
	}
}

// ProcessPayment registra o pagamento como PENDING, decide e persiste o resultado.
// Uma recusa é uma resposta normal; só falhas de persistência viram erro.
func (uc *PaymentUseCase) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResponse, error) {
	ctx, span := uc.tracer.Start(ctx, "payments.ProcessPayment")
	defer span.End()

	logger := zlog.Ctx(ctx)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	payment := NewPayment(req)
	span.SetAttributes(
		attribute.String("payment_id", payment.ID),
		attribute.String("order_id", payment.OrderID),
		attribute.String("amount", payment.Amount.String()),
	)
	logger.Info().Str("order_id", req.OrderID).Msg("➡️ Processing payment")

	if err := uc.repository.CreatePayment(ctx, payment); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Str("order_id", req.OrderID).Msg("❌ Failed to create payment")
		return nil, fmt.Errorf("payment processing failed: %w", err)
	}

	approved, reason := uc.processor.Decide(req)
	if approved {
		payment.Succeed(uuid.New().String())
	} else {
		payment.Fail(reason)
	}

	if err := uc.repository.UpdatePayment(ctx, payment); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Str("payment_id", payment.ID).Msg("❌ Failed to persist payment result")
		return nil, fmt.Errorf("payment processing failed: %w", err)
	}

	if uc.paymentCounter != nil {
		uc.paymentCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(payment.Status))))
	}
	span.SetAttributes(attribute.String("payment_status", string(payment.Status)))

	if approved {
		logger.Info().
			Str("order_id", payment.OrderID).
			Str("transaction_id", payment.TransactionID).
			Msg("✅ Payment successful")
		return &PaymentResponse{
			PaymentID:     payment.ID,
			Status:        PaymentStatusSuccess,
			Message:       "Payment processed successfully",
			TransactionID: payment.TransactionID,
		}, nil
	}

	logger.Warn().Str("order_id", payment.OrderID).Str("reason", reason).Msg("💳 Payment failed")
	return &PaymentResponse{
		PaymentID: payment.ID,
		Status:    PaymentStatusFailed,
		Message:   reason,
	}, nil
}

// GetPayment busca um pagamento pelo ID
func (uc *PaymentUseCase) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return uc.repository.GetPayment(ctx, paymentID)
}

// GetPaymentStatus retorna a projeção de status de um pagamento
func (uc *PaymentUseCase) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	payment, err := uc.repository.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	resp := payment.StatusResponse()
	return &resp, nil
}

// ListPayments lista todos os pagamentos, mais recentes primeiro
func (uc *PaymentUseCase) ListPayments(ctx context.Context) ([]*Payment, error) {
	return uc.repository.ListPayments(ctx)
}

// ListPaymentsByOrder lista os pagamentos de um pedido
func (uc *PaymentUseCase) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*Payment, error) {
	return uc.repository.ListPaymentsByOrder(ctx, orderID)
}

// ListPaymentsByUser lista os pagamentos de um usuário
func (uc *PaymentUseCase) ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error) {
	return uc.repository.ListPaymentsByUser(ctx, userID)
}
