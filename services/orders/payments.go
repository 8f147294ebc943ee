package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// PaymentGateway abstrai o serviço de pagamentos remoto
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResponse, error)
}

// PaymentRequest representa o payload enviado ao serviço de pagamentos
type PaymentRequest struct {
	OrderID   string          `json:"orderId"`
	UserID    string          `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	AuthToken string          `json:"authToken"`
	Pin       string          `json:"pin"`
}

// PaymentResponse representa a resposta do serviço de pagamentos
type PaymentResponse struct {
	PaymentID     string `json:"paymentId"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Succeeded indica se o pagamento foi aprovado
func (r *PaymentResponse) Succeeded() bool {
	return r != nil && r.Status == PaymentStatusSuccess
}

// PaymentTransportError indica que o serviço de pagamentos não respondeu de forma utilizável
// (timeout, conexão recusada, status não-2xx, corpo inválido). É distinto de uma recusa.
type PaymentTransportError struct {
	OrderID    string
	StatusCode int
	Err        error
}

func (e *PaymentTransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment transport error for order %s: status %d: %v", e.OrderID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment transport error for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentTransportError) Unwrap() error {
	return e.Err
}

// RestyPaymentGateway implementa PaymentGateway sobre HTTP usando resty.
// Sem retries por padrão: a chamada de pagamento não é idempotente do lado remoto.
type RestyPaymentGateway struct {
	client *resty.Client
	tracer trace.Tracer
}

// NewRestyPaymentGateway cria uma nova instância de RestyPaymentGateway
func NewRestyPaymentGateway(baseURL string, timeout time.Duration, retries int) *RestyPaymentGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetHeader("Content-Type", "application/json")

	return &RestyPaymentGateway{
		client: client,
		tracer: otel.Tracer("orders-service"),
	}
}

// ProcessPayment executa uma única chamada síncrona ao serviço de pagamentos
func (g *RestyPaymentGateway) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	ctx, span := g.tracer.Start(ctx, "payments.ProcessPayment", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("user_id", req.UserID),
		attribute.String("amount", req.Amount.String()),
	)

	var result PaymentResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeaders(traceHeaders(ctx)).
		SetBody(req).
		SetResult(&result).
		Post("/api/payments/process")
	if err != nil {
		return nil, g.fail(span, &PaymentTransportError{OrderID: req.OrderID, Err: err})
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if !resp.IsSuccess() {
		return nil, g.fail(span, &PaymentTransportError{
			OrderID:    req.OrderID,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(http.StatusText(resp.StatusCode())),
		})
	}

	switch {
	case result.Status == PaymentStatusSuccess && result.PaymentID == "":
		return nil, g.fail(span, &PaymentTransportError{
			OrderID:    req.OrderID,
			StatusCode: resp.StatusCode(),
			Err:        errors.New("successful payment without payment id"),
		})
	case result.Status != PaymentStatusSuccess && result.Status != PaymentStatusFailed:
		return nil, g.fail(span, &PaymentTransportError{
			OrderID:    req.OrderID,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected payment status %q", result.Status),
		})
	}

	span.SetAttributes(
		attribute.String("payment_id", result.PaymentID),
		attribute.String("payment_status", result.Status),
	)
	span.SetStatus(codes.Ok, "payment resolved")
	return &result, nil
}

// GetPaymentStatus consulta o status de um pagamento já processado
func (g *RestyPaymentGateway) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	ctx, span := g.tracer.Start(ctx, "payments.GetPaymentStatus", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var result PaymentResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeaders(traceHeaders(ctx)).
		SetPathParam("id", paymentID).
		SetResult(&result).
		Get("/api/payments/{id}/status")
	if err != nil {
		return nil, g.fail(span, &PaymentTransportError{Err: err})
	}
	if resp.StatusCode() == http.StatusNotFound {
		span.SetStatus(codes.Error, "payment not found")
		return nil, ErrPaymentNotFound
	}
	if !resp.IsSuccess() {
		return nil, g.fail(span, &PaymentTransportError{
			StatusCode: resp.StatusCode(),
			Err:        errors.New(http.StatusText(resp.StatusCode())),
		})
	}
	return &result, nil
}

func (g *RestyPaymentGateway) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "payment transport error")
	return err
}

func traceHeaders(ctx context.Context) map[string]string {
	headers := make(map[string]string)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
	return headers
}
