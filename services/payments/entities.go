package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus representa os status de um pagamento
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentMethod representa o meio de pagamento informado pelo cliente
type PaymentMethod string

const (
	PaymentMethodCreditCard    PaymentMethod = "credit_card"
	PaymentMethodDebitCard     PaymentMethod = "debit_card"
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodDigitalWallet PaymentMethod = "digital_wallet"
)

func (m PaymentMethod) valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodBankTransfer, PaymentMethodDigitalWallet:
		return true
	}
	return false
}

var ErrPaymentNotFound = errors.New("payment not found")

// ValidationError indica um payload de pagamento inválido
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Payment representa uma tentativa de pagamento de um pedido
type Payment struct {
	ID            string          `json:"id" db:"id"`
	OrderID       string          `json:"orderId" db:"order_id"`
	UserID        string          `json:"userId" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        PaymentStatus   `json:"status" db:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	TransactionID string          `json:"transactionId,omitempty" db:"transaction_id"`
	ErrorMessage  string          `json:"errorMessage,omitempty" db:"error_message"`
	Metadata      map[string]any  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProcessPaymentRequest representa a requisição enviada pelo orders-service
type ProcessPaymentRequest struct {
	OrderID       string          `json:"orderId" binding:"required"`
	UserID        string          `json:"userId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	AuthToken     string          `json:"authToken" binding:"required"`
	Pin           string          `json:"pin" binding:"required"`
	PaymentMethod PaymentMethod   `json:"paymentMethod,omitempty"`
}

// Validate aplica as mesmas regras do binding para chamadas fora do HTTP
func (r ProcessPaymentRequest) Validate() error {
	required := map[string]string{
		"orderId":   r.OrderID,
		"userId":    r.UserID,
		"authToken": r.AuthToken,
		"pin":       r.Pin,
	}
	for _, field := range []string{"orderId", "userId", "authToken", "pin"} {
		if strings.TrimSpace(required[field]) == "" {
			return &ValidationError{Field: field, Message: "must not be empty"}
		}
	}
	if r.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if r.PaymentMethod != "" && !r.PaymentMethod.valid() {
		return &ValidationError{Field: "paymentMethod", Message: "unknown method " + string(r.PaymentMethod)}
	}
	return nil
}

// PaymentResponse é o resultado de processamento e de consulta de status
type PaymentResponse struct {
	PaymentID     string        `json:"paymentId"`
	Status        PaymentStatus `json:"status"`
	Message       string        `json:"message,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
}

// NewPayment cria um pagamento PENDING. Token e PIN não são persistidos.
func NewPayment(req ProcessPaymentRequest) *Payment {
	method := req.PaymentMethod
	if method == "" {
		method = PaymentMethodCreditCard
	}

	now := time.Now()
	return &Payment{
		ID:            uuid.New().String(),
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Status:        PaymentStatusPending,
		PaymentMethod: method,
		Metadata: map[string]any{
			"processedAt": now.UTC().Format(time.RFC3339),
			"source":      "orders_app",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Succeed marca o pagamento como aprovado
func (p *Payment) Succeed(transactionID string) {
	now := time.Now()
	p.Status = PaymentStatusSuccess
	p.TransactionID = transactionID
	p.Metadata["successAt"] = now.UTC().Format(time.RFC3339)
	p.Metadata["transactionId"] = transactionID
	p.UpdatedAt = now
}

// Fail marca o pagamento como recusado
func (p *Payment) Fail(reason string) {
	now := time.Now()
	p.Status = PaymentStatusFailed
	p.ErrorMessage = reason
	p.Metadata["failedAt"] = now.UTC().Format(time.RFC3339)
	p.Metadata["errorMessage"] = reason
	p.UpdatedAt = now
}

// StatusResponse projeta o pagamento para a consulta de status
func (p *Payment) StatusResponse() PaymentResponse {
	status := PaymentStatusFailed
	if p.Status == PaymentStatusSuccess {
		status = PaymentStatusSuccess
	}

	message := p.ErrorMessage
	if message == "" {
		message = "Payment processed successfully"
	}

	return PaymentResponse{
		PaymentID:     p.ID,
		Status:        status,
		Message:       message,
		TransactionID: p.TransactionID,
	}
}
