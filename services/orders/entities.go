package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus representa os possíveis status de um pedido
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid indica se o status pertence à máquina de estados
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem representa um item de linha do pedido (não validado contra catálogo)
type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order representa um pedido no sistema
type Order struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	TotalAmount     decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	Items           []OrderItem     `json:"items,omitempty" db:"items"`
	PaymentID       string          `json:"paymentId,omitempty" db:"payment_id"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty" db:"delivery_address"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// CreateOrderRequest representa a requisição para criar um pedido
type CreateOrderRequest struct {
	UserID          string          `json:"userId" binding:"required"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Items           []OrderItem     `json:"items"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Notes           string          `json:"notes"`
}

// Validate verifica a requisição antes de qualquer persistência
func (r CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if r.TotalAmount.IsNegative() {
		return &ValidationError{Field: "totalAmount", Message: "must not be negative"}
	}
	for i, item := range r.Items {
		if item.Quantity <= 0 {
			return &ValidationError{Field: "items", Message: "quantity must be positive", Index: i}
		}
		if item.Price.IsNegative() {
			return &ValidationError{Field: "items", Message: "price must not be negative", Index: i}
		}
	}
	return nil
}

// OrderPatch representa uma atualização parcial; campos nil não são alterados
type OrderPatch struct {
	Status          *OrderStatus `json:"status,omitempty"`
	PaymentID       *string      `json:"paymentId,omitempty"`
	DeliveryAddress *string      `json:"deliveryAddress,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
}

// Validate rejeita status fora da máquina de estados
func (p OrderPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Message: "unknown status " + string(*p.Status)}
	}
	return nil
}

// OrderStatusView é a projeção retornada pela consulta de status
type OrderStatusView struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewOrder cria uma nova instância de Order com status CREATED
func NewOrder(req CreateOrderRequest) *Order {
	now := time.Now()
	return &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		TotalAmount:     req.TotalAmount,
		Status:          OrderStatusCreated,
		Items:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Confirm registra o pagamento aprovado
func (o *Order) Confirm(paymentID string) error {
	if o.Status != OrderStatusCreated {
		return newInvalidTransition(o.Status, OrderStatusConfirmed, "only created orders can be confirmed")
	}
	if strings.TrimSpace(paymentID) == "" {
		return &ValidationError{Field: "paymentId", Message: "confirmed orders require a payment id"}
	}

	o.Status = OrderStatusConfirmed
	o.PaymentID = paymentID
	o.touch()
	return nil
}

// Cancel marca o pedido como cancelado
func (o *Order) Cancel() error {
	switch o.Status {
	case OrderStatusCancelled:
		return newInvalidTransition(o.Status, OrderStatusCancelled, "order is already cancelled")
	case OrderStatusDelivered:
		return newInvalidTransition(o.Status, OrderStatusCancelled, "cannot cancel a delivered order")
	}

	o.Status = OrderStatusCancelled
	o.touch()
	return nil
}

// Deliver conclui a entrega; só pedidos confirmados podem ser entregues
func (o *Order) Deliver() error {
	if o.Status != OrderStatusConfirmed {
		return newInvalidTransition(o.Status, OrderStatusDelivered, "only confirmed orders can be delivered")
	}

	o.Status = OrderStatusDelivered
	o.touch()
	return nil
}

// ApplyPatch aplica uma atualização explícita respeitando os estados finais
func (o *Order) ApplyPatch(p OrderPatch) error {
	target := o.Status
	if p.Status != nil {
		target = *p.Status
	}

	if o.Status == OrderStatusCancelled {
		return newInvalidTransition(o.Status, target, "cannot update a cancelled order")
	}
	// An absent status on a delivered order counts as a different status.
	if o.Status == OrderStatusDelivered && (p.Status == nil || *p.Status != OrderStatusDelivered) {
		return newInvalidTransition(o.Status, target, "cannot change status of a delivered order")
	}

	o.Status = target
	if p.PaymentID != nil {
		o.PaymentID = *p.PaymentID
	}
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = *p.DeliveryAddress
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	o.touch()
	return nil
}

// StatusView projeta o pedido para a consulta de status
func (o *Order) StatusView() OrderStatusView {
	return OrderStatusView{ID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt}
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now()
}

func (o *Order) clone() *Order {
	c := *o
	if o.Items != nil {
		c.Items = append([]OrderItem(nil), o.Items...)
	}
	return &c
}
