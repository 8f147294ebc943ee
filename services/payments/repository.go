package main

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

//go:embed schema.sql
var paymentsSchema string

// PaymentRepository define a interface para operações de banco de dados de pagamentos
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	UpdatePayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	ListPayments(ctx context.Context) ([]*Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error)
}

// PostgresPaymentRepository implementa PaymentRepository com database/sql + lib/pq
type PostgresPaymentRepository struct {
	db *sql.DB
}

// NewPostgresPaymentRepository cria uma nova instância de PostgresPaymentRepository
func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

// EnsureSchema cria a tabela payments se ainda não existir
func (r *PostgresPaymentRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, paymentsSchema); err != nil {
		return fmt.Errorf("failed to apply payments schema: %w", err)
	}
	return nil
}

const paymentColumns = `id, order_id, user_id, amount, status, COALESCE(payment_method, ''),
	COALESCE(transaction_id, ''), COALESCE(error_message, ''), metadata, created_at, updated_at`

func (r *PostgresPaymentRepository) CreatePayment(ctx context.Context, payment *Payment) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}

	query := `
		INSERT INTO payments (id, order_id, user_id, amount, status, payment_method, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.UserID,
		payment.Amount,
		payment.Status,
		payment.PaymentMethod,
		metadata,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) UpdatePayment(ctx context.Context, payment *Payment) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}

	query := `
		UPDATE payments
		SET status = $1,
		    transaction_id = NULLIF($2, ''),
		    error_message = NULLIF($3, ''),
		    metadata = $4,
		    updated_at = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		payment.Status,
		payment.TransactionID,
		payment.ErrorMessage,
		metadata,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PostgresPaymentRepository) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id::text = $1`, paymentID)

	payment, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return payment, err
}

func (r *PostgresPaymentRepository) ListPayments(ctx context.Context) ([]*Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
}

func (r *PostgresPaymentRepository) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
}

func (r *PostgresPaymentRepository) ListPaymentsByUser(ctx context.Context, userID string) ([]*Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresPaymentRepository) queryPayments(ctx context.Context, query string, args ...any) ([]*Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		payment  Payment
		metadata []byte
	)
	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&payment.PaymentMethod,
		&payment.TransactionID,
		&payment.ErrorMessage,
		&metadata,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &payment.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode payment metadata: %w", err)
		}
	}
	return &payment, nil
}

// MemoryPaymentRepository implementa PaymentRepository em memória (STORE_DRIVER=memory e testes)
type MemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*Payment
}

// NewMemoryPaymentRepository cria uma nova instância de MemoryPaymentRepository
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{payments: make(map[string]*Payment)}
}

func (r *MemoryPaymentRepository) CreatePayment(_ context.Context, payment *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *MemoryPaymentRepository) UpdatePayment(_ context.Context, payment *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[payment.ID]; !ok {
		return ErrPaymentNotFound
	}
	r.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *MemoryPaymentRepository) GetPayment(_ context.Context, paymentID string) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

func (r *MemoryPaymentRepository) ListPayments(_ context.Context) ([]*Payment, error) {
	return r.filter(func(*Payment) bool { return true }), nil
}

func (r *MemoryPaymentRepository) ListPaymentsByOrder(_ context.Context, orderID string) ([]*Payment, error) {
	return r.filter(func(p *Payment) bool { return p.OrderID == orderID }), nil
}

func (r *MemoryPaymentRepository) ListPaymentsByUser(_ context.Context, userID string) ([]*Payment, error) {
	return r.filter(func(p *Payment) bool { return p.UserID == userID }), nil
}

func (r *MemoryPaymentRepository) filter(match func(*Payment) bool) []*Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Payment, 0)
	for _, payment := range r.payments {
		if match(payment) {
			result = append(result, clonePayment(payment))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func clonePayment(p *Payment) *Payment {
	c := *p
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
