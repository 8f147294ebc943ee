package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var ordersSchema string

// Repository define a interface para operações de banco de dados de pedidos.
// Não contém regras de negócio: as transições são validadas pelo OrderUseCase.
type Repository interface {
	// CreateOrder insere um novo pedido
	CreateOrder(ctx context.Context, order *Order) error

	// GetOrder busca um pedido pelo ID (ErrOrderNotFound se ausente)
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ListOrders retorna uma página ordenada por created_at DESC e o total
	ListOrders(ctx context.Context, offset, limit int) ([]*Order, int, error)

	// ListOrdersByUser é ListOrders filtrado por usuário
	ListOrdersByUser(ctx context.Context, userID string, offset, limit int) ([]*Order, int, error)

	// UpdateOrder substitui os campos mutáveis do pedido somente se o status gravado ainda for `expected`.
	// Retorna false quando o pedido não existe ou mudou de status desde a leitura.
	UpdateOrder(ctx context.Context, order *Order, expected OrderStatus) (bool, error)

	// TransitionStatus altera o status somente se o status atual for `from`
	TransitionStatus(ctx context.Context, orderID string, from, to OrderStatus, at time.Time) (bool, error)

	// DeleteOrder remove o pedido
	DeleteOrder(ctx context.Context, orderID string) error

	// ListConfirmedBefore busca pedidos confirmados com updated_at anterior ao corte
	ListConfirmedBefore(ctx context.Context, cutoff time.Time) ([]*Order, error)
}

// PostgresOrderRepository implementa Repository usando PostgreSQL
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderRepository cria uma nova instância de PostgresOrderRepository
func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

// EnsureSchema cria a tabela de pedidos caso ainda não exista
func (r *PostgresOrderRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, ordersSchema); err != nil {
		return fmt.Errorf("failed to apply orders schema: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, total_amount, status, items,
	COALESCE(payment_id, ''), COALESCE(delivery_address, ''), COALESCE(notes, ''),
	created_at, updated_at`

func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, order *Order) error {
	query := `
		INSERT INTO orders (id, user_id, total_amount, status, items, payment_id, delivery_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		string(order.Status),
		order.Items,
		order.PaymentID,
		order.DeliveryAddress,
		order.Notes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

func (r *PostgresOrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if !isOrderID(orderID) {
		return nil, ErrOrderNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PostgresOrderRepository) ListOrders(ctx context.Context, offset, limit int) ([]*Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	orders, err := r.queryOrders(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresOrderRepository) ListOrdersByUser(ctx context.Context, userID string, offset, limit int) ([]*Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	orders, err := r.queryOrders(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresOrderRepository) UpdateOrder(ctx context.Context, order *Order, expected OrderStatus) (bool, error) {
	if !isOrderID(order.ID) {
		return false, nil
	}
	query := `
		UPDATE orders
		SET total_amount = $2,
		    status = $3,
		    items = $4,
		    payment_id = NULLIF($5, ''),
		    delivery_address = NULLIF($6, ''),
		    notes = NULLIF($7, ''),
		    updated_at = $8
		WHERE id = $1 AND status = $9
	`
	tag, err := r.pool.Exec(ctx, query,
		order.ID,
		order.TotalAmount,
		string(order.Status),
		order.Items,
		order.PaymentID,
		order.DeliveryAddress,
		order.Notes,
		order.UpdatedAt,
		string(expected),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresOrderRepository) TransitionStatus(ctx context.Context, orderID string, from, to OrderStatus, at time.Time) (bool, error) {
	if !isOrderID(orderID) {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(to), at, orderID, string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresOrderRepository) DeleteOrder(ctx context.Context, orderID string) error {
	if !isOrderID(orderID) {
		return ErrOrderNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PostgresOrderRepository) ListConfirmedBefore(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`
	return r.queryOrders(ctx, query, string(OrderStatusConfirmed), cutoff)
}

func (r *PostgresOrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// isOrderID evita que um ID malformado vire erro de sintaxe uuid no Postgres
func isOrderID(id string) bool {
	return uuid.Validate(id) == nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order  Order
		status string
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&status,
		&order.Items,
		&order.PaymentID,
		&order.DeliveryAddress,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = OrderStatus(status)
	return &order, nil
}
