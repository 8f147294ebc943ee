package main

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	order *Order
	seq   int64
}

// MemoryOrderRepository implementa Repository em memória (STORE_DRIVER=memory e testes)
type MemoryOrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]memoryRecord
	nextSeq int64
}

// NewMemoryOrderRepository cria uma nova instância de MemoryOrderRepository
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]memoryRecord)}
}

func (r *MemoryOrderRepository) CreateOrder(_ context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	r.orders[order.ID] = memoryRecord{order: order.clone(), seq: r.nextSeq}
	return nil
}

func (r *MemoryOrderRepository) GetOrder(_ context.Context, orderID string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return rec.order.clone(), nil
}

func (r *MemoryOrderRepository) ListOrders(_ context.Context, offset, limit int) ([]*Order, int, error) {
	return r.page(func(*Order) bool { return true }, offset, limit)
}

func (r *MemoryOrderRepository) ListOrdersByUser(_ context.Context, userID string, offset, limit int) ([]*Order, int, error) {
	return r.page(func(o *Order) bool { return o.UserID == userID }, offset, limit)
}

func (r *MemoryOrderRepository) UpdateOrder(_ context.Context, order *Order, expected OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.orders[order.ID]
	if !ok || rec.order.Status != expected {
		return false, nil
	}
	rec.order = order.clone()
	r.orders[order.ID] = rec
	return true, nil
}

func (r *MemoryOrderRepository) TransitionStatus(_ context.Context, orderID string, from, to OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.orders[orderID]
	if !ok || rec.order.Status != from {
		return false, nil
	}
	rec.order.Status = to
	rec.order.UpdatedAt = at
	return true, nil
}

func (r *MemoryOrderRepository) DeleteOrder(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[orderID]; !ok {
		return ErrOrderNotFound
	}
	delete(r.orders, orderID)
	return nil
}

func (r *MemoryOrderRepository) ListConfirmedBefore(_ context.Context, cutoff time.Time) ([]*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Order, 0)
	for _, rec := range r.orders {
		if rec.order.Status == OrderStatusConfirmed && rec.order.UpdatedAt.Before(cutoff) {
			result = append(result, rec.order.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	return result, nil
}

func (r *MemoryOrderRepository) page(match func(*Order) bool, offset, limit int) ([]*Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]memoryRecord, 0, len(r.orders))
	for _, rec := range r.orders {
		if match(rec.order) {
			matched = append(matched, rec)
		}
	}
	// created_at DESC, insertion order breaks ties
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].order.CreatedAt.Equal(matched[j].order.CreatedAt) {
			return matched[i].order.CreatedAt.After(matched[j].order.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	total := len(matched)
	if offset >= total {
		return []*Order{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	orders := make([]*Order, 0, end-offset)
	for _, rec := range matched[offset:end] {
		orders = append(orders, rec.order.clone())
	}
	return orders, total, nil
}
