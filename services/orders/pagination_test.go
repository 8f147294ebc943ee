package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{1, 10, 1, 10},
		{0, 0, 1, defaultPageLimit},
		{-3, -1, 1, defaultPageLimit},
		{2, 500, 2, maxPageLimit},
	}

	for _, tt := range tests {
		page, limit := normalizePage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)

	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	last := NewPagination(3, 10, 25)
	assert.False(t, last.HasNext)

	empty := NewPagination(1, 10, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestListOrders_SecondPage(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	base := time.Now()
	for i := 0; i < 25; i++ {
		order := NewOrder(CreateOrderRequest{UserID: "u1"})
		order.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.CreateOrder(ctx, order))
	}
	uc := NewOrderUseCase(repo, new(MockPaymentGateway), NewDeliveryScheduler(), time.Minute)

	// Act
	result, err := uc.ListOrders(ctx, 2, 10)

	// Assert
	require.NoError(t, err)
	assert.Len(t, result.Orders, 10)
	assert.Equal(t, 25, result.Pagination.Total)
	assert.Equal(t, 3, result.Pagination.TotalPages)
	assert.True(t, result.Pagination.HasNext)
	assert.True(t, result.Pagination.HasPrev)
	// newest first: page 2 starts at the 11th newest
	assert.Equal(t, base.Add(14*time.Second), result.Orders[0].CreatedAt)
}

func TestListOrdersByUser_FiltersAndPaginates(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateOrder(ctx, NewOrder(CreateOrderRequest{UserID: "alice"})))
	}
	require.NoError(t, repo.CreateOrder(ctx, NewOrder(CreateOrderRequest{UserID: "bob"})))
	uc := NewOrderUseCase(repo, new(MockPaymentGateway), NewDeliveryScheduler(), time.Minute)

	// Act
	result, err := uc.ListOrdersByUser(ctx, "alice", 0, 0)

	// Assert
	require.NoError(t, err)
	assert.Len(t, result.Orders, 3)
	assert.Equal(t, 1, result.Pagination.Page)
	assert.Equal(t, defaultPageLimit, result.Pagination.Limit)
	for _, o := range result.Orders {
		assert.Equal(t, "alice", o.UserID)
	}

	beyond, err := uc.ListOrdersByUser(ctx, "alice", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Orders)
	assert.Equal(t, 3, beyond.Pagination.Total)
}
