package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryScheduler_Fires(t *testing.T) {
	// Arrange
	s := NewDeliveryScheduler()
	defer s.Stop()
	var calls atomic.Int32

	// Act
	s.Schedule("o1", 10*time.Millisecond, func() { calls.Add(1) })

	// Assert
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestDeliveryScheduler_Cancel(t *testing.T) {
	s := NewDeliveryScheduler()
	defer s.Stop()
	var calls atomic.Int32

	s.Schedule("o1", 20*time.Millisecond, func() { calls.Add(1) })

	assert.True(t, s.Cancel("o1"))
	assert.False(t, s.Cancel("o1"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDeliveryScheduler_RescheduleReplaces(t *testing.T) {
	s := NewDeliveryScheduler()
	defer s.Stop()
	var first, second atomic.Int32

	s.Schedule("o1", 20*time.Millisecond, func() { first.Add(1) })
	s.Schedule("o1", 20*time.Millisecond, func() { second.Add(1) })

	assert.Equal(t, 1, s.Pending())
	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestDeliveryScheduler_Stop(t *testing.T) {
	s := NewDeliveryScheduler()
	var calls atomic.Int32

	s.Schedule("o1", 20*time.Millisecond, func() { calls.Add(1) })
	s.Stop()
	s.Schedule("o2", time.Millisecond, func() { calls.Add(1) })

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 0, s.Pending())
}
