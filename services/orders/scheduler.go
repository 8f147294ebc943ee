package main

import (
	"sync"
	"time"
)

// DeliveryScheduler mantém um timer cancelável por pedido.
// Timers perdidos (restart do processo) são recuperados pelo DeliveryReconciler.
type DeliveryScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDeliveryScheduler cria uma nova instância de DeliveryScheduler
func NewDeliveryScheduler() *DeliveryScheduler {
	return &DeliveryScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arma fn para daqui a delay, substituindo um timer anterior do mesmo pedido
func (s *DeliveryScheduler) Schedule(orderID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if previous, ok := s.timers[orderID]; ok {
		previous.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[orderID]
		if !ok || current != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, orderID)
		s.mu.Unlock()

		fn()
	})
	s.timers[orderID] = timer
}

// Cancel desarma o timer do pedido; retorna false se não havia timer
func (s *DeliveryScheduler) Cancel(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[orderID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, orderID)
	return true
}

// Pending retorna quantos timers ainda estão armados
func (s *DeliveryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop desarma todos os timers e recusa novos agendamentos
func (s *DeliveryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.stopped = true
}
