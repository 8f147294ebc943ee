package main

import (
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	defaultSuccessRate = 0.8
	largePaymentRate   = 0.3
	alwaysFailPIN      = "0000"
	invalidTokenMarker = "invalid"
)

var largePaymentThreshold = decimal.NewFromInt(10000)

var declineReasons = []string{
	"Insufficient funds",
	"Invalid card number",
	"Card expired",
	"Transaction declined by bank",
	"Network timeout",
	"Invalid PIN",
	"Daily limit exceeded",
	"Card blocked",
	"Invalid authentication",
	"System error",
}

// Processor decide se um pagamento é aprovado
type Processor interface {
	Decide(req ProcessPaymentRequest) (approved bool, reason string)
}

// MockProcessor simula um adquirente: regras fixas para PIN e token, sorteio para o resto
type MockProcessor struct {
	random func() float64
}

// NewMockProcessor cria um MockProcessor; random nil usa math/rand/v2
func NewMockProcessor(random func() float64) *MockProcessor {
	if random == nil {
		random = rand.Float64
	}
	return &MockProcessor{random: random}
}

func (p *MockProcessor) Decide(req ProcessPaymentRequest) (bool, string) {
	switch {
	case req.Pin == alwaysFailPIN:
		return false, "Invalid PIN"
	case strings.Contains(req.AuthToken, invalidTokenMarker):
		return false, "Invalid authentication"
	}

	rate := defaultSuccessRate
	if req.Amount.GreaterThan(largePaymentThreshold) {
		rate = largePaymentRate
	}
	if p.random() < rate {
		return true, ""
	}
	return false, p.declineReason()
}

func (p *MockProcessor) declineReason() string {
	i := int(p.random() * float64(len(declineReasons)))
	if i >= len(declineReasons) {
		i = len(declineReasons) - 1
	}
	return declineReasons[i]
}
