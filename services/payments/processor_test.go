package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// sequence devolve os valores na ordem e repete o último
func sequence(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

func paymentRequest(amount string) ProcessPaymentRequest {
	return ProcessPaymentRequest{
		OrderID:   "order-1",
		UserID:    "user-1",
		Amount:    decimal.RequireFromString(amount),
		AuthToken: "dummy_token_user-1",
		Pin:       "1111",
	}
}

func TestMockProcessor_Decide(t *testing.T) {
	tests := []struct {
		name       string
		req        func() ProcessPaymentRequest
		random     func() float64
		approved   bool
		wantReason string
	}{
		{
			name:     "regular amount under success rate",
			req:      func() ProcessPaymentRequest { return paymentRequest("150.00") },
			random:   sequence(0.79),
			approved: true,
		},
		{
			name:       "regular amount over success rate",
			req:        func() ProcessPaymentRequest { return paymentRequest("150.00") },
			random:     sequence(0.8, 0.0),
			approved:   false,
			wantReason: "Insufficient funds",
		},
		{
			name:     "large amount under reduced rate",
			req:      func() ProcessPaymentRequest { return paymentRequest("10000.01") },
			random:   sequence(0.29),
			approved: true,
		},
		{
			name:       "large amount over reduced rate",
			req:        func() ProcessPaymentRequest { return paymentRequest("20000") },
			random:     sequence(0.5, 0.99),
			approved:   false,
			wantReason: "System error",
		},
		{
			name:     "exactly ten thousand uses regular rate",
			req:      func() ProcessPaymentRequest { return paymentRequest("10000") },
			random:   sequence(0.5),
			approved: true,
		},
		{
			name: "pin 0000 always fails",
			req: func() ProcessPaymentRequest {
				r := paymentRequest("10")
				r.Pin = "0000"
				return r
			},
			random:     sequence(0.0),
			approved:   false,
			wantReason: "Invalid PIN",
		},
		{
			name: "invalid token always fails",
			req: func() ProcessPaymentRequest {
				r := paymentRequest("10")
				r.AuthToken = "invalid_token"
				return r
			},
			random:     sequence(0.0),
			approved:   false,
			wantReason: "Invalid authentication",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMockProcessor(tt.random)

			approved, reason := p.Decide(tt.req())

			assert.Equal(t, tt.approved, approved)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reason)
			}
		})
	}
}

func TestMockProcessor_DefaultRandom(t *testing.T) {
	p := NewMockProcessor(nil)

	approved, reason := p.Decide(paymentRequest("10"))

	if !approved {
		assert.Contains(t, declineReasons, reason)
	}
}
