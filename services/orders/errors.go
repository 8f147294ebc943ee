package main

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrPaymentNotFound   = errors.New("order has no payment")
)

// InvalidTransitionError descreve uma violação da máquina de estados
type InvalidTransitionError struct {
	From   OrderStatus
	To     OrderStatus
	Reason string
}

func newInvalidTransition(from, to OrderStatus, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to, Reason: reason}
}

func (e *InvalidTransitionError) Error() string {
	return e.Reason
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError indica entrada malformada, rejeitada antes de persistir
type ValidationError struct {
	Field   string
	Message string
	Index   int
}

func (e *ValidationError) Error() string {
	if e.Field == "items" {
		return fmt.Sprintf("%s[%d]: %s", e.Field, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
