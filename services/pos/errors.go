package main

import (
	"errors"
	"fmt"
)

// Erros do domínio. Os handlers convertem cada um no status HTTP correspondente.
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("revision conflict")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidResetToken    = errors.New("invalid reset token")
	ErrResetTokenExpired    = errors.New("reset token expired")
	ErrMailerUnavailable    = errors.New("mail transport not configured")
	ErrIdempotencyKeyReused = errors.New("idempotency key already used with a different request")

	ErrEmptySale        = fmt.Errorf("%w: a sale needs at least one item", ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	ErrNegativeStock    = fmt.Errorf("%w: stock must be >= 0", ErrValidation)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrSaleNotFound     = fmt.Errorf("sale %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrEmailTaken       = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrSaleInProgress   = fmt.Errorf("%w: a sale with this idempotency key is in progress", ErrConflict)
)

// InsufficientStockError é retornado quando o estoque não cobre a quantidade pedida
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (available %d, requested %d)",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
