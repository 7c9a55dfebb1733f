package sales

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTransaction     = errors.New("transaction has no items")
	ErrInvalidQuantity      = errors.New("item quantity must be greater than zero")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrTotalMismatch        = errors.New("total amount does not match the sum of the items")
	ErrTransactionID        = errors.New("could not allocate a unique transaction id")
	ErrTransactionNotFound  = errors.New("transaction not found")
)

// StockError names the product whose stock cannot cover the sale
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s", e.ProductName)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
