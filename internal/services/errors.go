package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Checkout error taxonomy. EmptyCart and InsufficientStock are
// client-correctable; TransactionTimeout and TransactionConflict are
// transient and safe to retry; anything else is an internal storage fault.
var (
	// ErrEmptyCart is returned when the user has no cart or the cart has
	// zero items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrTransactionTimeout is returned when the checkout transaction could
	// not complete within its time budget. No partial state was committed.
	ErrTransactionTimeout = errors.New("checkout transaction timed out")

	// ErrTransactionConflict is returned when the store reported a
	// serialization conflict after the bounded in-engine retries were
	// exhausted. No partial state was committed.
	ErrTransactionConflict = errors.New("checkout transaction conflict")
)

// InsufficientStockError names the first product whose stock cannot cover
// the requested cart quantity.
type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product: %s", e.ProductName)
}

// isConflict reports whether err is a serialization conflict from the
// underlying store. Postgres signals these via SQLSTATE (serialization
// failure, deadlock, lock not available); SQLite via busy/locked messages.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// isTimeout reports whether err means the transaction exceeded its deadline.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
