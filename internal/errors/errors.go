package errors

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// Inventory error kinds. Everything except ErrStoreUnavailable is an expected,
// recoverable outcome for the caller.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrDiscountNotFound      = errors.New("discount rule not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrCutoffExceeded        = errors.New("same-day purchase cutoff exceeded")
	ErrStoreUnavailable      = errors.New("store unavailable")
)

// InvalidInput wraps ErrInvalidInput with a formatted reason.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsSoldOut reports whether err should be shown to a buyer as "sold out"
// rather than as a failure.
func IsSoldOut(err error) bool {
	return errors.Is(err, ErrInsufficientInventory) || errors.Is(err, ErrCutoffExceeded)
}
