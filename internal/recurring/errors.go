package recurring

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("recurring order not found")
	ErrClientMissing = errors.New("client id required")

	ErrValidation       = errors.New("invalid recurring order")
	ErrEmptyName        = errors.New("name required")
	ErrNoItems          = errors.New("at least one item required")
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrMissingProduct   = errors.New("item product id required")
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrMissingDueDate   = errors.New("next execution date required")
)

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrValidation, reason)
}

// DecodeError describes persisted data that could not be parsed for a client.
// Load recovers from it; it only travels as far as the log.
type DecodeError struct {
	ClientID string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode recurring orders for client %q: %v", e.ClientID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
