package recurring

import (
	"fmt"
	"strings"
)

// Validate checks an order before it reaches the store. Errors wrap
// ErrValidation plus the specific reason.
func Validate(o Order) error {
	if strings.TrimSpace(o.Name) == "" {
		return invalid(ErrEmptyName)
	}
	if len(o.Items) == 0 {
		return invalid(ErrNoItems)
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return invalid(fmt.Errorf("items[%d]: %w", i, ErrMissingProduct))
		}
		if it.Quantity <= 0 {
			return invalid(fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity))
		}
	}
	if !o.Frequency.Valid() {
		return invalid(fmt.Errorf("%w %q", ErrUnknownFrequency, o.Frequency))
	}
	if o.NextExecutionDate.IsZero() {
		return invalid(ErrMissingDueDate)
	}
	return nil
}
