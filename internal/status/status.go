package status

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrUnauthorized           = errors.New("auth: actor is not allowed to perform this action")
	ErrSaleNotFound           = errors.New("sale: sale not found")
	ErrAlreadyProcessed       = errors.New("sale: sale already processed")
	ErrInvalidStateTransition = errors.New("sale: invalid state transition")
	ErrTierNotFound           = errors.New("inventory: tier not found")
	ErrInsufficientInventory  = errors.New("inventory: insufficient inventory")
	ErrInvalidQuantity        = errors.New("inventory: remaining quantity out of range")
	ErrPartnerNotFound        = errors.New("partner: partner code not found")
	ErrPartnerInactive        = errors.New("partner: partner is inactive")
	ErrValidation             = errors.New("validation: invalid input")
	ErrWebhookNotConfigured   = errors.New("webhook: endpoint url not configured")
	ErrWebhookLogNotFound     = errors.New("webhook: log entry not found")
	ErrQueueFull              = errors.New("webhook: dispatch queue full")
	ErrQueueClosed            = errors.New("webhook: dispatch queue closed")
)

// InsufficientInventoryError reports which tier was short and by how much.
type InsufficientInventoryError struct {
	TierID    string
	TierName  string
	Requested int
	Remaining int
}

func (e *InsufficientInventoryError) Error() string {
	name := e.TierName
	if name == "" {
		name = e.TierID
	}
	return fmt.Sprintf("inventory: insufficient inventory for %s: requested %d, remaining %d", name, e.Requested, e.Remaining)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// Shortfall is how many units the request exceeds the stock by.
func (e *InsufficientInventoryError) Shortfall() int {
	return e.Requested - e.Remaining
}

// ValidationError carries field-level messages keyed by input name.
type ValidationError struct {
	Fields validation.Errors
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: validation.Errors{
		field: validation.NewError("validation_invalid_"+field, message),
	}}
}

// AsValidationError converts ozzo validation output into a ValidationError.
// Any other error is returned unchanged.
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}
	return err
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return "validation: " + e.Fields.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
