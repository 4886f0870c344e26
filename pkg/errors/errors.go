package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound               = errors.New("resource not found")
	ErrBadRequest             = errors.New("bad request")
	ErrConflict               = errors.New("resource conflict")
	ErrInternal               = errors.New("internal server error")
	ErrValidation             = errors.New("validation error")
	ErrDuplicateCode          = errors.New("duplicate code")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidCost            = errors.New("invalid cost")
	ErrInvalidExpiry          = errors.New("invalid expiry date")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidAdjustment      = errors.New("invalid adjustment")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Domain error constructors for the inventory ledger

// DuplicateCode indicates a drug code collides with an existing catalog entry.
func DuplicateCode(code string) *AppError {
	return &AppError{
		Err:        ErrDuplicateCode,
		Code:       "DUPLICATE_CODE",
		Message:    fmt.Sprintf("drug code %s already exists", code),
		StatusCode: http.StatusConflict,
	}
}

// InvalidQuantity indicates a zero or negative quantity where a positive one is required.
func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// InvalidCost indicates a negative unit cost.
func InvalidCost(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidCost,
		Code:       "INVALID_COST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// InvalidExpiry indicates an unparseable expiry date.
func InvalidExpiry(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidExpiry,
		Code:       "INVALID_EXPIRY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// InsufficientStock indicates a dispense request exceeding available stock.
// No mutation has been applied when this is returned.
func InsufficientStock(drugID string, requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for drug %s: requested %d, available %d", drugID, requested, available),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"drug_id":   drugID,
			"requested": fmt.Sprintf("%d", requested),
			"available": fmt.Sprintf("%d", available),
		},
	}
}

// InvalidAdjustment indicates a manual correction that would drive a batch negative.
func InvalidAdjustment(batchID string, current, delta int) *AppError {
	return &AppError{
		Err:        ErrInvalidAdjustment,
		Code:       "INVALID_ADJUSTMENT",
		Message:    fmt.Sprintf("adjustment of %d would drive batch %s below zero (current %d)", delta, batchID, current),
		StatusCode: http.StatusConflict,
	}
}

// ConcurrentModification indicates a storage-level conflict after retries were
// exhausted. Callers may retry the whole operation.
func ConcurrentModification(resource string) *AppError {
	return &AppError{
		Err:        ErrConcurrentModification,
		Code:       "CONCURRENT_MODIFICATION",
		Message:    fmt.Sprintf("%s was modified concurrently, please retry", resource),
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
