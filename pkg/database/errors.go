package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
)

// IsSerializationFailure reports whether err is a PostgreSQL serialization or
// deadlock failure. These are the only storage errors worth a bounded retry.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Serialization failure (40001) / deadlock (40P01)
	case "40001", "40P01":
		return errors.ConcurrentModification("stock record")

	default:
		return nil
	}
}

// mapUniqueConstraint maps unique violations on known indexes to domain errors.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "drugs_code"):
		return errors.DuplicateCode(extractDetailValue(pqErr.Detail))

	case strings.Contains(constraint, "ledger_entries_transaction_id"):
		return errors.ConcurrentModification("ledger transaction id")

	default:
		return errors.Conflict("a record with the same unique value already exists")
	}
}

// mapCheckConstraint maps CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_on_hand_non_negative"):
		return errors.InvalidAdjustment("", 0, 0)

	case strings.Contains(constraint, "unit_cost_non_negative"):
		return errors.InvalidCost("unit cost must not be negative")

	case strings.Contains(constraint, "reorder_level_non_negative"):
		return errors.Validation(map[string]string{
			"reorder_level": "must not be negative",
		})

	case strings.Contains(constraint, "transaction_type_valid"):
		return errors.Validation(map[string]string{
			"transaction_type": "must be one of: receive, dispense, adjust",
		})

	default:
		return errors.Validation(map[string]string{
			"constraint": constraint,
		})
	}
}

// extractDetailValue pulls the offending value out of a pq detail string like
// `Key (code)=(DRG00001) already exists.`
func extractDetailValue(detail string) string {
	start := strings.Index(detail, ")=(")
	if start == -1 {
		return ""
	}
	rest := detail[start+3:]
	end := strings.Index(rest, ")")
	if end == -1 {
		return rest
	}
	return rest[:end]
}
