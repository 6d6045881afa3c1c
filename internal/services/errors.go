package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/weddingdesk/internal/models"
)

var (
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates no event matches the provided token or id.
	ErrNotFound = errors.New("event not found")
	// ErrConflict signals a lifecycle transition that is no longer legal.
	ErrConflict = errors.New("event state conflict")
	// ErrDeliveryFailed wraps transport level mail failures.
	ErrDeliveryFailed = errors.New("email delivery failed")

	// ErrAlreadyAccepted is returned when an accepted event is accepted or declined again.
	ErrAlreadyAccepted = fmt.Errorf("%w: event already accepted", ErrConflict)
	// ErrNotPending is returned when a transition loses a race or targets a settled event.
	ErrNotPending = fmt.Errorf("%w: event is no longer pending", ErrConflict)
)

// ValidationError lists field level problems keyed by json field name.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DeliveryError reports a failed notification send.
type DeliveryError struct {
	Kind      models.EmailKind
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s to %s: %v", ErrDeliveryFailed, e.Kind, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDeliveryFailed) match.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
