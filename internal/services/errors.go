package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/fieldbill/validation"
	"gorm.io/gorm"
)

// Error kinds. Concrete errors below match them with errors.Is.
var (
	ErrValidation = errors.New("validation_failed")
	ErrNotFound   = errors.New("not_found")
	ErrConflict   = errors.New("conflict")
	ErrDependency = errors.New("dependency")
)

// Conflict reasons.
var (
	ErrCannotDeleteDefault = fmt.Errorf("%w: cannot_delete_default_list", ErrConflict)
	ErrDuplicateCode       = fmt.Errorf("%w: duplicate_article_code", ErrConflict)
	ErrLineLocked          = fmt.Errorf("%w: billing_line_locked", ErrConflict)
	ErrInvalidTransition   = fmt.Errorf("%w: invalid_status_transition", ErrConflict)
)

// ValidationError carries per-field violation codes.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

func invalidField(field, code string) error {
	return &ValidationError{Violations: validation.Violations{field: code}}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DependencyError reports a delete blocked by referencing records.
type DependencyError struct {
	Resource   string
	ID         any
	Dependents string
	Count      int64
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %v is referenced by %d %s", e.Resource, e.ID, e.Count, e.Dependents)
}

func (e *DependencyError) Unwrap() error { return ErrDependency }

// notFound maps gorm.ErrRecordNotFound to a NotFoundError and wraps anything
// else with op.
func notFound(err error, op, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation recognizes unique constraint errors from either driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// wrapUnlessKind adds op context to store failures but returns the typed
// kinds untouched.
func wrapUnlessKind(err error, op string) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrDependency} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
