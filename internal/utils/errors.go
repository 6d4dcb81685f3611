package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors every typed error below unwraps to
var (
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")

	// ErrData is returned when untrusted input would alter a generated query
	ErrData = errors.New("data error")

	// ErrPermission is returned when an action is not allowed in the current runtime
	ErrPermission = errors.New("permission denied")

	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when there's a conflict with existing data
	ErrConflict = errors.New("conflict")

	// ErrDatabase is returned when there's a database operation error
	ErrDatabase = errors.New("database error")
)

// ValidationError represents an error that occurs during input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DataError is raised for identifiers (search fields, filter keys) that could
// change the structure of a query. It is also a validation error.
type DataError struct {
	Value   string
	Message string
}

func (e *DataError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid value %q", e.Value)
}

func (e *DataError) Is(target error) bool {
	return target == ErrData || target == ErrValidation
}

// PermissionError blocks an action. UserMessage is shown to the caller as is.
type PermissionError struct {
	Action      string
	UserMessage string
}

func (e *PermissionError) Error() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return fmt.Sprintf("not permitted: %s", e.Action)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermission
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError represents an error when there's a conflict with existing data
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s already exists with %s='%s'", e.Resource, e.Field, e.Value)
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// DatabaseError represents an error that occurs during database operations
type DatabaseError struct {
	Operation string
	Cause     error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("database error during %s", e.Operation)
}

func (e *DatabaseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDatabase}
	}
	return []error{ErrDatabase, e.Cause}
}

// WrapValidationError wraps an error as a validation error
func WrapValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapDataError reports an unsafe identifier
func WrapDataError(value, message string) error {
	return &DataError{
		Value:   value,
		Message: message,
	}
}

// WrapPermissionError blocks action with a message meant for the end user
func WrapPermissionError(action, userMessage string) error {
	return &PermissionError{
		Action:      action,
		UserMessage: userMessage,
	}
}

// WrapNotFoundError wraps an error as a not found error
func WrapNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// WrapConflictError wraps an error as a conflict error
func WrapConflictError(resource, field, value string) error {
	return &ConflictError{
		Resource: resource,
		Field:    field,
		Value:    value,
	}
}

// WrapDatabaseError wraps an error as a database error
func WrapDatabaseError(operation string, cause error) error {
	return &DatabaseError{
		Operation: operation,
		Cause:     cause,
	}
}

// IsValidationError checks if an error is a validation error. Data errors count.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDataError checks if an error is a data error
func IsDataError(err error) bool {
	return errors.Is(err, ErrData)
}

// IsPermissionError checks if an error is a permission error
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsDatabaseError checks if an error is a database error
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// ExcType names the error kind for API responses
func ExcType(err error) string {
	switch {
	case IsDataError(err):
		return "DataError"
	case IsValidationError(err):
		return "ValidationError"
	case IsPermissionError(err):
		return "PermissionError"
	case IsNotFoundError(err):
		return "DoesNotExistError"
	case IsConflictError(err):
		return "DuplicateEntryError"
	default:
		return "InternalError"
	}
}

// RequiredFieldError creates a validation error for required fields
func RequiredFieldError(field string) error {
	return WrapValidationError(field, "field is required")
}

// InvalidFieldError creates a validation error for invalid field values
func InvalidFieldError(field, reason string) error {
	return WrapValidationError(field, reason)
}
