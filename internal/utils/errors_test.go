package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	t.Run("With field", func(t *testing.T) {
		err := &ValidationError{Field: "page_len", Message: "must be a number"}

		assert.Equal(t, "validation error on field 'page_len': must be a number", err.Error())
		assert.True(t, errors.Is(err, ErrValidation))
		assert.False(t, errors.Is(err, ErrData))
	})

	t.Run("Without field", func(t *testing.T) {
		err := &ValidationError{Message: "input is invalid"}

		assert.Equal(t, "validation error: input is invalid", err.Error())
	})
}

func TestDataError(t *testing.T) {
	err := WrapDataError("1=1", "Invalid Search Field 1=1")

	assert.Equal(t, "Invalid Search Field 1=1", err.Error())
	assert.True(t, IsDataError(err))
	assert.True(t, IsValidationError(err), "data errors are validation errors too")
	assert.False(t, IsPermissionError(err))

	bare := &DataError{Value: ";"}
	assert.Equal(t, `invalid value ";"`, bare.Error())
}

func TestPermissionError(t *testing.T) {
	err := WrapPermissionError("rerun_patch", "Re-running patch is only allowed in developer mode.")

	assert.Equal(t, "Re-running patch is only allowed in developer mode.", err.Error())
	assert.True(t, IsPermissionError(err))
	assert.False(t, IsValidationError(err))

	bare := &PermissionError{Action: "rerun_patch"}
	assert.Equal(t, "not permitted: rerun_patch", bare.Error())
}

func TestNotFoundError(t *testing.T) {
	assert.Equal(t, "patch log with ID '7' not found", WrapNotFoundError("patch log", "7").Error())
	assert.Equal(t, "doctype not found", WrapNotFoundError("doctype", "").Error())
	assert.True(t, IsNotFoundError(WrapNotFoundError("doctype", "")))
}

func TestConflictError(t *testing.T) {
	err := WrapConflictError("record", "name", "USA")
	assert.Equal(t, "record already exists with name='USA'", err.Error())
	assert.True(t, IsConflictError(err))

	assert.Equal(t, "record already exists", WrapConflictError("record", "name", "").Error())
}

func TestDatabaseError(t *testing.T) {
	cause := errors.New("connection failed")
	err := WrapDatabaseError("search records", cause)

	assert.Equal(t, "database error during search records: connection failed", err.Error())
	assert.True(t, IsDatabaseError(err))
	assert.True(t, errors.Is(err, cause))

	noCause := WrapDatabaseError("search records", nil)
	assert.Equal(t, "database error during search records", noCause.Error())
	assert.True(t, IsDatabaseError(noCause))
}

func TestErrorChaining(t *testing.T) {
	wrapped := fmt.Errorf("search_link: %w", WrapDataError("*", ""))

	assert.True(t, IsDataError(wrapped))
	var de *DataError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "*", de.Value)
}

func TestExcType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{WrapDataError("x", ""), "DataError"},
		{RequiredFieldError("doctype"), "ValidationError"},
		{WrapPermissionError("x", ""), "PermissionError"},
		{WrapNotFoundError("patch log", "1"), "DoesNotExistError"},
		{WrapConflictError("doctype", "name", "Country"), "DuplicateEntryError"},
		{errors.New("boom"), "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ExcType(tt.err))
		})
	}
}

func TestFieldErrorHelpers(t *testing.T) {
	assert.Equal(t, "validation error on field 'doctype': field is required", RequiredFieldError("doctype").Error())
	assert.Equal(t, "validation error on field 'parent': not a group", InvalidFieldError("parent", "not a group").Error())
}
