package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := stderrors.New("connection reset")

	tests := []struct {
		name     string
		err      *Error
		wantType ErrorType
		wantMsg  string
		fatal    bool
	}{
		{"config", ConfigErrorf("setting %s is not configured", "W"), ErrorTypeConfig, "setting W is not configured", true},
		{"wrapped config", WrapConfig(cause, "failed to read %s", "W"), ErrorTypeConfig, "failed to read W: connection reset", true},
		{"validation", ValidationErrorf("amount must be positive, got %d", -1), ErrorTypeValidation, "amount must be positive, got -1", false},
		{"not found", NotFoundError("asset", "a1"), ErrorTypeNotFound, "asset not found: a1", false},
		{"conflict", ConflictErrorf("duplicate %s", "slug"), ErrorTypeConflict, "duplicate slug", false},
		{"storage", StorageError(cause, "write failed"), ErrorTypeStorage, "write failed: connection reset", true},
		{"storagef", StorageErrorf(cause, "load %s", "a1"), ErrorTypeStorage, "load a1: connection reset", true},
		{"external", ExternalError(cause, "pinterest down"), ErrorTypeExternal, "pinterest down: connection reset", false},
		{"internal", InternalErrorf("bad state"), ErrorTypeInternal, "bad state", true},
		{"security", SecurityError("unauthorized"), ErrorTypeSecurity, "unauthorized", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeStorage, SeverityCritical, "nothing"))
}

func TestTypeChecksThroughWrapping(t *testing.T) {
	err := fmt.Errorf("adopt: %w", NotFoundError("pin", "p1"))

	assert.Equal(t, ErrorTypeNotFound, GetType(err))
	assert.True(t, IsType(err, ErrorTypeNotFound))
	assert.False(t, IsType(err, ErrorTypeConflict))
	assert.Equal(t, SeverityHigh, GetSeverity(err))

	plain := stderrors.New("boom")
	assert.Equal(t, ErrorTypeInternal, GetType(plain))
	assert.Equal(t, SeverityMedium, GetSeverity(plain))
	assert.Equal(t, SeverityLow, GetSeverity(nil))
	assert.False(t, IsType(nil, ErrorTypeInternal))
	assert.False(t, IsFatal(plain))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := StorageError(cause, "insert failed")
	assert.True(t, stderrors.Is(err, cause))
}

func TestDetailedString(t *testing.T) {
	err := ExternalErrorf("pinterest API error (%d): %s", 429, "slow down").WithContext("status", 429)

	detailed := err.DetailedString()
	require.Contains(t, detailed, "[MEDIUM] [EXTERNAL] pinterest API error (429): slow down")
	assert.Contains(t, detailed, "status: 429")
	assert.Contains(t, detailed, "Stack trace:")
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", ErrorTypeNotFound.String())
	assert.Equal(t, "UNKNOWN", ErrorType(99).String())
	assert.Equal(t, "CRITICAL", SeverityCritical.String())
	assert.Equal(t, "UNKNOWN", Severity(99).String())
}
