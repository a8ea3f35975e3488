package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "policy not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: policy not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
				Err:     nil,
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: ErrPolicyNotFound,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrPolicyNotFound,
			want:   false,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "scope").WithDetail("value", "team:")

	assert.Equal(t, "scope", err.Details["field"])
	assert.Equal(t, "team:", err.Details["value"])
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found error", ErrPolicyNotFound, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrConfigNotFound), true},
		{"validation error", ErrInvalidInput, false},
		{"regular error", errors.New("regular"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFoundError(tt.err))
		})
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", ErrInvalidInput, true},
		{"wrapped validation", fmt.Errorf("wrapped: %w", ErrInvalidConfig), true},
		{"not found error", ErrPolicyNotFound, false},
		{"regular error", errors.New("regular"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}

func TestIsAuthorizationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not authorized", ErrNotAuthorized, true},
		{"not eligible approver", ErrNotEligibleApprover, true},
		{"not requester", ErrNotRequester, true},
		{"validation error", ErrInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthorizationError(tt.err))
		})
	}
}

func TestIsConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"terminal case", ErrCaseTerminal, true},
		{"released reservation", ErrReservationReleased, true},
		{"consumed reservation", ErrReservationConsumed, true},
		{"invalid transition", ErrInvalidTransition, true},
		{"not found error", ErrApprovalNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConflictError(tt.err))
		})
	}
}

func TestIsResourceLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"concurrency limit", ErrConcurrencyLimitExceeded, true},
		{"daily limit", ErrDailyLimitExceeded, true},
		{"cost limit", ErrMonthlyCostExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsResourceLimitError(tt.err))
		})
	}
}

func TestIsCostLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"monthly cost", ErrMonthlyCostExceeded, true},
		{"daily request limit", ErrDailyLimitExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCostLimitError(tt.err))
		})
	}
}

func TestIsGovernanceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"access denied", ErrAccessDenied, true},
		{"tier insufficient", ErrTierInsufficient, true},
		{"approval required", ErrApprovalRequired, true},
		{"inactive account", ErrAccountInactive, true},
		{"compliance error", ErrComplianceScoreTooLow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGovernanceError(tt.err))
		})
	}
}

func TestIsComplianceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"score too low", ErrComplianceScoreTooLow, true},
		{"governance error", ErrAccessDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplianceError(tt.err))
		})
	}
}

func TestIsInternalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"internal error", ErrInternal, true},
		{"database error", ErrDatabaseError, true},
		{"evaluation failed", ErrEvaluationFailed, true},
		{"governance error", ErrAccessDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInternalError(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrPolicyNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidInput, ErrorTypeValidation},
		{"resource limit", ErrConcurrencyLimitExceeded, ErrorTypeResourceLimit},
		{"cost limit", ErrMonthlyCostExceeded, ErrorTypeCostLimit},
		{"governance", ErrTierInsufficient, ErrorTypeGovernance},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "tier").WithDetail("reason", "unknown value")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "tier", details["field"])
	assert.Equal(t, "unknown value", details["reason"])

	regularErr := errors.New("regular error")
	assert.Nil(t, GetErrorDetails(regularErr))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeInternal, "wrapped message", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "wrapped message", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to connect", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapValidation(t *testing.T) {
	baseErr := errors.New("bad scope")
	wrapped := WrapValidation("invalid scope key", baseErr)

	assert.True(t, IsValidationError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestAllErrorVariablesAreDefined(t *testing.T) {
	errorVars := []error{
		// Not Found
		ErrConfigNotFound,
		ErrPolicyNotFound,
		ErrApprovalNotFound,
		ErrReservationNotFound,
		ErrMetricsNotFound,
		ErrRequirementNotFound,

		// Validation
		ErrInvalidInput,
		ErrInvalidConfig,
		ErrInvalidPolicy,
		ErrInvalidDecision,
		ErrNoApprovers,

		// Authorization
		ErrNotAuthorized,
		ErrNotEligibleApprover,
		ErrNotRequester,

		// Conflict
		ErrCaseTerminal,
		ErrReservationReleased,
		ErrReservationConsumed,
		ErrInvalidTransition,

		// Resource Limit
		ErrConcurrencyLimitExceeded,
		ErrDailyLimitExceeded,

		// Cost Limit
		ErrMonthlyCostExceeded,

		// Governance
		ErrAccessDenied,
		ErrTierInsufficient,
		ErrApprovalRequired,
		ErrAccountInactive,

		// Compliance
		ErrComplianceScoreTooLow,

		// Internal
		ErrInternal,
		ErrDatabaseError,
		ErrTransactionFailed,
		ErrEvaluationFailed,
	}

	for _, err := range errorVars {
		assert.NotNil(t, err, "error variable should not be nil")
		assert.NotEmpty(t, err.Error(), "error should have a message")
	}
}

func TestErrorTypeCheckersCoverage(t *testing.T) {
	typeCheckers := map[ErrorType]func(error) bool{
		ErrorTypeNotFound:      IsNotFoundError,
		ErrorTypeValidation:    IsValidationError,
		ErrorTypeAuthorization: IsAuthorizationError,
		ErrorTypeConflict:      IsConflictError,
		ErrorTypeResourceLimit: IsResourceLimitError,
		ErrorTypeCostLimit:     IsCostLimitError,
		ErrorTypeGovernance:    IsGovernanceError,
		ErrorTypeCompliance:    IsComplianceError,
		ErrorTypeInternal:      IsInternalError,
	}

	for errType, checker := range typeCheckers {
		t.Run(string(errType), func(t *testing.T) {
			err := NewDomainError(errType, "test error", nil)
			assert.True(t, checker(err), "checker should return true for %s", errType)
		})
	}
}
