package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeResourceLimit ErrorType = "resource_limit"
	ErrorTypeCostLimit     ErrorType = "cost_limit"
	ErrorTypeGovernance    ErrorType = "governance"
	ErrorTypeCompliance    ErrorType = "compliance"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrConfigNotFound      = NewDomainError(ErrorTypeNotFound, "governance config not found", nil)
	ErrPolicyNotFound      = NewDomainError(ErrorTypeNotFound, "access policy not found", nil)
	ErrApprovalNotFound    = NewDomainError(ErrorTypeNotFound, "approval case not found", nil)
	ErrReservationNotFound = NewDomainError(ErrorTypeNotFound, "reservation not found", nil)
	ErrMetricsNotFound     = NewDomainError(ErrorTypeNotFound, "usage metrics not found", nil)
	ErrRequirementNotFound = NewDomainError(ErrorTypeNotFound, "compliance requirement not found", nil)

	// Validation Errors
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidConfig   = NewDomainError(ErrorTypeValidation, "invalid governance configuration", nil)
	ErrInvalidPolicy   = NewDomainError(ErrorTypeValidation, "invalid access policy", nil)
	ErrInvalidDecision = NewDomainError(ErrorTypeValidation, "invalid approval decision", nil)
	ErrNoApprovers     = NewDomainError(ErrorTypeValidation, "no eligible approvers for tier", nil)

	// Authorization Errors
	ErrNotAuthorized       = NewDomainError(ErrorTypeAuthorization, "actor not authorized", nil)
	ErrNotEligibleApprover = NewDomainError(ErrorTypeAuthorization, "actor is not the current approver", nil)
	ErrNotRequester        = NewDomainError(ErrorTypeAuthorization, "only the requester or an admin may cancel", nil)

	// Conflict Errors
	ErrCaseTerminal        = NewDomainError(ErrorTypeConflict, "approval case is in a terminal state", nil)
	ErrReservationReleased = NewDomainError(ErrorTypeConflict, "reservation was already released", nil)
	ErrReservationConsumed = NewDomainError(ErrorTypeConflict, "reservation was already committed", nil)
	ErrInvalidTransition   = NewDomainError(ErrorTypeConflict, "lifecycle transition not allowed", nil)

	// Resource Limit Errors
	ErrConcurrencyLimitExceeded = NewDomainError(ErrorTypeResourceLimit, "concurrent request limit exceeded", nil)
	ErrDailyLimitExceeded       = NewDomainError(ErrorTypeResourceLimit, "daily request limit exceeded", nil)

	// Cost Limit Errors
	ErrMonthlyCostExceeded = NewDomainError(ErrorTypeCostLimit, "monthly cost limit exceeded", nil)

	// Governance Errors
	ErrAccessDenied       = NewDomainError(ErrorTypeGovernance, "access denied by policy", nil)
	ErrTierInsufficient   = NewDomainError(ErrorTypeGovernance, "governance tier insufficient", nil)
	ErrApprovalRequired   = NewDomainError(ErrorTypeGovernance, "action requires approval", nil)
	ErrAccountInactive    = NewDomainError(ErrorTypeGovernance, "actor account is inactive", nil)

	// Compliance Errors
	ErrComplianceScoreTooLow = NewDomainError(ErrorTypeCompliance, "compliance score below policy minimum", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
	ErrEvaluationFailed  = NewDomainError(ErrorTypeInternal, "evaluation failed", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsAuthorizationError checks if an error is an authorization error
func IsAuthorizationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeAuthorization
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsResourceLimitError checks if an error is a resource limit error
func IsResourceLimitError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeResourceLimit
	}
	return false
}

// IsCostLimitError checks if an error is a cost limit error
func IsCostLimitError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCostLimit
	}
	return false
}

// IsGovernanceError checks if an error is a governance denial
func IsGovernanceError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeGovernance
	}
	return false
}

// IsComplianceError checks if an error is a compliance error
func IsComplianceError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCompliance
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return NewDomainError(ErrorTypeValidation, message, err)
}
