package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeDuplicate    ErrorType = "DUPLICATE"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidCategory  ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidRole      ErrorCode = "INVALID_ROLE"
	ErrCodeBatchTooLarge    ErrorCode = "BATCH_TOO_LARGE"
	ErrCodeSelfTarget       ErrorCode = "SELF_TARGET_FORBIDDEN"

	ErrCodeAssetNotFound      ErrorCode = "ASSET_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeAssignmentNotFound ErrorCode = "ASSIGNMENT_NOT_FOUND"

	ErrCodeAssetUnavailable   ErrorCode = "ASSET_UNAVAILABLE"
	ErrCodeAssetRetired       ErrorCode = "ASSET_RETIRED"
	ErrCodeAlreadyAssigned    ErrorCode = "ASSET_ALREADY_ASSIGNED"
	ErrCodeAlreadyReturned    ErrorCode = "ASSIGNMENT_ALREADY_RETURNED"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeActiveAssignments  ErrorCode = "USER_HAS_ACTIVE_ASSIGNMENTS"
	ErrCodeDuplicateTag       ErrorCode = "DUPLICATE_ASSET_TAG"
	ErrCodeDuplicateEmail     ErrorCode = "DUPLICATE_EMAIL"
	ErrCodeInsufficientRole   ErrorCode = "INSUFFICIENT_ROLE"
	ErrCodeDepartmentScope    ErrorCode = "DEPARTMENT_SCOPE_DENIED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewPermissionError reports a failed role or department scope check.
func NewPermissionError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewDuplicateError reports a unique constraint violation (asset tag, email).
func NewDuplicateError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicate,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrAssetNotFound      = NewNotFoundError("Asset not found", ErrCodeAssetNotFound)
	ErrUserNotFound       = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrAssignmentNotFound = NewNotFoundError("Assignment not found", ErrCodeAssignmentNotFound)

	ErrAssetUnavailable  = NewConflictError("asset is not available for assignment", ErrCodeAssetUnavailable)
	ErrAssetRetired      = NewConflictError("retired assets cannot be assigned", ErrCodeAssetRetired)
	ErrAlreadyAssigned   = NewConflictError("asset already has an active assignment", ErrCodeAlreadyAssigned)
	ErrAlreadyReturned   = NewConflictError("assignment has already been returned", ErrCodeAlreadyReturned)
	ErrTargetInactive    = NewValidationError("target user is inactive", ErrCodeUserInactive)
	ErrActiveAssignments = NewConflictError("user still has active assignments", ErrCodeActiveAssignments)

	ErrInsufficientRole = NewPermissionError("insufficient role for this operation", ErrCodeInsufficientRole)
	ErrDepartmentScope  = NewPermissionError("record is outside your department scope", ErrCodeDepartmentScope)
	ErrSelfTarget       = NewValidationError("operation cannot target your own account", ErrCodeSelfTarget)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewPermissionError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
