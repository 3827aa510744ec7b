package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independently of the transport that reports it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Stable machine-readable codes.
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeWeakPassword             = "WEAK_PASSWORD"
	CodePasswordTooLong          = "PASSWORD_TOO_LONG"
	CodeSamePassword             = "SAME_PASSWORD"
	CodeInvalidRole              = "INVALID_ROLE"
	CodeInvalidStatus            = "INVALID_STATUS"
	CodeTenantInactive           = "TENANT_INACTIVE"
	CodeAlreadyVerified          = "ALREADY_VERIFIED"
	CodeRefreshTokenRequired     = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeAccountInactive          = "ACCOUNT_INACTIVE"
	CodeInvalidRefreshToken      = "INVALID_REFRESH_TOKEN"
	CodeTokenRevoked             = "TOKEN_REVOKED"
	CodeTokenExpired             = "TOKEN_EXPIRED"
	CodeTokenInvalid             = "TOKEN_INVALID"
	CodeNoToken                  = "NO_TOKEN"
	CodeUserNotFound             = "USER_NOT_FOUND"
	CodeUserInactive             = "USER_INACTIVE"
	CodeAuthRequired             = "AUTH_REQUIRED"
	CodePermissionDenied         = "PERMISSION_DENIED"
	CodeRoleRequired             = "ROLE_REQUIRED"
	CodeInsufficientRoleLevel    = "INSUFFICIENT_ROLE_LEVEL"
	CodeOwnershipRequired        = "OWNERSHIP_REQUIRED"
	CodeCrossTenant              = "CROSS_TENANT"
	CodeTenantNotFound           = "TENANT_NOT_FOUND"
	CodeInvalidVerificationToken = "INVALID_VERIFICATION_TOKEN"
	CodeInvalidResetToken        = "INVALID_RESET_TOKEN"
	CodeUserExists               = "USER_EXISTS"
	CodeEmailSendFailed          = "EMAIL_SEND_FAILED"
	CodeRateLimited              = "RATE_LIMITED"
	CodeRouteNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed         = "METHOD_NOT_ALLOWED"
	CodeInternal                 = "INTERNAL_ERROR"
)

// Error is the single error type surfaced by the auth core.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error   { return newError(KindValidation, code, message) }
func Unauthorized(code, message string) *Error { return newError(KindUnauthorized, code, message) }
func Forbidden(code, message string) *Error    { return newError(KindForbidden, code, message) }
func NotFound(code, message string) *Error     { return newError(KindNotFound, code, message) }
func Conflict(code, message string) *Error     { return newError(KindConflict, code, message) }

// Internal wraps an infrastructure failure. The cause is kept for logging only.
func Internal(code, message string, err error) *Error {
	e := newError(KindInternal, code, message)
	e.Err = err
	return e
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
