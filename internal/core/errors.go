// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrConflict      = errors.New("version conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrUnavailable   = errors.New("service unavailable")
	ErrNotConfigured = errors.New("not configured")
	ErrRateLimited   = errors.New("rate limited")
)

// ErrorKind classifies operational errors. The set is closed; every kind
// has exactly one HTTP status in kindStatus.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooLarge
	KindTooManyRequests
	KindUnavailable
)

var kindStatus = [...]int{
	KindInternal:     http.StatusInternalServerError,
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindTooLarge:     http.StatusRequestEntityTooLarge,

	KindTooManyRequests: http.StatusTooManyRequests,
	KindUnavailable:     http.StatusServiceUnavailable,
}

var kindNames = [...]string{
	KindInternal:     "internal",
	KindValidation:   "validation",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindNotFound:     "not_found",
	KindConflict:     "conflict",
	KindTooLarge:     "too_large",

	KindTooManyRequests: "rate_limited",
	KindUnavailable:     "unavailable",
}

func (k ErrorKind) Status() int {
	if int(k) >= len(kindStatus) {
		return http.StatusInternalServerError
	}
	return kindStatus[k]
}

func (k ErrorKind) String() string {
	if int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// AppError is an anticipated failure whose Message is safe to show to
// clients in every environment.
type AppError struct {
	Kind    ErrorKind
	Message string
	Code    string
	Err     error

	unexpected bool
	stack      []uintptr
}

func NewAppError(err error, message string, kind ErrorKind, code string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Code:    code,
		Err:     err,
		stack:   callers(),
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.Kind.Status()
}

// Operational reports whether the error was constructed deliberately, as
// opposed to an unexpected fault wrapped by the responder.
func (e *AppError) Operational() bool {
	return !e.unexpected
}

func (e *AppError) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func callers() []uintptr {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func ValidationError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, KindValidation, "VALIDATION_ERROR")
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "You are not logged in! Please log in to get access."
	}
	return NewAppError(ErrUnauthorized, message, KindUnauthorized, "UNAUTHORIZED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "You do not have permission to perform this action"
	}
	return NewAppError(ErrForbidden, message, KindForbidden, "FORBIDDEN")
}

func NotFoundError(message string) *AppError {
	if message == "" {
		message = "No document found with that ID"
	}
	return NewAppError(ErrNotFound, message, KindNotFound, "NOT_FOUND")
}

func ConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, KindConflict, "CONFLICT")
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		fmt.Sprintf("Duplicate field value: %s. Please use another value!", field),
		KindConflict,
		"DUPLICATE",
	)
}

func InternalError(message string, err error) *AppError {
	return NewAppError(err, message, KindInternal, "INTERNAL_ERROR")
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"Invalid token. Please log in again!",
		KindUnauthorized,
		"TOKEN_INVALID",
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(
		ErrTokenExpired,
		"Your token has expired! Please log in again.",
		KindUnauthorized,
		"TOKEN_EXPIRED",
	)
}

func RateLimitedError() *AppError {
	return NewAppError(
		ErrRateLimited,
		"Too many requests from this IP, please try again in an hour!",
		KindTooManyRequests,
		"RATE_LIMITED",
	)
}

func UnavailableError(message string) *AppError {
	return NewAppError(ErrUnavailable, message, KindUnavailable, "UNAVAILABLE")
}

func unexpectedError(err error) *AppError {
	appErr := NewAppError(
		err,
		"Something went wrong!",
		KindInternal,
		"INTERNAL_ERROR",
	)
	appErr.unexpected = true
	return appErr
}
