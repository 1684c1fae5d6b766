// AngelaMos | 2026
// responder.go

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// HandlerFunc is an HTTP handler that reports failures by returning them.
// Responder.Wrap turns it into a plain http.HandlerFunc.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Responder is the single place where errors become HTTP responses.
type Responder struct {
	logger *slog.Logger
	debug  bool
}

func NewResponder(logger *slog.Logger, debug bool) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, debug: debug}
}

func (rs *Responder) Wrap(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			rs.Error(w, r, err)
		}
	}
}

func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := Translate(err)
	status := appErr.StatusCode()

	if status >= http.StatusInternalServerError {
		rs.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"trace_id", TraceIDFromContext(r.Context()),
		)
		SetSpanError(r.Context(), err)
	}

	body := ErrorEnvelope{
		Status:  "fail",
		Message: appErr.Message,
		Code:    appErr.Code,
	}
	if status >= http.StatusInternalServerError {
		body.Status = "error"
	}

	if rs.debug {
		body.Error = err.Error()
		body.Stack = appErr.Stack()
		if !appErr.Operational() {
			body.Message = err.Error()
		}
	}

	JSON(w, status, body)
}

func (rs *Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.Error(w, r, NotFoundError(
		fmt.Sprintf("Can't find %s on this server!", r.URL.Path),
	))
}

func (rs *Responder) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rs.Error(w, r, NewAppError(
		ErrInvalidInput,
		fmt.Sprintf("Method %s is not allowed on %s", r.Method, r.URL.Path),
		KindValidation,
		"METHOD_NOT_ALLOWED",
	))
}

// Translate maps any error onto an AppError. Errors that are neither
// AppErrors nor known sentinels become unexpected internal errors.
func Translate(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	var (
		verrs     validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verrs):
		return ValidationError(FormatValidationError(err))
	case errors.As(err, &maxErr), errors.Is(err, ErrBodyTooLarge):
		return NewAppError(err, "Request body is too large", KindTooLarge, "BODY_TOO_LARGE")
	case errors.As(err, &syntaxErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return NewAppError(err, "invalid request body", KindValidation, "INVALID_BODY")
	case errors.As(err, &typeErr):
		return NewAppError(
			err,
			fmt.Sprintf("Invalid value for field %s", typeErr.Field),
			KindValidation,
			"INVALID_BODY",
		)
	case errors.Is(err, ErrNotFound):
		return NotFoundError("")
	case errors.Is(err, ErrDuplicateKey):
		return NewAppError(
			err,
			"Duplicate field value. Please use another value!",
			KindConflict,
			"DUPLICATE",
		)
	case errors.Is(err, ErrConflict):
		return ConflictError("The document was modified by another request. Please retry.")
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError()
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError()
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("")
	case errors.Is(err, ErrForbidden):
		return ForbiddenError("")
	case errors.Is(err, ErrRateLimited):
		return RateLimitedError()
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrNotConfigured):
		return UnavailableError("Service temporarily unavailable. Try again later!")
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(err, err.Error(), KindValidation, "VALIDATION_ERROR")
	case errors.Is(err, context.Canceled):
		return NewAppError(err, "request canceled", KindValidation, "CANCELED")
	default:
		return unexpectedError(err)
	}
}
