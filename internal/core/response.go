// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    *Page  `json:"meta,omitempty"`
}

type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Count int `json:"count"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Data: data})
}

func OKMessage(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Status: StatusSuccess, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Paginated(w http.ResponseWriter, data any, skip, limit, count int) {
	JSON(w, http.StatusOK, Envelope{
		Status: StatusSuccess,
		Data:   data,
		Meta:   &Page{Skip: skip, Limit: limit, Count: count},
	})
}

func JSONError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		InternalServerError(w, err)
		return
	}

	JSON(w, appErr.StatusCode, Envelope{
		Status:  StatusError,
		Message: appErr.Message,
		Code:    appErr.Code,
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, ValidationError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

func Forbidden(w http.ResponseWriter, message string) {
	JSONError(w, ForbiddenError(message))
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

// InternalServerError logs err and answers with a generic message; the
// error text never reaches the caller.
func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)

	switch {
	case errors.Is(err, ErrPartialConsistency):
		JSONError(w, PartialConsistencyError())
		return
	case errors.Is(err, ErrUpstream):
		JSONError(w, UpstreamError())
		return
	}

	JSON(w, http.StatusInternalServerError, Envelope{
		Status:  StatusError,
		Message: "internal server error",
		Code:    "INTERNAL_ERROR",
	})
}

// HandleError maps a service error onto the envelope. Validation messages
// are passed through, every other message is generic.
func HandleError(w http.ResponseWriter, err error, resource string) {
	if IsAppError(err) {
		JSONError(w, err)
		return
	}

	switch StatusFor(err) {
	case http.StatusBadRequest:
		if errors.Is(err, ErrSignature) {
			JSONError(w, SignatureError())
			return
		}
		BadRequest(w, validationMessage(err))
	case http.StatusUnauthorized:
		Unauthorized(w, "")
	case http.StatusForbidden:
		Forbidden(w, "insufficient permissions")
	case http.StatusNotFound:
		NotFound(w, resource)
	case http.StatusConflict:
		JSONError(w, DuplicateError(resource))
	default:
		InternalServerError(w, err)
	}
}

type validationMessager interface {
	ValidationMessage() string
}

func validationMessage(err error) string {
	var vm validationMessager
	if errors.As(err, &vm) {
		return vm.ValidationMessage()
	}
	return "invalid request"
}

// InputError carries a caller-facing validation message alongside
// ErrInvalidInput.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func (e *InputError) ValidationMessage() string {
	return e.Message
}

func Invalid(message string) error {
	return &InputError{Message: message}
}
