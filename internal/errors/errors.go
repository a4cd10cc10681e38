package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError is the service-wide error carrying an identifier, an HTTP status code
// and an optional cause.
type AppError struct {
	Message string
	ID      string
	Status  int
	Cause   error
}

type Option func(*AppError)

func WithID(id string) Option {
	return func(e *AppError) { e.ID = id }
}

func WithCause(err error) Option {
	return func(e *AppError) { e.Cause = err }
}

// WithCode sets the HTTP status reported for the error.
func WithCode(status int) Option {
	return func(e *AppError) { e.Status = status }
}

func New(message string, opts ...Option) error {
	e := &AppError{Message: message, Status: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Internal(message string, opts ...Option) error {
	return New(message, append([]Option{WithCode(http.StatusInternalServerError)}, opts...)...)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Code returns the HTTP status associated with err.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var app *AppError
	if stderrors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	return http.StatusInternalServerError
}

// Details renders err with its identifier for logging.
func Details(err error) string {
	var app *AppError
	if stderrors.As(err, &app) && app.ID != "" {
		return fmt.Sprintf("[%s] %s", app.ID, err.Error())
	}
	return err.Error()
}

// ID returns the identifier of the outermost AppError in the chain.
func ID(err error) string {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.ID
	}
	return ""
}

// ValidationError rejects a malformed submission before any job exists.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// RemoteFetchError is returned when the content service answers with a non-2xx
// status or an unusable body.
type RemoteFetchError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteFetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// UploadError is fatal to a job.
type UploadError struct {
	Key   string
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Cause)
}

func (e *UploadError) Unwrap() error { return e.Cause }

// NotificationError is logged only; it never changes a job's phase.
type NotificationError struct {
	To    string
	Cause error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.To, e.Cause)
}

func (e *NotificationError) Unwrap() error { return e.Cause }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
