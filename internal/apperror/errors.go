// Package apperror defines the closed error taxonomy used across the storefront
// service and the normalizer that turns any error into a public JSON envelope.
//
// Errors raised on purpose (bad input, missing resources, rate limits) should
// always be constructed with New or Wrap so they carry a Kind and bypass the
// heuristic classification in Classify.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind identifies an error family member. The set is closed: every Kind has a
// fixed HTTP status and operational default.
type Kind string

const (
	KindDatabase        Kind = "DATABASE_ERROR"
	KindConnection      Kind = "CONNECTION_ERROR"
	KindQuery           Kind = "QUERY_ERROR"
	KindConstraint      Kind = "CONSTRAINT_ERROR"
	KindFileNotFound    Kind = "FILE_NOT_FOUND"
	KindFileUpload      Kind = "FILE_UPLOAD_ERROR"
	KindFileProcessing  Kind = "FILE_PROCESSING_ERROR"
	KindFileTooLarge    Kind = "FILE_TOO_LARGE"
	KindPayloadTooLarge Kind = "PAYLOAD_TOO_LARGE"
	KindConversion      Kind = "CONVERSION_ERROR"

	KindValidation   Kind = "VALIDATION_ERROR"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindMissingField Kind = "MISSING_REQUIRED_FIELD"

	KindAuthentication     Kind = "AUTHENTICATION_ERROR"
	KindAuthorization      Kind = "AUTHORIZATION_ERROR"
	KindTokenExpired       Kind = "TOKEN_EXPIRED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"

	KindNotFound      Kind = "RESOURCE_NOT_FOUND"
	KindAlreadyExists Kind = "RESOURCE_ALREADY_EXISTS"
	KindBusinessLogic Kind = "BUSINESS_LOGIC_ERROR"

	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindAPI             Kind = "API_ERROR"
	KindNetwork         Kind = "NETWORK_ERROR"

	KindRateLimit Kind = "RATE_LIMIT_ERROR"

	KindInternal Kind = "INTERNAL_ERROR"
	KindUnknown  Kind = "UNKNOWN_ERROR"
)

type kindInfo struct {
	status      int
	operational bool
	message     string
}

var kinds = map[Kind]kindInfo{
	KindDatabase:        {http.StatusInternalServerError, false, "A database error occurred"},
	KindConnection:      {http.StatusServiceUnavailable, true, "Service temporarily unavailable"},
	KindQuery:           {http.StatusInternalServerError, false, "A database query failed"},
	KindConstraint:      {http.StatusConflict, true, "The request conflicts with existing data"},
	KindFileNotFound:    {http.StatusNotFound, true, "File not found"},
	KindFileUpload:      {http.StatusInternalServerError, true, "File upload failed"},
	KindFileProcessing:  {http.StatusInternalServerError, false, "File processing failed"},
	KindFileTooLarge:    {http.StatusRequestEntityTooLarge, true, "File too large"},
	KindPayloadTooLarge: {http.StatusRequestEntityTooLarge, true, "Request body too large"},
	KindConversion:      {http.StatusBadRequest, true, "Malformed request data"},

	KindValidation:   {http.StatusBadRequest, true, "Validation failed"},
	KindInvalidInput: {http.StatusBadRequest, true, "Invalid input"},
	KindMissingField: {http.StatusBadRequest, true, "Missing required field"},

	KindAuthentication:     {http.StatusUnauthorized, true, "Authentication required"},
	KindAuthorization:      {http.StatusForbidden, true, "Insufficient permissions"},
	KindTokenExpired:       {http.StatusUnauthorized, true, "Token expired"},
	KindInvalidCredentials: {http.StatusUnauthorized, true, "Invalid credentials"},

	KindNotFound:      {http.StatusNotFound, true, "Resource not found"},
	KindAlreadyExists: {http.StatusConflict, true, "Resource already exists"},
	KindBusinessLogic: {http.StatusBadRequest, true, "Request could not be processed"},

	KindExternalService: {http.StatusBadGateway, true, "Upstream service error"},
	KindAPI:             {http.StatusBadGateway, true, "Upstream API error"},
	KindNetwork:         {http.StatusServiceUnavailable, true, "Network error"},

	KindRateLimit: {http.StatusTooManyRequests, true, "Rate limit exceeded"},

	KindInternal: {http.StatusInternalServerError, false, "Internal server error"},
	KindUnknown:  {http.StatusInternalServerError, false, "Internal server error"},
}

// Status returns the fixed HTTP status for k. Unrecognized kinds map to 500.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Operational reports whether errors of this kind describe expected, handled
// conditions rather than bugs.
func (k Kind) Operational() bool {
	return kinds[k].operational
}

// DefaultMessage is the public message used when an error's own message must
// not be exposed.
func (k Kind) DefaultMessage() string {
	if info, ok := kinds[k]; ok {
		return info.message
	}
	return kinds[KindUnknown].message
}

// Valid reports whether k is a member of the closed set.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Kinds returns every member of the closed set.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	return out
}

// AppError is a typed error carrying its kind, HTTP status and optional
// client-facing details.
type AppError struct {
	Kind        Kind
	Message     string
	Status      int
	Operational bool
	Details     any
	Err         error

	stack string
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

// Is matches another *AppError of the same kind so sentinel-style comparisons
// work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Stack returns the call stack captured when the error was constructed.
func (e *AppError) Stack() string {
	return e.stack
}

// WithDetails returns a copy of the error carrying details.
func (e *AppError) WithDetails(details any) *AppError {
	dup := *e
	dup.Details = details
	return &dup
}

// New creates an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return build(kind, message, nil)
}

// Wrap creates an AppError of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *AppError {
	return build(kind, message, cause)
}

func build(kind Kind, message string, cause error) *AppError {
	if !kind.Valid() {
		kind = KindUnknown
	}
	if message == "" {
		message = kind.DefaultMessage()
	}
	return &AppError{
		Kind:        kind,
		Message:     message,
		Status:      kind.Status(),
		Operational: kind.Operational(),
		Err:         cause,
		stack:       captureStack(3),
	}
}

func captureStack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return sb.String()
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Constructors for the errors raised most often by handlers and adapters.

func NewValidationError(message string, details any) *AppError {
	return New(KindValidation, message).WithDetails(details)
}

func NewNotFoundError(resource, id string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s '%s' not found", resource, id))
}

func NewConnectionError(message string, err error) *AppError {
	return Wrap(KindConnection, message, err)
}

func NewDatabaseError(message string, err error) *AppError {
	return Wrap(KindDatabase, message, err)
}

func NewRateLimitError(message string, details any) *AppError {
	return New(KindRateLimit, message).WithDetails(details)
}

func NewInternalError(message string, err error) *AppError {
	return Wrap(KindInternal, message, err)
}
