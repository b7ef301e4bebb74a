package apperror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Classification is the result of mapping an arbitrary error onto the
// taxonomy. Guessed is true when the kind came from message heuristics rather
// than a typed error or a known error value.
type Classification struct {
	Err     *AppError
	Guessed bool
}

// Classify maps err onto an *AppError. Typed errors are returned unchanged;
// well-known Go error values map deterministically; anything else is matched
// against message substrings and flagged as a guess.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Err: New(KindUnknown, "")}
	}
	if appErr, ok := As(err); ok {
		return Classification{Err: appErr}
	}
	if kind, ok := knownKind(err); ok {
		return Classification{Err: fromNative(kind, err, false)}
	}
	return Classification{Err: fromNative(guessKind(err.Error()), err, true), Guessed: true}
}

func knownKind(err error) (Kind, bool) {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBytesErr):
		return KindPayloadTooLarge, true
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return KindConversion, true
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return KindNotFound, true
	case errors.Is(err, fs.ErrNotExist):
		return KindFileNotFound, true
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork, true
	}
	return "", false
}

func guessKind(message string) Kind {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "database"), strings.Contains(msg, "sql"):
		return KindDatabase
	case strings.Contains(msg, "network"), strings.Contains(msg, "econnrefused"),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"):
		return KindNetwork
	case strings.Contains(msg, "json"):
		return KindConversion
	case strings.Contains(msg, "file"):
		return KindFileProcessing
	default:
		return KindUnknown
	}
}

// fromNative builds the AppError for an untyped error without capturing a
// stack: the frames would point here rather than at the failure site.
func fromNative(kind Kind, err error, guessed bool) *AppError {
	details := map[string]string{
		"cause":     err.Error(),
		"causeType": fmt.Sprintf("%T", err),
	}
	if guessed {
		details["classification"] = "heuristic"
	}
	return &AppError{
		Kind:        kind,
		Message:     err.Error(),
		Status:      kind.Status(),
		Operational: kind.Operational(),
		Details:     details,
		Err:         err,
	}
}

// Envelope is the uniform JSON body of every error response.
type Envelope struct {
	Success bool `json:"success"`
	Error   Body `json:"error"`
}

// Body is the error member of Envelope.
type Body struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Normalize converts err into an HTTP status and public envelope. The result is
// a pure function of err and includeDetails. Details and stack traces are only
// included when includeDetails is true; it must be false in production.
func Normalize(err error, includeDetails bool) (int, Envelope) {
	return NormalizeClassified(Classify(err), includeDetails)
}

// NormalizeClassified is Normalize for callers that already classified the
// error (to log the classification, for instance). The status is the one the
// error carries, or its kind's status when unset.
func NormalizeClassified(c Classification, includeDetails bool) (int, Envelope) {
	appErr := c.Err
	status := appErr.Status
	if status == 0 {
		status = appErr.Kind.Status()
	}

	message := appErr.Message
	if !includeDetails && (!appErr.Operational || c.Guessed) {
		message = appErr.Kind.DefaultMessage()
	}

	body := Body{
		Type:    appErr.Kind,
		Message: message,
	}
	if includeDetails {
		body.Details = appErr.Details
		body.Stack = appErr.Stack()
	}

	return status, Envelope{Success: false, Error: body}
}

// Write encodes the envelope with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
