package apperror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindDatabase, http.StatusInternalServerError},
		{KindConnection, http.StatusServiceUnavailable},
		{KindQuery, http.StatusInternalServerError},
		{KindConstraint, http.StatusConflict},
		{KindFileNotFound, http.StatusNotFound},
		{KindFileUpload, http.StatusInternalServerError},
		{KindFileProcessing, http.StatusInternalServerError},
		{KindFileTooLarge, http.StatusRequestEntityTooLarge},
		{KindPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{KindConversion, http.StatusBadRequest},
		{KindValidation, http.StatusBadRequest},
		{KindInvalidInput, http.StatusBadRequest},
		{KindMissingField, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindTokenExpired, http.StatusUnauthorized},
		{KindInvalidCredentials, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindAlreadyExists, http.StatusConflict},
		{KindBusinessLogic, http.StatusBadRequest},
		{KindExternalService, http.StatusBadGateway},
		{KindAPI, http.StatusBadGateway},
		{KindNetwork, http.StatusServiceUnavailable},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	require.Len(t, Kinds(), len(tests), "every kind must have a status case")

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
			assert.True(t, tt.kind.Valid())
			assert.NotEmpty(t, tt.kind.DefaultMessage())
		})
	}
}

func TestKindStatus_Unrecognized(t *testing.T) {
	k := Kind("SOMETHING_ELSE")
	assert.False(t, k.Valid())
	assert.Equal(t, http.StatusInternalServerError, k.Status())
}

func TestNew(t *testing.T) {
	err := New(KindNotFound, "product 'p1' not found")

	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, err.Operational)
	assert.Equal(t, "product 'p1' not found", err.Error())
	assert.Contains(t, err.Stack(), "TestNew")
}

func TestNew_DefaultsMessageAndKind(t *testing.T) {
	err := New(Kind("bogus"), "")
	assert.Equal(t, KindUnknown, err.Kind)
	assert.Equal(t, KindUnknown.DefaultMessage(), err.Message)
	assert.False(t, err.Operational)
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	err := Wrap(KindConnection, "database unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "database unavailable: "+cause.Error(), err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
}

func TestAppError_Is(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewNotFoundError("product", "42"))

	assert.ErrorIs(t, err, New(KindNotFound, ""))
	assert.NotErrorIs(t, err, New(KindAlreadyExists, ""))
}

func TestWithDetails_Copies(t *testing.T) {
	base := New(KindValidation, "bad")
	withDetails := base.WithDetails(map[string]string{"field": "name"})

	assert.Nil(t, base.Details)
	assert.NotNil(t, withDetails.Details)
	assert.Equal(t, base.Kind, withDetails.Kind)
}

func TestClassify_Typed(t *testing.T) {
	appErr := NewRateLimitError("slow down", nil)
	c := Classify(fmt.Errorf("wrapped: %w", appErr))

	assert.False(t, c.Guessed)
	assert.Same(t, appErr, c.Err)
}

func TestClassify_KnownValues(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{nope"), &v)
		require.Error(t, syntaxErr)
	}

	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"json syntax", syntaxErr, KindConversion},
		{"max bytes", &http.MaxBytesError{Limit: 10}, KindPayloadTooLarge},
		{"sql no rows", fmt.Errorf("lookup: %w", sql.ErrNoRows), KindNotFound},
		{"missing file", fmt.Errorf("open: %w", fs.ErrNotExist), KindFileNotFound},
		{"deadline", context.DeadlineExceeded, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.False(t, c.Guessed)
			assert.Equal(t, tt.kind, c.Err.Kind)
		})
	}
}

func TestClassify_Heuristics(t *testing.T) {
	tests := []struct {
		message string
		kind    Kind
	}{
		{"ECONNREFUSED database", KindDatabase},
		{"sql: transaction has already been committed", KindDatabase},
		{"network is unreachable", KindNetwork},
		{"read tcp: i/o timeout", KindNetwork},
		{"invalid JSON payload", KindConversion},
		{"could not read file header", KindFileProcessing},
		{"something odd happened", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			c := Classify(errors.New(tt.message))
			assert.True(t, c.Guessed)
			assert.Equal(t, tt.kind, c.Err.Kind)
		})
	}
}

func TestNormalize_TypedMatchesKind(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			status, env := Normalize(New(kind, "msg"), false)
			assert.Equal(t, kind.Status(), status)
			assert.Equal(t, kind, env.Error.Type)
			assert.False(t, env.Success)
		})
	}
}

func TestNormalize_UsesErrorStatus(t *testing.T) {
	custom := &AppError{Kind: KindExternalService, Message: "payment gateway timed out", Status: http.StatusGatewayTimeout, Operational: true}
	status, env := Normalize(custom, false)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, KindExternalService, env.Error.Type)
	assert.Equal(t, "payment gateway timed out", env.Error.Message)

	unset := &AppError{Kind: KindRateLimit, Message: "slow down", Operational: true}
	status, _ = Normalize(unset, false)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestNormalize_PureForNativeErrors(t *testing.T) {
	err := errors.New("ECONNREFUSED database")

	for _, includeDetails := range []bool{true, false} {
		s1, e1 := Normalize(err, includeDetails)
		s2, e2 := Normalize(err, includeDetails)
		assert.Equal(t, s1, s2)
		assert.Equal(t, e1, e2)
	}
}

func TestNormalize_NativeDatabaseError(t *testing.T) {
	err := errors.New("ECONNREFUSED database")

	status, prod := Normalize(err, false)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, KindDatabase, prod.Error.Type)
	assert.Nil(t, prod.Error.Details)
	assert.Empty(t, prod.Error.Stack)
	assert.Equal(t, KindDatabase.DefaultMessage(), prod.Error.Message)

	status, dev := Normalize(err, true)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, KindDatabase, dev.Error.Type)
	require.NotNil(t, dev.Error.Details)
	assert.Equal(t, "ECONNREFUSED database", dev.Error.Message)
}

func TestNormalize_TypedConnectionError(t *testing.T) {
	err := NewConnectionError("database unavailable", errors.New("ECONNREFUSED database"))

	status, env := Normalize(err, false)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, KindConnection, env.Error.Type)
}

func TestNormalize_DetailsOnlyOutsideProduction(t *testing.T) {
	err := NewValidationError("name is required", map[string]string{"name": "required"})

	_, prod := Normalize(err, false)
	assert.Nil(t, prod.Error.Details)
	assert.Empty(t, prod.Error.Stack)
	assert.Equal(t, "name is required", prod.Error.Message)

	_, dev := Normalize(err, true)
	assert.Equal(t, map[string]string{"name": "required"}, dev.Error.Details)
	assert.NotEmpty(t, dev.Error.Stack)
}

func TestNormalize_HidesNonOperationalMessagesInProduction(t *testing.T) {
	err := NewInternalError("nil pointer in price calculator", nil)

	_, prod := Normalize(err, false)
	assert.Equal(t, "Internal server error", prod.Error.Message)

	_, dev := Normalize(err, true)
	assert.Equal(t, "nil pointer in price calculator", dev.Error.Message)
}

func TestWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	status, env := Normalize(NewNotFoundError("product", "42"), false)
	Write(rr, status, env)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "RESOURCE_NOT_FOUND", errBody["type"])
	assert.Equal(t, "product '42' not found", errBody["message"])
	_, hasDetails := errBody["details"]
	assert.False(t, hasDetails)
}
