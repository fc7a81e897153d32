package responses

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotNil(t, envelope.Data)
}

func TestWriteErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		code   pkgerrors.Code
		status int
	}{
		{pkgerrors.CodeValidation, http.StatusBadRequest},
		{pkgerrors.CodeNotFound, http.StatusNotFound},
		{pkgerrors.CodeLockDenied, http.StatusConflict},
		{pkgerrors.CodeSequenceViolation, http.StatusUnprocessableEntity},
		{pkgerrors.CodeInvariantViolation, http.StatusUnprocessableEntity},
		{pkgerrors.CodeStageCompleted, http.StatusUnprocessableEntity},
		{pkgerrors.CodeDependency, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), testLogger(), rec, pkgerrors.New(tc.code, "boom"))

			assert.Equal(t, tc.status, rec.Code)
			envelope := decodeError(t, rec)
			assert.Equal(t, string(tc.code), envelope.Error.Code)
		})
	}
}

func TestWriteErrorCollapsesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), rec, stdErrors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInternal), envelope.Error.Code)
	// Internal causes never leak to the client.
	assert.NotContains(t, envelope.Error.Message, "pq:")
}

func TestWriteErrorGatesDetails(t *testing.T) {
	details := map[string]any{"heldBy": "Alice"}

	// LOCK_DENIED allows details through.
	rec := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), rec,
		pkgerrors.New(pkgerrors.CodeLockDenied, "locked").WithDetails(details))
	envelope := decodeError(t, rec)
	require.NotNil(t, envelope.Error.Details)

	// INTERNAL_ERROR strips them.
	rec = httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), rec,
		pkgerrors.New(pkgerrors.CodeInternal, "boom").WithDetails(details))
	envelope = decodeError(t, rec)
	assert.Nil(t, envelope.Error.Details)
}

func TestWriteErrorUsesDomainMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), rec,
		pkgerrors.New(pkgerrors.CodeNotFound, "production order not found"))

	envelope := decodeError(t, rec)
	assert.Equal(t, "production order not found", envelope.Error.Message)
}
