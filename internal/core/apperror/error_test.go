package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInsufficientStock_Message(t *testing.T) {
	err := NewInsufficientStock("item-1", 50, 12)

	assert.Equal(t, "Insufficient stock: requested 50, available 12", err.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, int64(50), err.Details["requested"])
	assert.Equal(t, int64(12), err.Details["available"])
}

func TestNewQuotaExceeded_StatesLimit(t *testing.T) {
	err := NewQuotaExceeded("doctor", "Doctor", 10, 10)

	assert.Equal(t, "Doctor limit reached (10). Upgrade required.", err.Message)
	assert.Equal(t, CodeQuotaExceeded, err.Code)
	assert.True(t, IsQuotaExceeded(err))
}

func TestAsAppError_Wrapped(t *testing.T) {
	base := NewNotFound("catalog item", "42")
	wrapped := fmt.Errorf("record movement: %w", base)

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Same(t, base, appErr)
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(wrapped))
}

func TestGetHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsValidation(errors.New("boom")))
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewInternal(errors.New("connection reset"))

	assert.Contains(t, err.Error(), "connection reset")
	assert.ErrorContains(t, err, CodeInternal)
}

func TestIdempotencyErrors(t *testing.T) {
	conflict := NewIdempotencyConflict("k1")
	assert.Equal(t, http.StatusConflict, conflict.HTTPStatus)
	assert.Equal(t, "k1", conflict.Details["idempotency_key"])

	mismatch := NewIdempotencyMismatch("k1")
	assert.True(t, HasCode(mismatch, CodeIdempotencyMismatch))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(mismatch))
}
