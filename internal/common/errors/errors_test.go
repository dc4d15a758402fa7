package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"business-inventory/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingNotifier struct {
	titles []string
}

func (n *recordingNotifier) Error(title, description string) {
	n.titles = append(n.titles, title)
}

// ==========================
// Tests
// ==========================

func TestAsStandard(t *testing.T) {
	assert.Nil(t, AsStandard(nil))

	wrapped := fmt.Errorf("insert: %w", NewNotFoundError("product", "p1"))
	assert.Equal(t, ErrCodeNotFound, AsStandard(wrapped).Code)

	plain := AsStandard(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestRemoteWriteFailedKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewRemoteWriteFailedError("Error al crear el producto", "create_product", cause)

	assert.Equal(t, "Error al crear el producto", UserMessage(err))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, HasCode(err, ErrCodeRemoteWriteFailed))
}

func TestWithMessage_DoesNotMutateOriginal(t *testing.T) {
	base := NewExternalServiceError("keycloak", stderrors.New("timeout"))
	replaced := base.WithMessage("Error al cerrar sesión")

	assert.Equal(t, "Error al cerrar sesión", replaced.Message)
	assert.NotEqual(t, replaced.Message, base.Message)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeRemoteWriteFailed, "DATABASE"},
		{ErrCodeDatabaseConnect, "DATABASE"},
		{ErrCodeSubscriptionFailed, "REALTIME"},
		{ErrCodeInvalidEvent, "REALTIME"},
		{ErrCodeImageInvalid, "STORAGE"},
		{ErrCodeAuthentication, "AUTH"},
		{ErrCodeNotAuthenticated, "AUTH"},
		{ErrCodeSearchQueryFailed, "SEARCH"},
		{ErrCodeLocalStateFailed, "DEVICE"},
		{ErrCodeNotFound, "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

func TestReporter(t *testing.T) {
	log, logs := logger.NewObservedLogger()
	notifier := &recordingNotifier{}
	r := NewReporter(log, notifier)

	r.Log(NewInvalidEventError("missing table"), map[string]interface{}{"channel": "inventory_products"})
	require.Equal(t, 1, logs.FilterMessage("Invalid change event").Len())
	assert.Empty(t, notifier.titles, "logged errors are not shown to the user")

	r.Surface(NewImageUploadFailedError(stderrors.New("denied")), nil)
	assert.Len(t, notifier.titles, 1)

	entries := logs.FilterField(zap.String("errorCode", string(ErrCodeImageUploadFailed))).All()
	assert.Len(t, entries, 1)
}
