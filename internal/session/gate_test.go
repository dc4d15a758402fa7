package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-inventory/internal/alert"
	"business-inventory/internal/common/auth"
	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeKeycloak struct {
	server       *httptest.Server
	tokenStatus  int
	tokenBody    string
	logoutStatus int
	tokenCalls   atomic.Int32
	logoutCalls  atomic.Int32
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	t.Helper()
	f := &fakeKeycloak{
		tokenStatus:  http.StatusOK,
		tokenBody:    `{"access_token":"access-1","refresh_token":"refresh-1","expires_in":300,"token_type":"Bearer"}`,
		logoutStatus: http.StatusNoContent,
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/realms/inventory/protocol/openid-connect/token":
			f.tokenCalls.Add(1)
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(f.tokenBody))
		case "/realms/inventory/protocol/openid-connect/logout":
			f.logoutCalls.Add(1)
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			w.WriteHeader(f.logoutStatus)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestGate(t *testing.T, kc *fakeKeycloak) (*Gate, *alert.Memory) {
	t.Helper()
	alerts := alert.NewMemory(0)
	client := auth.NewKeycloakClient(kc.server.URL, "inventory", "inventory-agent", "", 2*time.Second)
	g := NewGate(client, alerts, logger.NewTestLogger(t))
	g.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return g, alerts
}

// ==========================
// Tests
// ==========================

func TestGate_StartsSignedOut(t *testing.T) {
	g, _ := newTestGate(t, newFakeKeycloak(t))

	assert.False(t, g.IsAuthenticated())
	assert.ErrorIs(t, g.Require(), apperrors.ErrNotAuthenticated)
	_, ok := g.AccessToken()
	assert.False(t, ok)
}

func TestLogin_Success(t *testing.T) {
	kc := newFakeKeycloak(t)
	g, alerts := newTestGate(t, kc)

	grant, err := g.Login(context.Background(), "ana@example.com", "secreto")
	require.NoError(t, err)
	assert.Equal(t, "access-1", grant.AccessToken)
	assert.Equal(t, "Bearer", grant.TokenType)
	assert.Equal(t, "ana@example.com", grant.Username)

	assert.True(t, g.IsAuthenticated())
	assert.NoError(t, g.Require())
	s, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", s.Username)
	assert.Equal(t, s.StartedAt.Add(5*time.Minute), s.ExpiresAt)

	token, ok := g.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "access-1", token)

	last, _ := alerts.Last()
	assert.Equal(t, "Bienvenido al sistema", last.Title)
}

func TestLogin_RejectionCarriesProviderMessageVerbatim(t *testing.T) {
	kc := newFakeKeycloak(t)
	kc.tokenStatus = http.StatusUnauthorized
	kc.tokenBody = `{"error":"invalid_grant","error_description":"Invalid user credentials"}`
	g, alerts := newTestGate(t, kc)

	_, err := g.Login(context.Background(), "ana@example.com", "mal")
	require.Error(t, err)
	assert.Equal(t, "Invalid user credentials", apperrors.UserMessage(err))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthentication))
	assert.False(t, g.IsAuthenticated())
	assert.Equal(t, int32(1), kc.tokenCalls.Load())

	last, _ := alerts.Last()
	assert.Equal(t, alert.LevelError, last.Level)
	assert.Equal(t, "Invalid user credentials", last.Title)
}

func TestLogin_ProviderUnreachable(t *testing.T) {
	kc := newFakeKeycloak(t)
	g, _ := newTestGate(t, kc)
	kc.server.Close()

	_, err := g.Login(context.Background(), "ana@example.com", "secreto")
	require.Error(t, err)
	assert.Equal(t, "No se pudo iniciar sesión", apperrors.UserMessage(err))
	assert.False(t, g.IsAuthenticated())
}

func TestLogout(t *testing.T) {
	kc := newFakeKeycloak(t)
	g, alerts := newTestGate(t, kc)
	ctx := context.Background()
	_, err := g.Login(ctx, "ana@example.com", "secreto")
	require.NoError(t, err)

	require.NoError(t, g.Logout(ctx))

	assert.False(t, g.IsAuthenticated())
	assert.ErrorIs(t, g.Authorize("access-1"), apperrors.ErrNotAuthenticated)
	last, _ := alerts.Last()
	assert.Equal(t, alert.LevelInfo, last.Level)
	assert.Equal(t, "Sesión cerrada correctamente", last.Title)
}

func TestLogout_FailureKeepsSession(t *testing.T) {
	kc := newFakeKeycloak(t)
	kc.logoutStatus = http.StatusBadGateway
	g, alerts := newTestGate(t, kc)
	ctx := context.Background()
	_, err := g.Login(ctx, "ana@example.com", "secreto")
	require.NoError(t, err)

	err = g.Logout(ctx)
	require.Error(t, err)

	assert.True(t, g.IsAuthenticated())
	last, _ := alerts.Last()
	assert.Equal(t, "Error al cerrar sesión", last.Title)
}

func TestLogout_WithoutSession(t *testing.T) {
	kc := newFakeKeycloak(t)
	g, _ := newTestGate(t, kc)

	assert.ErrorIs(t, g.Logout(context.Background()), apperrors.ErrNotAuthenticated)
	assert.Zero(t, kc.logoutCalls.Load())
}

func TestAuthorize(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		token   string
		elapsed time.Duration
		wantErr bool
	}{
		{name: "issued token", token: "access-1", elapsed: time.Minute},
		{name: "other token", token: "access-2", elapsed: time.Minute, wantErr: true},
		{name: "no token", token: "", elapsed: time.Minute, wantErr: true},
		{name: "expired", token: "access-1", elapsed: 5 * time.Minute, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGate(t, newFakeKeycloak(t))
			_, err := g.Login(context.Background(), "ana@example.com", "secreto")
			require.NoError(t, err)

			g.now = func() time.Time { return start.Add(tt.elapsed) }
			err = g.Authorize(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGate_ExpiredSessionIsSignedOut(t *testing.T) {
	g, _ := newTestGate(t, newFakeKeycloak(t))
	_, err := g.Login(context.Background(), "ana@example.com", "secreto")
	require.NoError(t, err)

	g.now = func() time.Time { return time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC) }

	assert.False(t, g.IsAuthenticated())
	assert.ErrorIs(t, g.Require(), apperrors.ErrNotAuthenticated)
	_, ok := g.Current()
	assert.False(t, ok)
	_, ok = g.AccessToken()
	assert.False(t, ok)
}

func TestAuthorize_NoExpiryWhenProviderOmitsIt(t *testing.T) {
	kc := newFakeKeycloak(t)
	kc.tokenBody = `{"access_token":"access-1","refresh_token":"refresh-1"}`
	g, _ := newTestGate(t, kc)
	grant, err := g.Login(context.Background(), "ana@example.com", "secreto")
	require.NoError(t, err)
	assert.True(t, grant.ExpiresAt.IsZero())

	g.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	assert.NoError(t, g.Authorize("access-1"))
}
