// Package session gates every data operation behind an authenticated identity.
// Tokens live in memory only; a restarted process starts signed out.
package session

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"business-inventory/internal/alert"
	"business-inventory/internal/common/auth"
	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
)

const fallbackLoginMessage = "No se pudo iniciar sesión"

// IdentityProvider is the identity backend. Implemented by auth.KeycloakClient.
type IdentityProvider interface {
	PasswordGrant(ctx context.Context, username, password string) (*auth.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Session describes the signed-in user. A zero ExpiresAt never expires.
type Session struct {
	Username  string    `json:"username"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Grant is handed to the caller that signed in. Every gated request must present
// AccessToken as a bearer token.
type Grant struct {
	Session
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

type Gate struct {
	mu       sync.RWMutex
	provider IdentityProvider
	alerts   alert.Sink
	log      logger.Logger
	reporter *apperrors.Reporter
	now      func() time.Time

	tokens  *auth.TokenResponse
	session Session
}

func NewGate(provider IdentityProvider, alerts alert.Sink, log logger.Logger) *Gate {
	log = log.WithFields(map[string]interface{}{"component": "session"})
	return &Gate{
		provider: provider,
		alerts:   alerts,
		log:      log,
		reporter: apperrors.NewReporter(log, alerts),
		now:      time.Now,
	}
}

// Login makes a single attempt against the identity provider. On rejection the returned
// error carries the provider's message unchanged.
func (g *Gate) Login(ctx context.Context, identifier, secret string) (Grant, error) {
	tokens, err := g.provider.PasswordGrant(ctx, identifier, secret)
	if err != nil {
		stdErr := apperrors.AsStandard(err)
		if stdErr.Message == "" {
			stdErr.Message = fallbackLoginMessage
		}
		g.reporter.Surface(stdErr, map[string]interface{}{"username": identifier})
		return Grant{}, stdErr
	}

	now := g.now()
	current := Session{Username: identifier, StartedAt: now}
	if tokens.ExpiresIn > 0 {
		current.ExpiresAt = now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	tokenType := tokens.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	g.mu.Lock()
	g.tokens = tokens
	g.session = current
	g.mu.Unlock()

	g.log.Info("user signed in", map[string]interface{}{"username": identifier})
	g.alerts.Success("Bienvenido al sistema")
	return Grant{Session: current, AccessToken: tokens.AccessToken, TokenType: tokenType}, nil
}

// Logout ends the session at the provider. If the provider call fails the user stays
// signed in.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.RLock()
	tokens := g.tokens
	username := g.session.Username
	g.mu.RUnlock()
	if tokens == nil {
		return apperrors.ErrNotAuthenticated
	}

	if err := g.provider.Logout(ctx, tokens.RefreshToken); err != nil {
		return g.reporter.Surface(apperrors.NewExternalServiceError("keycloak", err).WithMessage("Error al cerrar sesión"), map[string]interface{}{
			"username": username,
		})
	}

	g.mu.Lock()
	if g.tokens == tokens {
		g.tokens = nil
		g.session = Session{}
	}
	g.mu.Unlock()

	g.log.Info("user signed out", map[string]interface{}{"username": username})
	g.alerts.Info("Sesión cerrada correctamente", "")
	return nil
}

// activeLocked reports whether a session exists and has not expired.
func (g *Gate) activeLocked() bool {
	if g.tokens == nil {
		return false
	}
	return g.session.ExpiresAt.IsZero() || g.now().Before(g.session.ExpiresAt)
}

func (g *Gate) IsAuthenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.activeLocked()
}

// Require returns ErrNotAuthenticated unless a session is active.
func (g *Gate) Require() error {
	if !g.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	return nil
}

// Authorize accepts token only if it is the access token of the active, unexpired
// session.
func (g *Gate) Authorize(token string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if token == "" || !g.activeLocked() {
		return apperrors.ErrNotAuthenticated
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.tokens.AccessToken)) != 1 {
		return apperrors.ErrNotAuthenticated
	}
	return nil
}

func (g *Gate) Current() (Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session, g.activeLocked()
}

// AccessToken returns the bearer token of the active session.
func (g *Gate) AccessToken() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.activeLocked() {
		return "", false
	}
	return g.tokens.AccessToken, true
}
