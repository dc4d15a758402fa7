// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"business-inventory/internal/common/errors"
	httpclient "business-inventory/internal/common/http"
)

// KeycloakClient talks to the OpenID Connect endpoints of one Keycloak realm.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *httpclient.Client
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
}

// oauthError is the error body returned by the token and logout endpoints.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpclient.NewClient(timeout),
	}
}

func (k *KeycloakClient) endpoint(name string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/%s", k.baseURL, k.realm, name)
}

// PasswordGrant exchanges a username and password for tokens. On rejection the
// returned error's Message is the provider's own description, unmodified.
func (k *KeycloakClient) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", k.clientID)
	if k.clientSecret != "" {
		data.Set("client_secret", k.clientSecret)
	}
	data.Set("username", username)
	data.Set("password", password)
	data.Set("scope", "openid")

	resp, err := k.httpClient.PostForm(ctx, k.endpoint("token"), data)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "NETWORK_ERROR",
			Message:   "No se pudo iniciar sesión",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "IO_ERROR",
			Message:   "No se pudo iniciar sesión",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAuthenticationError(providerMessage(resp.StatusCode, body)).
			WithMetadata("status", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &errors.StandardError{
			Code:      "DESERIALIZATION_ERROR",
			Message:   "No se pudo iniciar sesión",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	return &tokenResp, nil
}

// Logout revokes a user's refresh token. This is a standard OAuth2/OpenID Connect logout mechanism.
func (k *KeycloakClient) Logout(ctx context.Context, refreshToken string) error {
	data := url.Values{}
	data.Set("client_id", k.clientID)
	if k.clientSecret != "" {
		data.Set("client_secret", k.clientSecret)
	}
	data.Set("refresh_token", refreshToken)

	resp, err := k.httpClient.PostForm(ctx, k.endpoint("logout"), data)
	if err != nil {
		return &errors.StandardError{
			Code:      "NETWORK_ERROR",
			Message:   "Failed to execute logout request",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	// Keycloak returns 204 No Content on successful logout
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &errors.StandardError{
			Code:      "KEYCLOAK_LOGOUT_FAILED",
			Message:   "Keycloak logout failed",
			Details:   fmt.Sprintf("Status: %d, Body: %s", resp.StatusCode, string(body)),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	return nil
}

func providerMessage(status int, body []byte) string {
	var oe oauthError
	if err := json.Unmarshal(body, &oe); err == nil {
		if oe.ErrorDescription != "" {
			return oe.ErrorDescription
		}
		if oe.Error != "" {
			return oe.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
