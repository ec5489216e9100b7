// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/authgate/authgate/internal/auth"
)

// SignupRequest represents the request body for POST /signup.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenRequest represents credentials for POST /token, sent as JSON or as an
// OAuth2 password-grant form.
type TokenRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	GrantType string `json:"grant_type,omitempty"`
}

// MessageResponse carries a human-readable status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse is the OAuth2-style token payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// DashboardResponse is returned to authenticated callers.
type DashboardResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// ToTokenResponse converts an issued token to its wire form.
func ToTokenResponse(token *auth.IssuedToken) TokenResponse {
	return TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(token.ExpiresIn.Seconds()),
	}
}
