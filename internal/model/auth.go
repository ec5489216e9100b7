package model

import "time"

// AuthContext holds the identity proven by a bearer token.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	Username  string
	TokenID   string
	ExpiresAt time.Time
}
