package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents the claims of an identity provider access token.
// The subject is the owning user of every recipe the caller touches.
type TokenClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
}

// UserID returns the account identifier the token was issued for.
func (c *TokenClaims) UserID() string {
	return c.Subject
}
