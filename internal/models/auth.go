package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload issued by the identity provider. The subject is the user ID.
type JWTClaims struct {
	Email string   `json:"email,omitempty"`
	Role  UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated principal.
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
