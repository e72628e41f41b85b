package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the bearer token payload. Role and UserID are resolved from the users
// table by the auth gate rather than trusted from the token.
type JWTClaims struct {
	UserID string   `json:"user_id,omitempty"`
	Role   UserRole `json:"role,omitempty"`
	Email  string   `json:"email"`
	Name   string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller holds the admin role.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Owns reports whether email belongs to the caller.
func (c *JWTClaims) Owns(email string) bool {
	return c != nil && c.Email != "" && NormalizeEmail(email) == NormalizeEmail(c.Email)
}
