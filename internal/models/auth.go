package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents a role granted by the identity provider.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
)

// JWTClaims is the access token payload accepted on admin routes. Tokens are minted by the
// identity provider; this service only verifies them.
type JWTClaims struct {
	Email string     `json:"email"`
	Roles []UserRole `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether any of roles was granted.
func (c *JWTClaims) HasRole(roles ...UserRole) bool {
	if c == nil {
		return false
	}
	for _, granted := range c.Roles {
		for _, r := range roles {
			if granted == r {
				return true
			}
		}
	}
	return false
}
