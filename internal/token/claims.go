package token

import "github.com/golang-jwt/jwt/v5"

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type accessClaims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// refreshClaims carry no role; refresh re-reads it from the user record.
type refreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}
