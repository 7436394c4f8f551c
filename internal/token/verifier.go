package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-tour-auth/internal/model"
)

// ErrRejected is the only failure a caller of VerifyAccess or VerifyRefresh ever sees.
var ErrRejected = errors.New("token rejected")

// Verifier checks credentials locally. It never contacts the credential store.
type Verifier struct {
	access  *HMACSigner
	refresh *HMACSigner
	now     func() time.Time
}

func NewVerifier(accessSecret string, refreshSecret string) (*Verifier, error) {
	accessSigner, err := NewHMACSigner(accessSecret)
	if err != nil {
		return nil, fmt.Errorf("access verifier: %w", err)
	}
	refreshSigner, err := NewHMACSigner(refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh verifier: %w", err)
	}

	return &Verifier{access: accessSigner, refresh: refreshSigner, now: time.Now}, nil
}

func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

func (v *Verifier) VerifyAccess(raw string) (model.Identity, error) {
	var claims accessClaims
	if err := v.parse(raw, &claims, v.access); err != nil {
		return model.Identity{}, err
	}

	if claims.Type != typeAccess || claims.Subject == "" {
		return model.Identity{}, ErrRejected
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Identity{}, ErrRejected
	}

	return model.Identity{ID: claims.Subject, Role: role}, nil
}

// VerifyRefresh checks signature and expiry of a refresh token and returns the identity id it
// claims. Whether the token is still the live one is decided against the store, not here.
func (v *Verifier) VerifyRefresh(raw string) (string, error) {
	var claims refreshClaims
	if err := v.parse(raw, &claims, v.refresh); err != nil {
		return "", err
	}

	if claims.Type != typeRefresh || claims.Subject == "" {
		return "", ErrRejected
	}

	return claims.Subject, nil
}

func (v *Verifier) parse(raw string, claims jwt.Claims, signer *HMACSigner) error {
	if raw == "" {
		return ErrRejected
	}

	parsed, err := jwt.ParseWithClaims(raw, claims, signer.VerificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return ErrRejected
	}

	return nil
}

func Authorize(identity model.Identity, allowed model.RoleSet) bool {
	return allowed.Contains(identity.Role)
}
