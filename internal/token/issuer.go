package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-tour-auth/internal/model"
)

type Issuer struct {
	access     *HMACSigner
	refresh    *HMACSigner
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) (*Issuer, error) {
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrSigningMisconfigured)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token TTLs must be positive", ErrSigningMisconfigured)
	}

	accessSigner, err := NewHMACSigner(accessSecret)
	if err != nil {
		return nil, fmt.Errorf("access signer: %w", err)
	}
	refreshSigner, err := NewHMACSigner(refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh signer: %w", err)
	}

	return &Issuer{
		access:     accessSigner,
		refresh:    refreshSigner,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *Issuer) IssueAccess(identity model.Identity) (model.Credential, error) {
	if identity.ID == "" || !identity.Role.Valid() {
		return model.Credential{}, fmt.Errorf("issue access token: incomplete identity %+v", identity)
	}

	issuedAt, expiresAt := i.window(i.accessTTL)
	signed, err := i.access.Sign(accessClaims{
		Role: identity.Role.String(),
		Type: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return model.Credential{}, err
	}

	return model.Credential{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// IssueRefresh mints a refresh token. The jti makes every token unique, so a second login
// within the same second still produces a different value from the first.
func (i *Issuer) IssueRefresh(identity model.Identity) (model.Credential, error) {
	if identity.ID == "" {
		return model.Credential{}, fmt.Errorf("issue refresh token: empty identity id")
	}

	issuedAt, expiresAt := i.window(i.refreshTTL)
	signed, err := i.refresh.Sign(refreshClaims{
		Type: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return model.Credential{}, err
	}

	return model.Credential{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

func (i *Issuer) window(ttl time.Duration) (time.Time, time.Time) {
	issuedAt := i.now().UTC().Truncate(time.Second)
	return issuedAt, issuedAt.Add(ttl)
}
