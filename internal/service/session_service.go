package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-tour-auth/internal/metrics"
	"go-tour-auth/internal/model"
	"go-tour-auth/internal/token"
	"go-tour-auth/pkg/apierror"
)

// CredentialStore holds the single live refresh token per identity. Implementations must make
// each call an atomic single-key operation, return model.ErrSessionNotFound for an absent
// record and bound every call by a timeout.
type CredentialStore interface {
	Set(ctx context.Context, userID string, refreshToken string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// SessionService owns every read and write of session records.
type SessionService struct {
	store    CredentialStore
	issuer   *token.Issuer
	verifier *token.Verifier
	metrics  *metrics.Metrics
}

func NewSessionService(store CredentialStore, issuer *token.Issuer, verifier *token.Verifier, m *metrics.Metrics) *SessionService {
	return &SessionService{store: store, issuer: issuer, verifier: verifier, metrics: m}
}

// Establish mints an access/refresh pair and records the refresh token, replacing any
// previous one for the identity. This write is the only place a session record is created.
func (s *SessionService) Establish(ctx context.Context, identity model.Identity) (model.SessionTokens, error) {
	access, err := s.issuer.IssueAccess(identity)
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("establish session: %w", err)
	}

	refresh, err := s.issuer.IssueRefresh(identity)
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("establish session: %w", err)
	}

	if err := s.store.Set(ctx, identity.ID, refresh.Token, s.issuer.RefreshTTL()); err != nil {
		return model.SessionTokens{}, s.storeFailure("set", err)
	}

	return model.SessionTokens{Access: access, Refresh: refresh}, nil
}

// Validate reports the identity id owning presented when it is signed, unexpired and equal
// to the stored record. It never mutates the record, so concurrent calls with the same
// token all succeed.
func (s *SessionService) Validate(ctx context.Context, presented string) (string, error) {
	userID, err := s.verifier.VerifyRefresh(presented)
	if err != nil {
		return "", apierror.SessionRevoked()
	}

	stored, err := s.store.Get(ctx, userID)
	if errors.Is(err, model.ErrSessionNotFound) {
		return "", apierror.SessionRevoked()
	}
	if err != nil {
		return "", s.storeFailure("get", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return "", apierror.SessionRevoked()
	}

	return userID, nil
}

// Revoke ends the identity's session. Revoking an absent session succeeds.
func (s *SessionService) Revoke(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return s.storeFailure("delete", err)
	}
	return nil
}

func (s *SessionService) IssueAccess(identity model.Identity) (model.Credential, error) {
	return s.issuer.IssueAccess(identity)
}

func (s *SessionService) AccessTTL() time.Duration {
	return s.issuer.AccessTTL()
}

func (s *SessionService) RefreshTTL() time.Duration {
	return s.issuer.RefreshTTL()
}

// storeFailure never degrades to an authentication error: an outage must not look like a
// revoked session.
func (s *SessionService) storeFailure(op string, err error) error {
	s.metrics.StoreError(op)
	slog.Error("credential store operation failed", "op", op, "error", err)
	return apierror.StoreUnavailable(err)
}
