package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-tour-auth/internal/event"
	"go-tour-auth/internal/metrics"
	"go-tour-auth/internal/model"
	"go-tour-auth/pkg/apierror"
)

const minPasswordLength = 6

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (model.User, error)
	Delete(ctx context.Context, id string) error
}

// AuthService drives the per-identity session state machine (NoSession, Active) through
// register, login, refresh, logout and account deletion.
type AuthService struct {
	users      UserStore
	sessions   *SessionService
	bus        event.Bus
	metrics    *metrics.Metrics
	bcryptCost int
	// dummyHash is compared against on unknown emails so both failure paths cost one bcrypt.
	dummyHash []byte
}

func NewAuthService(users UserStore, sessions *SessionService, bus event.Bus, m *metrics.Metrics, bcryptCost int) (*AuthService, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}

	return &AuthService{
		users:      users,
		sessions:   sessions,
		bus:        bus,
		metrics:    m,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, meta model.RequestMeta) (model.AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var fields []model.FieldError
	if name == "" {
		fields = append(fields, model.FieldError{Field: "name", Reason: "is required"})
	}
	if email == "" {
		fields = append(fields, model.FieldError{Field: "email", Reason: "is required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, model.FieldError{Field: "email", Reason: "is not a valid address"})
	}
	if req.Password == "" {
		fields = append(fields, model.FieldError{Field: "password", Reason: "is required"})
	} else if len(req.Password) < minPasswordLength {
		fields = append(fields, model.FieldError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters long", minPasswordLength)})
	}
	if len(fields) > 0 {
		return model.AuthResult{}, apierror.Validation(fields...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleCustomer,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.AuthResult{}, apierror.Conflict("user with this email already exists")
		}
		return model.AuthResult{}, fmt.Errorf("register: %w", err)
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		// The account exists; the client can log in once the store recovers.
		return model.AuthResult{}, err
	}

	s.metrics.Login("registered")
	s.publish(event.TypeRegistered, event.StatusSuccess, user.Identity(), meta, "")
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string, meta model.RequestMeta) (model.AuthResult, error) {
	email = strings.TrimSpace(email)

	var fields []model.FieldError
	if email == "" {
		fields = append(fields, model.FieldError{Field: "email", Reason: "is required"})
	}
	if password == "" {
		fields = append(fields, model.FieldError{Field: "password", Reason: "is required"})
	}
	if len(fields) > 0 {
		return model.AuthResult{}, apierror.Validation(fields...)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.AuthResult{}, fmt.Errorf("login: %w", err)
	}

	hash := s.dummyHash
	if err == nil {
		hash = []byte(user.PasswordHash)
	}
	if compareErr := bcrypt.CompareHashAndPassword(hash, []byte(password)); compareErr != nil || err != nil {
		s.metrics.Login("invalid_credentials")
		s.publish(event.TypeLoginFailed, event.StatusFailure, user.Identity(), meta, "invalid_credentials")
		return model.AuthResult{}, apierror.InvalidCredentials()
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		s.metrics.Login("error")
		return model.AuthResult{}, err
	}

	s.metrics.Login("success")
	s.publish(event.TypeLoginSucceeded, event.StatusSuccess, user.Identity(), meta, "")
	return result, nil
}

func (s *AuthService) startSession(ctx context.Context, user model.User) (model.AuthResult, error) {
	tokens, err := s.sessions.Establish(ctx, user.Identity())
	if err != nil {
		return model.AuthResult{}, err
	}

	return model.AuthResult{
		User:             user,
		AccessToken:      tokens.Access.Token,
		ExpiresIn:        int64(s.sessions.AccessTTL().Seconds()),
		RefreshToken:     tokens.Refresh.Token,
		RefreshExpiresIn: s.sessions.RefreshTTL(),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The stored refresh token
// and its TTL are left as they are.
func (s *AuthService) Refresh(ctx context.Context, presented string, meta model.RequestMeta) (model.RefreshResult, error) {
	userID, err := s.sessions.Validate(ctx, presented)
	if err != nil {
		s.refreshFailed(err, model.Identity{ID: userID}, meta)
		return model.RefreshResult{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		rejected := apierror.SessionRevoked()
		s.refreshFailed(rejected, model.Identity{ID: userID}, meta)
		return model.RefreshResult{}, rejected
	}
	if err != nil {
		s.metrics.Refresh("error")
		return model.RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	access, err := s.sessions.IssueAccess(user.Identity())
	if err != nil {
		s.metrics.Refresh("error")
		return model.RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	s.metrics.Refresh("success")
	s.publish(event.TypeRefreshed, event.StatusSuccess, user.Identity(), meta, "")
	return model.RefreshResult{
		AccessToken: access.Token,
		ExpiresIn:   int64(s.sessions.AccessTTL().Seconds()),
	}, nil
}

func (s *AuthService) refreshFailed(err error, identity model.Identity, meta model.RequestMeta) {
	if apierror.Is(err, apierror.KindStoreUnavailable) {
		s.metrics.Refresh("store_unavailable")
		return
	}
	s.metrics.Refresh("revoked")
	s.publish(event.TypeRefreshRejected, event.StatusFailure, identity, meta, "session_revoked")
}

// Logout deletes the identity's session record. Access tokens already issued stay valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, identity model.Identity, meta model.RequestMeta) error {
	if err := s.sessions.Revoke(ctx, identity.ID); err != nil {
		return err
	}

	s.metrics.Revocation("logout")
	s.publish(event.TypeLoggedOut, event.StatusSuccess, identity, meta, "")
	return nil
}

// DeleteAccount revokes the session before removing the user record, so a store outage
// leaves the account intact rather than orphaning a live session.
func (s *AuthService) DeleteAccount(ctx context.Context, identity model.Identity, meta model.RequestMeta) error {
	if err := s.sessions.Revoke(ctx, identity.ID); err != nil {
		return err
	}
	s.metrics.Revocation("account_deleted")

	if err := s.users.Delete(ctx, identity.ID); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return apierror.NotFound("user not found", "")
		}
		return fmt.Errorf("delete account: %w", err)
	}

	s.publish(event.TypeAccountDeleted, event.StatusSuccess, identity, meta, "")
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound("user not found", id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes only name, avatar, address and phone; role and password are not
// reachable from here.
func (s *AuthService) UpdateProfile(ctx context.Context, identity model.Identity, update model.ProfileUpdate) (model.User, error) {
	update = trimProfile(update)
	if update.Empty() {
		return model.User{}, apierror.Validation(model.FieldError{Field: "body", Reason: "no valid fields provided for update"})
	}
	if update.Name != nil && *update.Name == "" {
		return model.User{}, apierror.Validation(model.FieldError{Field: "name", Reason: "cannot be empty"})
	}

	user, err := s.users.UpdateProfile(ctx, identity.ID, update)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound("user not found", "")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func trimProfile(update model.ProfileUpdate) model.ProfileUpdate {
	for _, field := range []**string{&update.Name, &update.Avatar, &update.Address, &update.Phone} {
		if *field != nil {
			trimmed := strings.TrimSpace(**field)
			*field = &trimmed
		}
	}
	return update
}

func (s *AuthService) publish(typ event.Type, status event.Status, identity model.Identity, meta model.RequestMeta, reason string) {
	if s.bus == nil {
		return
	}

	e := event.New(typ, status, identity.ID)
	if identity.Role.Valid() {
		e.ActorRole = identity.Role.String()
	}
	e.IP = meta.IP
	e.Reason = reason
	s.bus.Publish(e)
}
