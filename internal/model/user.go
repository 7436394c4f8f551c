package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

// Identity is the authenticated principal extracted from a verified access credential.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type ProfileUpdate struct {
	Name    *string `json:"name"`
	Avatar  *string `json:"avatar"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Avatar == nil && p.Address == nil && p.Phone == nil
}

type Credential struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionTokens is what establishing a session yields: the access credential for the
// response body and the refresh credential for the cookie.
type SessionTokens struct {
	Access  Credential
	Refresh Credential
}

type AuthResult struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`

	RefreshToken     string        `json:"-"`
	RefreshExpiresIn time.Duration `json:"-"`
}

type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}
