// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username and password validation constraints.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 16
	MinPasswordLength = 6
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User represents a registered account.
//
// SessionToken is the opaque bearer credential for the account and is never
// empty: it is assigned at registration and replaced only by rotation.
// CurrentGameID is the exclusive game membership; nil means unjoined.
type User struct {
	ID            ulid.ULID
	Username      string
	PasswordHash  string
	SessionToken  string
	CurrentGameID *ulid.ULID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser creates a validated User with no game membership.
// The password hash and session token must already be computed; NewUser
// never sees a plaintext password.
func NewUser(username, passwordHash, sessionToken string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_EMPTY_HASH").Errorf("password hash cannot be empty")
	}
	if sessionToken == "" {
		return nil, oops.Code("AUTH_EMPTY_TOKEN").Errorf("session token cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		SessionToken: sessionToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// InGame reports whether the user currently belongs to the given game.
func (u *User) InGame(gameID ulid.ULID) bool {
	return u.CurrentGameID != nil && u.CurrentGameID.Compare(gameID) == 0
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword validates a plaintext password before hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// CredentialStore manages user persistence.
//
// Every method is a single atomic operation against the backing store;
// uniqueness of usernames and session tokens is enforced by the store via
// constraints, not by callers checking first.
type CredentialStore interface {
	// InsertUnique stores a new user. Returns an error wrapping
	// ErrUsernameTaken or ErrTokenTaken on the respective unique-constraint
	// violation.
	InsertUnique(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByToken retrieves the user holding the given session token.
	GetByToken(ctx context.Context, token string) (*User, error)

	// UpdateTokenIfAbsent replaces the user's session token. Returns an
	// error wrapping ErrTokenTaken if another user already holds the token.
	UpdateTokenIfAbsent(ctx context.Context, id ulid.ULID, token string) error

	// UpdateMembership sets current_game_id (nil to leave) in one atomic
	// write and returns the updated user together with the previous game ID.
	UpdateMembership(ctx context.Context, id ulid.ULID, gameID *ulid.ULID) (*User, *ulid.ULID, error)
}
