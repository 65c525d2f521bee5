// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides registration, credential verification, and session
// resolution.
type Service struct {
	store  CredentialStore
	tokens *TokenManager
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(store CredentialStore, tokens *TokenManager, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(store, tokens, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with a custom logger.
func NewServiceWithLogger(store CredentialStore, tokens *TokenManager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token manager is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{store: store, tokens: tokens, hasher: hasher, logger: logger}, nil
}

// Register creates a new account. The user is persisted with a freshly
// generated session token and no game membership; the token is part of the
// returned User and must be delivered to the caller exactly once.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	// The insert carries the token, so a token collision is detected by the
	// store's unique constraint and retried with a new candidate. A username
	// collision is not retryable and surfaces to the caller.
	var user *User
	backoff := retry.WithMaxRetries(maxTokenRetries, retry.NewConstant(time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		token, genErr := NewToken()
		if genErr != nil {
			return genErr
		}
		candidate, newErr := NewUser(username, hash, token)
		if newErr != nil {
			return newErr
		}
		if insertErr := s.store.InsertUnique(ctx, candidate); insertErr != nil {
			if errors.Is(insertErr, ErrTokenTaken) {
				return retry.RetryableError(insertErr)
			}
			return insertErr
		}
		user = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", username).
				Errorf("username %q is already taken", username)
		}
		if errors.Is(err, ErrTokenTaken) {
			return nil, oops.Code("TOKEN_CONFLICT").
				With("username", username).
				With("attempts", maxTokenRetries+1).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("username", username).
			Wrap(err)
	}

	s.logger.Info("user registered", "user_id", user.ID.String(), "username", user.Username)
	return user, nil
}

// Authenticate verifies a username/password pair and returns the account.
// The same low-detail error covers both unknown usernames and wrong
// passwords so the response never confirms an account exists.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, lookupErr := s.store.GetByUsername(ctx, username)

	// Verify against a dummy hash when the user is missing so the response
	// time does not depend on account existence.
	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	s.logger.Info("user authenticated", "user_id", user.ID.String())
	return user, nil
}

// ResolveSession returns the user holding the given session token. This is
// the sole authorization primitive: there are no roles beyond "owner of the
// token".
func (s *Service) ResolveSession(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("SESSION_INVALID").Errorf("session token cannot be empty")
	}

	user, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get user by token").
			Wrap(err)
	}
	return user, nil
}

// EndSession rotates the user's token to a new, unrelated value and returns
// it. Logout is rotation rather than deletion: a user always holds exactly
// one valid token, and the old one stops resolving immediately.
func (s *Service) EndSession(ctx context.Context, user *User) (string, error) {
	token, err := s.tokens.Rotate(ctx, user.ID)
	if err != nil {
		return "", err
	}
	user.SessionToken = token

	s.logger.Info("session ended", "user_id", user.ID.String())
	return token, nil
}
