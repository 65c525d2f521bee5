// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Session token configuration.
const (
	// TokenBytes is the entropy of a session token. 16 random bytes encode
	// to 22 URL-safe characters; collisions are astronomically unlikely but
	// still enforced away by the store's unique constraint.
	TokenBytes = 16

	// maxTokenRetries bounds how many fresh candidates are tried when the
	// store reports a token collision before giving up with TOKEN_CONFLICT.
	maxTokenRetries = 4
)

// NewToken produces a cryptographically random, URL-safe session token.
// The value is opaque: callers must not parse it.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenManager issues and rotates session tokens.
//
// Uniqueness is not checked in-process: the store's unique constraint on the
// token column is the arbiter, and a collision simply triggers a retry with
// a new candidate. This keeps concurrent generation safe without any lock.
type TokenManager struct {
	store CredentialStore
}

// NewTokenManager creates a TokenManager backed by the given store.
func NewTokenManager(store CredentialStore) (*TokenManager, error) {
	if store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	return &TokenManager{store: store}, nil
}

// Rotate generates a fresh token, persists it to the user record, and
// returns it. The previous token stops resolving the moment the write
// commits.
func (m *TokenManager) Rotate(ctx context.Context, userID ulid.ULID) (string, error) {
	var token string

	backoff := retry.WithMaxRetries(maxTokenRetries, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, genErr := NewToken()
		if genErr != nil {
			return genErr
		}
		if updateErr := m.store.UpdateTokenIfAbsent(ctx, userID, candidate); updateErr != nil {
			if errors.Is(updateErr, ErrTokenTaken) {
				return retry.RetryableError(updateErr)
			}
			return updateErr
		}
		token = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenTaken) {
			return "", oops.Code("TOKEN_CONFLICT").
				With("user_id", userID.String()).
				With("attempts", maxTokenRetries+1).
				Wrap(err)
		}
		return "", oops.Code("AUTH_TOKEN_ROTATE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}
