// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned by CredentialStore implementations when an
// insert collides with an existing username.
var ErrUsernameTaken = errors.New("username taken")

// ErrTokenTaken is returned by CredentialStore implementations when an
// insert or token update collides with a session token already held by
// another user. Callers retry with a fresh candidate.
var ErrTokenTaken = errors.New("session token taken")
