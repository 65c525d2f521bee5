// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package auth provides account and session-credential primitives for
// Cardroom.
//
// # Domain Types
//
// User is the single durable record the package owns: account identity,
// password hash, the current session token, and the game the user belongs
// to. Create it through NewUser so validation cannot be bypassed; repository
// implementations receive pre-validated values.
//
// # Services
//
// Service coordinates registration, credential verification, and session
// resolution. TokenManager owns issuance and rotation of session tokens.
// Both are stateless and safe for concurrent use; all shared state lives
// behind CredentialStore.
package auth
