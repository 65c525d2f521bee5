// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/cardroom/cardroom/internal/auth"
)

// MockCredentialStore is a testify mock for auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a MockCredentialStore whose expectations
// are asserted at test cleanup.
func NewMockCredentialStore(t *testing.T) *MockCredentialStore {
	t.Helper()
	m := &MockCredentialStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCredentialStore) InsertUnique(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockCredentialStore) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) GetByToken(ctx context.Context, token string) (*auth.User, error) {
	args := m.Called(ctx, token)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) UpdateTokenIfAbsent(ctx context.Context, id ulid.ULID, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *MockCredentialStore) UpdateMembership(ctx context.Context, id ulid.ULID, gameID *ulid.ULID) (*auth.User, *ulid.ULID, error) {
	args := m.Called(ctx, id, gameID)
	var user *auth.User
	if u, ok := args.Get(0).(*auth.User); ok {
		user = u
	}
	var old *ulid.ULID
	if o, ok := args.Get(1).(*ulid.ULID); ok {
		old = o
	}
	return user, old, args.Error(2)
}

// MockPasswordHasher is a testify mock for auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are
// asserted at test cleanup.
func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	t.Helper()
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// Compile-time interface checks.
var (
	_ auth.CredentialStore = (*MockCredentialStore)(nil)
	_ auth.PasswordHasher  = (*MockPasswordHasher)(nil)
)
