// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package mocks provides testify mocks for the game package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/cardroom/cardroom/internal/auth"
	"github.com/cardroom/cardroom/internal/game"
)

// MockDirectory is a testify mock for game.Directory.
type MockDirectory struct {
	mock.Mock
}

// NewMockDirectory creates a MockDirectory whose expectations are asserted
// at test cleanup.
func NewMockDirectory(t *testing.T) *MockDirectory {
	t.Helper()
	m := &MockDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDirectory) Create(ctx context.Context, g *game.Game) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockDirectory) Get(ctx context.Context, id ulid.ULID) (*game.Game, error) {
	args := m.Called(ctx, id)
	if g, ok := args.Get(0).(*game.Game); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) List(ctx context.Context) ([]*game.Game, error) {
	args := m.Called(ctx)
	if games, ok := args.Get(0).([]*game.Game); ok {
		return games, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) Start(ctx context.Context, id ulid.ULID) (*game.Game, error) {
	args := m.Called(ctx, id)
	if g, ok := args.Get(0).(*game.Game); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) Members(ctx context.Context, id ulid.ULID) ([]*auth.User, error) {
	args := m.Called(ctx, id)
	if members, ok := args.Get(0).([]*auth.User); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}

// Compile-time interface check.
var _ game.Directory = (*MockDirectory)(nil)
