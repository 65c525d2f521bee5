// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package game models card-game tables and coordinates which users sit at
// them. Gameplay itself (hands, dealing, turns) lives elsewhere; this
// package only owns the game registry and the exclusive-membership relation.
package game

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

// MaxNameLength bounds game names in the lobby listing.
const MaxNameLength = 64

// ErrNotFound is returned when a requested game does not exist.
var ErrNotFound = errors.New("not found")

// ErrNameTaken is returned by Directory implementations when a create
// collides with an existing game name.
var ErrNameTaken = errors.New("game name taken")

// Status describes the lifecycle of a game table.
type Status string

// Game statuses.
const (
	StatusLobby   Status = "lobby"
	StatusStarted Status = "started"
)

// Game represents a card-game table users can join.
//
// Membership is not stored here: each user row carries its current game ID,
// and the member list is computed by reverse lookup. A single source of
// truth keeps join/leave a one-row write.
type Game struct {
	ID        ulid.ULID
	Name      string
	Status    Status
	CreatedAt time.Time
}

// NewGame creates a validated Game in the lobby state.
func NewGame(name string) (*Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code("GAME_INVALID_NAME").Errorf("game name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return nil, oops.Code("GAME_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("game name must be at most %d characters", MaxNameLength)
	}

	return &Game{
		ID:        ulid.Make(),
		Name:      name,
		Status:    StatusLobby,
		CreatedAt: time.Now(),
	}, nil
}

// Directory is the registry resolving game identifiers to game records.
type Directory interface {
	// Create persists a new game. Returns an error wrapping ErrNameTaken on
	// a name collision.
	Create(ctx context.Context, g *Game) error

	// Get retrieves a game by ID.
	Get(ctx context.Context, id ulid.ULID) (*Game, error)

	// List returns all games, newest first.
	List(ctx context.Context) ([]*Game, error)

	// Start transitions a game out of the lobby and returns the updated
	// record.
	Start(ctx context.Context, id ulid.ULID) (*Game, error)

	// Members returns the users currently sitting at the game, computed by
	// reverse lookup over user records.
	Members(ctx context.Context, id ulid.ULID) ([]*auth.User, error)
}
