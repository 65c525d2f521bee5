// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package game

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

// MembershipChange records one membership transition for observers.
// OldGameID and NewGameID are nil for the unjoined side of a transition;
// both equal means an idempotent re-join.
type MembershipChange struct {
	UserID    ulid.ULID
	OldGameID *ulid.ULID
	NewGameID *ulid.ULID
}

// MembershipObserver is notified after each successful join or leave.
// Observers run synchronously on the request path and must not block;
// anything slow belongs behind a channel on the observer's side.
type MembershipObserver interface {
	MembershipChanged(change MembershipChange)
}

// ObserverFunc adapts a function to MembershipObserver.
type ObserverFunc func(change MembershipChange)

// MembershipChanged calls f.
func (f ObserverFunc) MembershipChanged(change MembershipChange) { f(change) }

// Coordinator processes join/leave requests against the credential store.
//
// The coordinator holds no state of its own: each transition is one atomic
// write of the user's current_game_id, so concurrent calls for the same
// user serialize at the storage layer and calls for different users never
// contend. Last write wins when the same user joins from two devices.
type Coordinator struct {
	store     auth.CredentialStore
	directory Directory
	observers []MembershipObserver
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. Observers are optional and notified
// in registration order, exactly once per successful call.
func NewCoordinator(store auth.CredentialStore, directory Directory, observers ...MembershipObserver) (*Coordinator, error) {
	return NewCoordinatorWithLogger(store, directory, slog.Default(), observers...)
}

// NewCoordinatorWithLogger creates a Coordinator with a custom logger.
func NewCoordinatorWithLogger(store auth.CredentialStore, directory Directory, logger *slog.Logger, observers ...MembershipObserver) (*Coordinator, error) {
	if store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if directory == nil {
		return nil, oops.Errorf("game directory is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Coordinator{
		store:     store,
		directory: directory,
		observers: observers,
		logger:    logger,
	}, nil
}

// Join moves the user to the given game, implicitly leaving any game they
// were in. Joining the current game again is a no-op that still succeeds.
func (c *Coordinator) Join(ctx context.Context, userID, gameID ulid.ULID) (*auth.User, error) {
	if _, err := c.directory.Get(ctx, gameID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("GAME_NOT_FOUND").
				With("game_id", gameID.String()).
				Errorf("game %s does not exist", gameID.String())
		}
		return nil, oops.Code("GAME_JOIN_FAILED").
			With("operation", "resolve game").
			With("game_id", gameID.String()).
			Wrap(err)
	}

	user, oldGameID, err := c.store.UpdateMembership(ctx, userID, &gameID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("GAME_JOIN_FAILED").
				With("user_id", userID.String()).
				Wrap(err)
		}
		return nil, oops.Code("GAME_JOIN_FAILED").
			With("operation", "update membership").
			With("user_id", userID.String()).
			With("game_id", gameID.String()).
			Wrap(err)
	}

	c.notify(MembershipChange{UserID: user.ID, OldGameID: oldGameID, NewGameID: user.CurrentGameID})
	c.logger.Info("user joined game",
		"user_id", user.ID.String(),
		"game_id", gameID.String(),
		"switched", oldGameID != nil && oldGameID.Compare(gameID) != 0,
	)
	return user, nil
}

// Leave removes the user from whatever game they are in. Leaving while
// unjoined is a no-op, never an error.
func (c *Coordinator) Leave(ctx context.Context, userID ulid.ULID) (*auth.User, error) {
	user, oldGameID, err := c.store.UpdateMembership(ctx, userID, nil)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("GAME_LEAVE_FAILED").
				With("user_id", userID.String()).
				Wrap(err)
		}
		return nil, oops.Code("GAME_LEAVE_FAILED").
			With("operation", "update membership").
			With("user_id", userID.String()).
			Wrap(err)
	}

	c.notify(MembershipChange{UserID: user.ID, OldGameID: oldGameID, NewGameID: nil})
	c.logger.Info("user left game", "user_id", user.ID.String())
	return user, nil
}

func (c *Coordinator) notify(change MembershipChange) {
	for _, obs := range c.observers {
		obs.MembershipChanged(change)
	}
}
