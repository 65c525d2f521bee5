// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package postgres implements auth.CredentialStore using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

// Unique constraints the repository maps to sentinel errors. Names must
// match the migration in internal/store/migrations; the username one is an
// index on LOWER(username) so uniqueness agrees with the case-insensitive
// lookup in GetByUsername.
const (
	usernameConstraint = "users_username_lower_key"
	tokenConstraint    = "users_session_token_key"
)

// poolIface is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it, so unit tests run without a database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialStore implements auth.CredentialStore using PostgreSQL.
//
// Uniqueness of usernames and session tokens is enforced by the database,
// not by check-then-act queries: inserts and token updates simply fail on
// collision and the violated constraint decides which sentinel comes back.
type CredentialStore struct {
	pool poolIface
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(pool poolIface) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// InsertUnique stores a new user in a single atomic insert.
func (r *CredentialStore) InsertUnique(ctx context.Context, user *auth.User) error {
	var gameID *string
	if user.CurrentGameID != nil {
		s := user.CurrentGameID.String()
		gameID = &s
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, session_token, current_game_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID.String(),
		user.Username,
		user.PasswordHash,
		user.SessionToken,
		gameID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint := uniqueViolation(err); constraint != "" {
			switch constraint {
			case usernameConstraint:
				return oops.Code("USER_DUPLICATE_USERNAME").
					With("username", user.Username).
					Wrap(auth.ErrUsernameTaken)
			case tokenConstraint:
				return oops.Code("USER_DUPLICATE_TOKEN").
					With("id", user.ID.String()).
					Wrap(auth.ErrTokenTaken)
			}
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *CredentialStore) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, session_token, current_game_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *CredentialStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, session_token, current_game_id, created_at, updated_at
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByToken retrieves the user holding the given session token.
func (r *CredentialStore) GetByToken(ctx context.Context, token string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, session_token, current_game_id, created_at, updated_at
		FROM users
		WHERE session_token = $1
	`, token)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// The token value stays out of the error context on purpose.
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_TOKEN_FAILED").
			With("operation", "get user by token").
			Wrap(err)
	}
	return user, nil
}

// UpdateTokenIfAbsent replaces the user's session token in one atomic
// update. The unique constraint on session_token rejects candidates already
// held by another user.
func (r *CredentialStore) UpdateTokenIfAbsent(ctx context.Context, id ulid.ULID, token string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET session_token = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), token, time.Now())
	if err != nil {
		if uniqueViolation(err) == tokenConstraint {
			return oops.Code("USER_DUPLICATE_TOKEN").
				With("id", id.String()).
				Wrap(auth.ErrTokenTaken)
		}
		return oops.Code("USER_UPDATE_TOKEN_FAILED").
			With("operation", "update session token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateMembership sets current_game_id in a single statement and returns
// the updated user together with the previous value. The self-join exposes
// the pre-update row, so there is no read-modify-write window for
// concurrent calls to observe.
func (r *CredentialStore) UpdateMembership(ctx context.Context, id ulid.ULID, gameID *ulid.ULID) (*auth.User, *ulid.ULID, error) {
	var gameIDStr *string
	if gameID != nil {
		s := gameID.String()
		gameIDStr = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE users SET current_game_id = $2, updated_at = $3
		FROM (SELECT id, current_game_id FROM users WHERE id = $1 FOR UPDATE) AS prev
		WHERE users.id = prev.id
		RETURNING users.id, users.username, users.password_hash, users.session_token,
		          users.current_game_id, users.created_at, users.updated_at,
		          prev.current_game_id
	`, id.String(), gameIDStr, time.Now())

	var prevGameIDStr *string
	user, err := scanUserWith(row, &prevGameIDStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, nil, oops.Code("USER_UPDATE_MEMBERSHIP_FAILED").
			With("operation", "update membership").
			With("id", id.String()).
			Wrap(err)
	}

	prevGameID, err := parseOptionalULID(prevGameIDStr, "previous game id")
	if err != nil {
		return nil, nil, err
	}
	return user, prevGameID, nil
}

// uniqueViolation returns the violated constraint name, or "" if err is not
// a unique-constraint violation.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	return scanUserWith(row)
}

// scanUserWith scans the user columns plus any trailing extra columns.
func scanUserWith(row pgx.Row, extra ...any) (*auth.User, error) {
	var (
		idStr        string
		username     string
		passwordHash string
		sessionToken string
		gameIDStr    *string
		createdAt    time.Time
		updatedAt    time.Time
	)

	dest := []any{&idStr, &username, &passwordHash, &sessionToken, &gameIDStr, &createdAt, &updatedAt}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	gameID, err := parseOptionalULID(gameIDStr, "current game id")
	if err != nil {
		return nil, err
	}

	return &auth.User{
		ID:            id,
		Username:      username,
		PasswordHash:  passwordHash,
		SessionToken:  sessionToken,
		CurrentGameID: gameID,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func parseOptionalULID(s *string, field string) (*ulid.ULID, error) {
	if s == nil {
		return nil, nil
	}
	parsed, err := ulid.Parse(*s)
	if err != nil {
		return nil, oops.Code("USER_INVALID_GAME_ID").
			With("operation", "parse "+field).
			With("value", *s).
			Wrap(err)
	}
	return &parsed, nil
}

// Compile-time interface check.
var _ auth.CredentialStore = (*CredentialStore)(nil)
