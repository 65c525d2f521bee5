// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package postgres implements game.Directory using PostgreSQL.
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
	"github.com/cardroom/cardroom/internal/game"
)

// nameConstraint must match the migration in internal/store/migrations.
const nameConstraint = "games_name_key"

// poolIface is the subset of pgxpool.Pool the directory uses. pgxmock
// implements it, so unit tests run without a database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Directory implements game.Directory using PostgreSQL.
type Directory struct {
	pool poolIface
}

// NewDirectory creates a new Directory.
func NewDirectory(pool poolIface) *Directory {
	return &Directory{pool: pool}
}

// Create persists a new game.
func (r *Directory) Create(ctx context.Context, g *game.Game) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO games (id, name, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, g.ID.String(), g.Name, string(g.Status), g.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == nameConstraint {
			return oops.Code("GAME_NAME_TAKEN").
				With("name", g.Name).
				Wrap(game.ErrNameTaken)
		}
		return oops.Code("GAME_CREATE_FAILED").
			With("operation", "insert game").
			With("name", g.Name).
			Wrap(err)
	}
	return nil
}

// Get retrieves a game by ID.
func (r *Directory) Get(ctx context.Context, id ulid.ULID) (*game.Game, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, status, created_at
		FROM games
		WHERE id = $1
	`, id.String())

	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GAME_NOT_FOUND").
			With("id", id.String()).
			Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GAME_GET_FAILED").
			With("operation", "get game by id").
			With("id", id.String()).
			Wrap(err)
	}
	return g, nil
}

// List returns all games, newest first.
func (r *Directory) List(ctx context.Context) ([]*game.Game, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, status, created_at
		FROM games
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, oops.Code("GAME_LIST_FAILED").
			With("operation", "list games").
			Wrap(err)
	}
	defer rows.Close()

	var games []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, oops.Code("GAME_SCAN_FAILED").
				With("operation", "scan game row").
				Wrap(err)
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("GAME_ROWS_ERROR").
			With("operation", "iterate game rows").
			Wrap(err)
	}

	return games, nil
}

// Start transitions a game out of the lobby.
func (r *Directory) Start(ctx context.Context, id ulid.ULID) (*game.Game, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE games SET status = $2
		WHERE id = $1
		RETURNING id, name, status, created_at
	`, id.String(), string(game.StatusStarted))

	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GAME_NOT_FOUND").
			With("id", id.String()).
			Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GAME_START_FAILED").
			With("operation", "start game").
			With("id", id.String()).
			Wrap(err)
	}
	return g, nil
}

// Members returns the users currently sitting at the game. Membership lives
// on the user row, so this is a reverse lookup, not a stored list.
func (r *Directory) Members(ctx context.Context, id ulid.ULID) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, password_hash, session_token, current_game_id, created_at, updated_at
		FROM users
		WHERE current_game_id = $1
		ORDER BY username
	`, id.String())
	if err != nil {
		return nil, oops.Code("GAME_MEMBERS_FAILED").
			With("operation", "list game members").
			With("id", id.String()).
			Wrap(err)
	}
	defer rows.Close()

	var members []*auth.User
	for rows.Next() {
		u, err := scanMember(rows)
		if err != nil {
			return nil, oops.Code("GAME_MEMBER_SCAN_FAILED").
				With("operation", "scan member row").
				Wrap(err)
		}
		members = append(members, u)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("GAME_ROWS_ERROR").
			With("operation", "iterate member rows").
			Wrap(err)
	}

	return members, nil
}

// scanGame scans a single row into a Game.
// Callers are responsible for handling pgx.ErrNoRows.
func scanGame(row pgx.Row) (*game.Game, error) {
	var (
		idStr     string
		name      string
		status    string
		createdAt time.Time
	)

	if err := row.Scan(&idStr, &name, &status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("GAME_SCAN_FAILED").
			With("operation", "scan game").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("GAME_INVALID_ID").
			With("operation", "parse game id").
			With("id", idStr).
			Wrap(err)
	}

	return &game.Game{
		ID:        id,
		Name:      name,
		Status:    game.Status(status),
		CreatedAt: createdAt,
	}, nil
}

func scanMember(row pgx.Row) (*auth.User, error) {
	var (
		idStr        string
		username     string
		passwordHash string
		sessionToken string
		gameIDStr    *string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&idStr, &username, &passwordHash, &sessionToken, &gameIDStr, &createdAt, &updatedAt); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	var gameID *ulid.ULID
	if gameIDStr != nil {
		parsed, err := ulid.Parse(*gameIDStr)
		if err != nil {
			return nil, oops.Code("USER_INVALID_GAME_ID").
				With("operation", "parse current game id").
				With("value", *gameIDStr).
				Wrap(err)
		}
		gameID = &parsed
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

// Compile-time interface check.
var _ game.Directory = (*Directory)(nil)
