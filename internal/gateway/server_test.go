// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cardroom/cardroom/internal/auth"
	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/gateway"
)

// memStore is an in-memory CredentialStore enforcing the same uniqueness
// rules as the SQL implementation.
type memStore struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[ulid.ULID]*auth.User)}
}

func (s *memStore) InsertUnique(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return oops.Wrap(auth.ErrUsernameTaken)
		}
		if existing.SessionToken == user.SessionToken {
			return oops.Wrap(auth.ErrTokenTaken)
		}
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, oops.Wrap(auth.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, oops.Wrap(auth.ErrNotFound)
}

func (s *memStore) GetByToken(_ context.Context, token string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.SessionToken == token {
			copied := *user
			return &copied, nil
		}
	}
	return nil, oops.Wrap(auth.ErrNotFound)
}

func (s *memStore) UpdateTokenIfAbsent(_ context.Context, id ulid.ULID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for otherID, other := range s.users {
		if otherID != id && other.SessionToken == token {
			return oops.Wrap(auth.ErrTokenTaken)
		}
	}
	user, ok := s.users[id]
	if !ok {
		return oops.Wrap(auth.ErrNotFound)
	}
	user.SessionToken = token
	user.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) UpdateMembership(_ context.Context, id ulid.ULID, gameID *ulid.ULID) (*auth.User, *ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil, oops.Wrap(auth.ErrNotFound)
	}
	old := user.CurrentGameID
	user.CurrentGameID = gameID
	user.UpdatedAt = time.Now()
	copied := *user
	return &copied, old, nil
}

// memDirectory is an in-memory game.Directory backed by memStore for
// member lookups.
type memDirectory struct {
	mu    sync.Mutex
	games map[ulid.ULID]*game.Game
	store *memStore
}

func newMemDirectory(store *memStore) *memDirectory {
	return &memDirectory{games: make(map[ulid.ULID]*game.Game), store: store}
}

func (d *memDirectory) Create(_ context.Context, g *game.Game) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.games {
		if existing.Name == g.Name {
			return oops.Wrap(game.ErrNameTaken)
		}
	}
	copied := *g
	d.games[g.ID] = &copied
	return nil
}

func (d *memDirectory) Get(_ context.Context, id ulid.ULID) (*game.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return nil, oops.Wrap(game.ErrNotFound)
	}
	copied := *g
	return &copied, nil
}

func (d *memDirectory) List(_ context.Context) ([]*game.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	games := make([]*game.Game, 0, len(d.games))
	for _, g := range d.games {
		copied := *g
		games = append(games, &copied)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].CreatedAt.After(games[j].CreatedAt) })
	return games, nil
}

func (d *memDirectory) Start(_ context.Context, id ulid.ULID) (*game.Game, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.games[id]
	if !ok {
		return nil, oops.Wrap(game.ErrNotFound)
	}
	g.Status = game.StatusStarted
	copied := *g
	return &copied, nil
}

func (d *memDirectory) Members(_ context.Context, id ulid.ULID) ([]*auth.User, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	var members []*auth.User
	for _, user := range d.store.users {
		if user.CurrentGameID != nil && user.CurrentGameID.Compare(id) == 0 {
			copied := *user
			members = append(members, &copied)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members, nil
}

type fixture struct {
	router http.Handler
	store  *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	directory := newMemDirectory(store)

	tokens, err := auth.NewTokenManager(store)
	require.NoError(t, err)
	authSvc, err := auth.NewService(store, tokens, auth.NewArgon2idHasher())
	require.NoError(t, err)
	coordinator, err := game.NewCoordinator(store, directory)
	require.NoError(t, err)

	server, err := gateway.NewServer("127.0.0.1:0", authSvc, coordinator, directory, nil)
	require.NoError(t, err)

	return &fixture{router: server.Router(), store: store}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (f *fixture) register(t *testing.T, username, password string) gateway.SessionView {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, "register %s: %s", username, rec.Body.String())
	return decodeAs[gateway.SessionView](t, rec)
}

func (f *fixture) createGame(t *testing.T, token, name string) gateway.GameView {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/games", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, "create game %s: %s", name, rec.Body.String())
	return decodeAs[gateway.GameView](t, rec)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	t.Run("issues a session token", func(t *testing.T) {
		session := f.register(t, "alice", "hunter22")
		assert.Equal(t, "alice", session.User.Username)
		assert.Nil(t, session.User.GameID)
		assert.Len(t, session.SessionToken, 22)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": "alice", "password": "hunter22"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeAs[map[string]any](t, rec)
		assert.Equal(t, "AUTH_USERNAME_TAKEN", body["code"])
	})

	t.Run("case-variant username conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": "Alice", "password": "another9"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeAs[map[string]any](t, rec)
		assert.Equal(t, "AUTH_USERNAME_TAKEN", body["code"])

		// The original account still authenticates with its own password.
		rec = f.do(t, http.MethodPost, "/api/session", "", map[string]string{"username": "alice", "password": "hunter22"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("short username is unprocessable", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": "abc", "password": "hunter22"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("short password is unprocessable", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": "brand_new", "password": "12345"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice", "hunter22")

	t.Run("login returns the current token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/session", "", map[string]string{"username": "alice", "password": "hunter22"})
		require.Equal(t, http.StatusOK, rec.Code)
		session := decodeAs[gateway.SessionView](t, rec)
		assert.Equal(t, registered.User.ID, session.User.ID)
		assert.Equal(t, registered.SessionToken, session.SessionToken)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/session", "", map[string]string{"username": "alice", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown username is unauthorized", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/session", "", map[string]string{"username": "nobody_here", "password": "hunter22"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout rotates the token", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/session", registered.SessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rotated := decodeAs[gateway.SessionView](t, rec)
		assert.NotEqual(t, registered.SessionToken, rotated.SessionToken)

		// The old token stops resolving; the new one works.
		rec = f.do(t, http.MethodGet, "/api/users/me", registered.SessionToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/users/me", rotated.SessionToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireSession(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "alice", "hunter22")

	t.Run("missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users/me", "definitely-not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users/me", session.SessionToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("x-session-token header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("X-Session-Token", session.SessionToken)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMembership(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "alice", "hunter22")
	pokerGame := f.createGame(t, session.SessionToken, "Friday Poker")
	bridgeGame := f.createGame(t, session.SessionToken, "Bridge Night")

	join := func(t *testing.T, gameID string) gateway.UserView {
		t.Helper()
		rec := f.do(t, http.MethodPatch, "/api/users/me/game", session.SessionToken,
			map[string]*string{"game_id": &gameID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decodeAs[gateway.UserView](t, rec)
	}

	t.Run("join", func(t *testing.T) {
		user := join(t, pokerGame.ID)
		require.NotNil(t, user.GameID)
		assert.Equal(t, pokerGame.ID, *user.GameID)
	})

	t.Run("rejoining the same game succeeds", func(t *testing.T) {
		user := join(t, pokerGame.ID)
		require.NotNil(t, user.GameID)
		assert.Equal(t, pokerGame.ID, *user.GameID)
	})

	t.Run("switching games implicitly leaves the first", func(t *testing.T) {
		user := join(t, bridgeGame.ID)
		require.NotNil(t, user.GameID)
		assert.Equal(t, bridgeGame.ID, *user.GameID)

		rec := f.do(t, http.MethodGet, "/api/games/"+pokerGame.ID, session.SessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		view := decodeAs[gateway.GameView](t, rec)
		assert.Empty(t, view.Members)
	})

	t.Run("leave with null game id", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/users/me/game", session.SessionToken,
			map[string]*string{"game_id": nil})
		require.Equal(t, http.StatusOK, rec.Code)
		user := decodeAs[gateway.UserView](t, rec)
		assert.Nil(t, user.GameID)
	})

	t.Run("leave while unjoined succeeds", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/users/me/game", session.SessionToken,
			map[string]*string{"game_id": nil})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown game id", func(t *testing.T) {
		missing := ulid.Make().String()
		rec := f.do(t, http.MethodPatch, "/api/users/me/game", session.SessionToken,
			map[string]*string{"game_id": &missing})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed game id", func(t *testing.T) {
		bad := "not-a-ulid"
		rec := f.do(t, http.MethodPatch, "/api/users/me/game", session.SessionToken,
			map[string]*string{"game_id": &bad})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGames(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "alice", "hunter22")

	t.Run("create", func(t *testing.T) {
		view := f.createGame(t, session.SessionToken, "Friday Poker")
		assert.Equal(t, "Friday Poker", view.Name)
		assert.Equal(t, "lobby", view.Status)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/games", session.SessionToken, map[string]string{"name": "Friday Poker"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("empty name is unprocessable", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/games", session.SessionToken, map[string]string{"name": "   "})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/games", session.SessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		views := decodeAs[[]gateway.GameView](t, rec)
		require.Len(t, views, 1)
		assert.Equal(t, "Friday Poker", views[0].Name)
	})

	t.Run("get includes members", func(t *testing.T) {
		view := f.createGame(t, session.SessionToken, "Members Game")
		rec := f.do(t, http.MethodPatch, "/api/users/me/game", session.SessionToken,
			map[string]*string{"game_id": &view.ID})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/games/"+view.ID, session.SessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeAs[gateway.GameView](t, rec)
		require.Len(t, got.Members, 1)
		assert.Equal(t, "alice", got.Members[0].Username)
	})

	t.Run("start", func(t *testing.T) {
		view := f.createGame(t, session.SessionToken, "Start Me")
		rec := f.do(t, http.MethodPatch, "/api/games/"+view.ID, session.SessionToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeAs[gateway.GameView](t, rec)
		assert.Equal(t, "started", got.Status)
	})

	t.Run("get unknown game", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/games/"+ulid.Make().String(), session.SessionToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestNewServer(t *testing.T) {
	store := newMemStore()
	directory := newMemDirectory(store)
	tokens, err := auth.NewTokenManager(store)
	require.NoError(t, err)
	authSvc, err := auth.NewService(store, tokens, auth.NewArgon2idHasher())
	require.NoError(t, err)
	coordinator, err := game.NewCoordinator(store, directory)
	require.NoError(t, err)

	t.Run("requires auth service", func(t *testing.T) {
		_, err := gateway.NewServer("127.0.0.1:0", nil, coordinator, directory, nil)
		assert.Error(t, err)
	})

	t.Run("requires coordinator", func(t *testing.T) {
		_, err := gateway.NewServer("127.0.0.1:0", authSvc, nil, directory, nil)
		assert.Error(t, err)
	})

	t.Run("requires directory", func(t *testing.T) {
		_, err := gateway.NewServer("127.0.0.1:0", authSvc, coordinator, nil, nil)
		assert.Error(t, err)
	})
}

func TestServerLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newMemStore()
	directory := newMemDirectory(store)
	tokens, err := auth.NewTokenManager(store)
	require.NoError(t, err)
	authSvc, err := auth.NewService(store, tokens, auth.NewArgon2idHasher())
	require.NoError(t, err)
	coordinator, err := game.NewCoordinator(store, directory)
	require.NoError(t, err)

	server, err := gateway.NewServer("127.0.0.1:0", authSvc, coordinator, directory, nil)
	require.NoError(t, err)

	errCh, err := server.Start()
	require.NoError(t, err)
	require.NotEmpty(t, server.Addr())

	t.Run("double start fails", func(t *testing.T) {
		_, err := server.Start()
		assert.Error(t, err)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		client := &http.Client{Timeout: 5 * time.Second}
		defer client.CloseIdleConnections()

		resp, err := client.Get(fmt.Sprintf("http://%s/api/games", server.Addr()))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case serveErr := <-errCh:
		assert.NoError(t, serveErr)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// Stopping twice is a no-op.
	require.NoError(t, server.Stop(ctx))
}
