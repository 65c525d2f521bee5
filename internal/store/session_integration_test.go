// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

//go:build integration

package store_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cardroom/cardroom/internal/auth"
	authpg "github.com/cardroom/cardroom/internal/auth/postgres"
	"github.com/cardroom/cardroom/internal/game"
	gamepg "github.com/cardroom/cardroom/internal/game/postgres"
	"github.com/cardroom/cardroom/internal/store"
)

type testStack struct {
	pool        *pgxpool.Pool
	users       *authpg.CredentialStore
	games       *gamepg.Directory
	service     *auth.Service
	coordinator *game.Coordinator
}

// setupStack starts a PostgreSQL container, applies migrations, and wires
// the full service stack against it.
func setupStack() (*testStack, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cardroom_test"),
		postgres.WithUsername("cardroom"),
		postgres.WithPassword("cardroom"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	_ = migrator.Close()

	pool, err := store.NewPool(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	users := authpg.NewCredentialStore(pool)
	games := gamepg.NewDirectory(pool)

	tokens, err := auth.NewTokenManager(users)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	service, err := auth.NewService(users, tokens, auth.NewArgon2idHasher())
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	coordinator, err := game.NewCoordinator(users, games)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	stack := &testStack{
		pool:        pool,
		users:       users,
		games:       games,
		service:     service,
		coordinator: coordinator,
	}
	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return stack, cleanup, nil
}

var _ = Describe("Session lifecycle", func() {
	var stack *testStack
	var cleanup func()

	BeforeEach(func() {
		var err error
		stack, cleanup, err = setupStack()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	It("registers, authenticates, and resolves the session", func() {
		ctx := context.Background()

		registered, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())
		Expect(registered.SessionToken).To(HaveLen(22))

		authenticated, err := stack.service.Authenticate(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())
		Expect(authenticated.ID).To(Equal(registered.ID))

		_, err = stack.service.Authenticate(ctx, "alice", "wrong-password")
		Expect(err).To(HaveOccurred())

		resolved, err := stack.service.ResolveSession(ctx, registered.SessionToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.ID).To(Equal(registered.ID))
	})

	It("rejects a duplicate username", func() {
		ctx := context.Background()

		_, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())

		_, err = stack.service.Register(ctx, "alice", "different-password")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a case-variant duplicate username", func() {
		ctx := context.Background()

		registered, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())

		_, err = stack.service.Register(ctx, "Alice", "another-password9")
		Expect(err).To(MatchError(auth.ErrUsernameTaken))

		authenticated, err := stack.service.Authenticate(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())
		Expect(authenticated.ID).To(Equal(registered.ID))
	})

	It("rotates the token on logout and invalidates the old one", func() {
		ctx := context.Background()

		user, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())
		oldToken := user.SessionToken

		newToken, err := stack.service.EndSession(ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(newToken).NotTo(Equal(oldToken))

		_, err = stack.service.ResolveSession(ctx, oldToken)
		Expect(err).To(HaveOccurred())

		resolved, err := stack.service.ResolveSession(ctx, newToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.ID).To(Equal(user.ID))
	})

	It("issues distinct tokens under concurrent registration", func() {
		ctx := context.Background()

		const n = 20
		tokens := make([]string, n)

		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user, err := stack.service.Register(ctx, usernames[i], "hunter22")
				if err != nil {
					errs[i] = err
					return
				}
				tokens[i] = user.SessionToken
			}(i)
		}
		wg.Wait()

		seen := map[string]struct{}{}
		for i := range n {
			Expect(errs[i]).NotTo(HaveOccurred())
			seen[tokens[i]] = struct{}{}
		}
		Expect(seen).To(HaveLen(n))
	})
})

var _ = Describe("Game membership", func() {
	var stack *testStack
	var cleanup func()

	BeforeEach(func() {
		var err error
		stack, cleanup, err = setupStack()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	newGame := func(name string) *game.Game {
		g, err := game.NewGame(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(stack.games.Create(context.Background(), g)).To(Succeed())
		return g
	}

	It("joins, switches, and leaves exclusively", func() {
		ctx := context.Background()

		user, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())

		first := newGame("Friday Poker")
		second := newGame("Bridge Night")

		joined, err := stack.coordinator.Join(ctx, user.ID, first.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(joined.InGame(first.ID)).To(BeTrue())

		// Switching implicitly leaves the first game.
		switched, err := stack.coordinator.Join(ctx, user.ID, second.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(switched.InGame(second.ID)).To(BeTrue())

		members, err := stack.games.Members(ctx, first.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(members).To(BeEmpty())

		members, err = stack.games.Members(ctx, second.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(members).To(HaveLen(1))
		Expect(members[0].Username).To(Equal("alice"))

		left, err := stack.coordinator.Leave(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(left.CurrentGameID).To(BeNil())

		// Leaving again is a no-op.
		_, err = stack.coordinator.Leave(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports the previous game atomically when switching", func() {
		ctx := context.Background()

		user, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())

		first := newGame("Friday Poker")
		second := newGame("Bridge Night")

		_, prev, err := stack.users.UpdateMembership(ctx, user.ID, &first.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(prev).To(BeNil())

		_, prev, err = stack.users.UpdateMembership(ctx, user.ID, &second.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(prev).NotTo(BeNil())
		Expect(*prev).To(Equal(first.ID))
	})

	It("rejects joining a game that does not exist", func() {
		ctx := context.Background()

		user, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())

		missing := newGame("Real Game")
		Expect(stack.pool.QueryRow(ctx, "DELETE FROM games WHERE id = $1 RETURNING id", missing.ID.String()).Scan(new(string))).To(Succeed())

		_, err = stack.coordinator.Join(ctx, user.ID, missing.ID)
		Expect(err).To(HaveOccurred())
	})

	It("removes membership when a game is deleted", func() {
		ctx := context.Background()

		user, err := stack.service.Register(ctx, "alice", "hunter22")
		Expect(err).NotTo(HaveOccurred())

		g := newGame("Ephemeral")
		_, err = stack.coordinator.Join(ctx, user.ID, g.ID)
		Expect(err).NotTo(HaveOccurred())

		// ON DELETE SET NULL clears current_game_id.
		_, err = stack.pool.Exec(ctx, "DELETE FROM games WHERE id = $1", g.ID.String())
		Expect(err).NotTo(HaveOccurred())

		got, err := stack.users.GetByID(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CurrentGameID).To(BeNil())
	})
})

// usernames provides valid distinct usernames for concurrency specs.
var usernames = func() []string {
	names := make([]string, 20)
	for i := range names {
		names[i] = "player_" + string(rune('a'+i))
	}
	return names
}()
