// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
	"github.com/cardroom/cardroom/internal/game"
)

// UserView is the public projection of a user. The password hash never
// leaves the store boundary, and the session token appears only in
// SessionView at issuance time.
type UserView struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	GameID   *string `json:"game_id"`
}

// SessionView is returned whenever a token is issued or rotated: that is
// the one time the credential is delivered to the caller.
type SessionView struct {
	User         UserView `json:"user"`
	SessionToken string   `json:"session_token"`
}

// GameView is the public projection of a game.
type GameView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	CreatedAt string     `json:"created_at"`
	Members   []UserView `json:"members,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type membershipRequest struct {
	GameID *string `json:"game_id"`
}

type createGameRequest struct {
	Name string `json:"name"`
}

func toUserView(u *auth.User) UserView {
	var gameID *string
	if u.CurrentGameID != nil {
		s := u.CurrentGameID.String()
		gameID = &s
	}
	return UserView{
		ID:       u.ID.String(),
		Username: u.Username,
		GameID:   gameID,
	}
}

func toGameView(g *game.Game, members []*auth.User) GameView {
	view := GameView{
		ID:        g.ID.String(),
		Name:      g.Name,
		Status:    string(g.Status),
		CreatedAt: g.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, m := range members {
		view.Members = append(view.Members, toUserView(m))
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps a service error onto an HTTP response using its oops
// code. Unknown codes are reported as 500 without leaking detail.
func writeError(w http.ResponseWriter, err error) {
	code := ""
	if oopsErr, ok := oops.AsOops(err); ok {
		if s, isString := oopsErr.Code().(string); isString {
			code = s
		}
	}

	status := http.StatusInternalServerError
	message := "internal error"

	switch code {
	case "AUTH_INVALID_USERNAME", "AUTH_INVALID_PASSWORD", "AUTH_EMPTY_PASSWORD", "GAME_INVALID_NAME":
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case "AUTH_USERNAME_TAKEN", "GAME_NAME_TAKEN", "TOKEN_CONFLICT":
		status = http.StatusConflict
		message = err.Error()
	case "AUTH_INVALID_CREDENTIALS":
		status = http.StatusUnauthorized
		message = "invalid username or password"
	case "SESSION_INVALID":
		status = http.StatusUnauthorized
		message = "invalid session token"
	case "GAME_NOT_FOUND":
		status = http.StatusNotFound
		message = err.Error()
	}

	writeJSON(w, status, errorBody{Error: message, Code: code})
}
