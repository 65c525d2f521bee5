// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"

	"github.com/cardroom/cardroom/internal/game"
)

// handleRegister handles POST /api/users.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	user, err := s.authSvc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	writeJSON(w, http.StatusCreated, SessionView{User: toUserView(user), SessionToken: user.SessionToken})
}

// handleLogin handles POST /api/session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	user, err := s.authSvc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.Inc()
	}
	writeJSON(w, http.StatusOK, SessionView{User: toUserView(user), SessionToken: user.SessionToken})
}

// handleLogout handles DELETE /api/session. Logout rotates the token, so
// the response carries the replacement credential.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)

	token, err := s.authSvc.EndSession(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionView{User: toUserView(user), SessionToken: token})
}

// handleMe handles GET /api/users/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserView(sessionUser(r)))
}

// handleMembership handles PATCH /api/users/me/game. A non-null game_id
// joins that game (implicitly leaving the current one); a null or absent
// game_id leaves.
func (s *Server) handleMembership(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)

	var req membershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if req.GameID == nil {
		updated, err := s.coordinator.Leave(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserView(updated))
		return
	}

	gameID, err := ulid.Parse(*req.GameID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "game not found", Code: "GAME_NOT_FOUND"})
		return
	}

	updated, err := s.coordinator.Join(r.Context(), user.ID, gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(updated))
}

// handleListGames handles GET /api/games.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.directory.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]GameView, 0, len(games))
	for _, g := range games {
		views = append(views, toGameView(g, nil))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleCreateGame handles POST /api/games.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	g, err := game.NewGame(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.directory.Create(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGameView(g, nil))
}

// handleGetGame handles GET /api/games/{id}. The member list is computed
// per request by reverse lookup.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := parseGameID(w, r)
	if !ok {
		return
	}

	g, err := s.directory.Get(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	members, err := s.directory.Members(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGameView(g, members))
}

// handleStartGame handles PATCH /api/games/{id}.
func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := parseGameID(w, r)
	if !ok {
		return
	}

	g, err := s.directory.Start(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGameView(g, nil))
}

func parseGameID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	id, err := ulid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "game not found", Code: "GAME_NOT_FOUND"})
		return ulid.ULID{}, false
	}
	return id, true
}
