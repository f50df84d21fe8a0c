package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

func (s *server) isAdmin(u *store.User) bool {
	return s.cfg.AdminEmail != "" && strings.EqualFold(u.Email, s.cfg.AdminEmail)
}

type meResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UserSummary
}

// GET /me
func (s *server) meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		writeJSON(w, http.StatusOK, meResponse{
			ID:          u.ID,
			Email:       u.Email,
			CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
			UserSummary: *s.summarize(u, isSecureRequest(r), s.now()),
		})
	}
}

// GET / is the landing page of an interviewed user: who they are and who is closest.
func (s *server) homeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		resp := map[string]interface{}{
			"user": s.summarize(u, isSecureRequest(r), s.now()),
		}

		ranking, err := s.rank(r, u.Username)
		if err != nil {
			writeStoreError(w, r, err, "home ranking")
			return
		}
		top := ranking.Matches
		if len(top) > 5 {
			top = top[:5]
		}
		resp["closest"] = top
		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /me/preferences
func (s *server) mePreferencesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		v, err := s.store.Preferences(r.Context(), u.ID)
		if err != nil {
			writeStoreError(w, r, err, "preferences")
			return
		}
		writeJSON(w, http.StatusOK, v.Map())
	}
}

// GET /users/{username}
func (s *server) userSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := s.loadSummaries(r, []string{chi.URLParam(r, "username")})
		if err != nil {
			writeStoreError(w, r, err, "user summary")
			return
		}
		writeJSON(w, http.StatusOK, summaries[0])
	}
}
