package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// rank runs the ranker for username and decorates the matches with avatar
// and presence through the request's dataloader.
func (s *server) rank(r *http.Request, username string) (*RankingResponse, error) {
	start := time.Now()
	matches, err := s.ranker.Rank(r.Context(), username)
	s.metrics.ObserveRank(err, len(matches), time.Since(start))
	if err != nil {
		return nil, err
	}

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Username
	}
	summaries, err := s.loadSummaries(r, names)
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, len(matches))
	for i, m := range matches {
		views[i] = MatchView{
			Username: m.Username,
			Distance: m.Distance,
			Avatar:   summaries[i].Avatar,
			IsOnline: summaries[i].IsOnline,
		}
	}
	zerolog.Ctx(r.Context()).Debug().Str("target", username).Int("matches", len(views)).Msg("ranked")
	return &RankingResponse{Username: username, Matches: views}, nil
}

// GET /compare ranks everyone against the caller.
func (s *server) compareHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeRanking(w, r, currentUser(r.Context()).Username)
	}
}

// GET /compare/{username}
func (s *server) compareUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeRanking(w, r, chi.URLParam(r, "username"))
	}
}

func (s *server) writeRanking(w http.ResponseWriter, r *http.Request, username string) {
	resp, err := s.rank(r, username)
	if err != nil {
		writeStoreError(w, r, err, "rank")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /compare/{username}/{other}
func (s *server) comparePairHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, b := chi.URLParam(r, "username"), chi.URLParam(r, "other")
		distance, deltas, err := s.ranker.Compare(r.Context(), a, b)
		if err != nil {
			writeStoreError(w, r, err, "compare pair")
			return
		}
		writeJSON(w, http.StatusOK, PairResponse{
			Username: a,
			Other:    b,
			Distance: distance,
			Deltas:   deltas.Map(),
		})
	}
}
