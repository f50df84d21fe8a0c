package main

import (
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/validation"
)

const ratingRule = "required,min=0,max=5,halfstep"

// pollValues are the ratings a poll answer may take.
var pollValues = func() []float64 {
	out := make([]float64, 0, 11)
	for i := 0; i <= 10; i++ {
		out = append(out, float64(i)/2)
	}
	return out
}()

type pollSchema struct {
	Genres      []string  `json:"genres"`
	Values      []float64 `json:"values"`
	Interviewed bool      `json:"interviewed"`
}

// GET /poll describes the form: one rating per genre.
func (s *server) pollSchemaHandler() http.HandlerFunc {
	genres := make([]string, 0, similarity.NumGenres)
	for _, g := range similarity.Genres() {
		genres = append(genres, g.String())
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, pollSchema{
			Genres:      genres,
			Values:      pollValues,
			Interviewed: currentUser(r.Context()).Interviewed,
		})
	}
}

// parsePoll checks that every genre is rated once and nothing else is sent.
func (s *server) parsePoll(answers map[string]*float64) (similarity.Vector, validation.FieldErrors) {
	var (
		v    similarity.Vector
		errs validation.FieldErrors
	)
	for _, g := range similarity.Genres() {
		rating := answers[g.String()]
		if err := s.validate.Var(g.String(), rating, ratingRule); err != nil {
			if fe, ok := err.(validation.FieldErrors); ok {
				errs = append(errs, fe...)
				continue
			}
			errs = append(errs, validation.FieldError{Field: g.String(), Tag: "invalid"})
			continue
		}
		v.Set(g, *rating)
	}

	var unknown []string
	for name := range answers {
		if _, ok := similarity.ParseGenre(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, validation.FieldError{Field: name, Tag: "unknown"})
	}
	return v, errs
}

// POST /poll stores the caller's ratings and flips them to interviewed.
func (s *server) submitPollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())

		var answers map[string]*float64
		if err := decodeJSON(r, &answers); err != nil {
			s.metrics.ObservePoll("invalid")
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		v, errs := s.parsePoll(answers)
		if len(errs) > 0 {
			s.metrics.ObservePoll("invalid")
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "invalid_poll",
				"fields": errs.Map(),
			})
			return
		}

		if err := s.store.SubmitPoll(r.Context(), u.ID, v); err != nil {
			s.metrics.ObservePoll("error")
			writeStoreError(w, r, err, "submit poll")
			return
		}
		s.metrics.ObservePoll("accepted")
		zerolog.Ctx(r.Context()).Info().Msg("poll submitted")

		s.hub.Publish(r.Context(), FeedEvent{Type: eventPeerJoined, Username: u.Username})

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"interviewed": true,
			"preferences": v.Map(),
		})
	}
}
