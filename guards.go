package main

import (
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"

	"gitea.kood.tech/petrkubec/genre-match/internal/config"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

// Decision is the outcome of a guard.
type Decision struct {
	Allow    bool
	Redirect string
	Flash    string
}

// A guard inspects the authenticated caller.
type guardFunc func(u *store.User) Decision

const (
	flashNeedPoll           = "You should pass the poll before get access to this page."
	flashAlreadyInterviewed = "You are already interviewed."
)

func interviewedOnly(u *store.User) Decision {
	if u.Interviewed {
		return Decision{Allow: true}
	}
	return Decision{Redirect: "/poll", Flash: flashNeedPoll}
}

func notInterviewedOnly(u *store.User) Decision {
	if !u.Interviewed {
		return Decision{Allow: true}
	}
	return Decision{Redirect: "/", Flash: flashAlreadyInterviewed}
}

type guardDenied struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
	Message  string `json:"message"`
}

// guard wraps a route with g. It must run after authenticate.
func (s *server) guard(g guardFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := currentUser(r.Context())
			if u == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			d := g(u)
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}

			s.addFlash(w, r, d.Flash)
			w.Header().Set("Location", d.Redirect)
			writeJSON(w, http.StatusForbidden, guardDenied{
				Error:    "forbidden",
				Redirect: d.Redirect,
				Message:  d.Flash,
			})
		})
	}
}

// --- Flash messages ---

const flashCookie = "flash"

// newFlashCodec signs (and, with a block key, encrypts) the flash cookie.
// Without a configured hash key a random one is generated, so flashes do not
// survive a restart.
func newFlashCodec(cfg *config.Config) *securecookie.SecureCookie {
	hashKey := []byte(cfg.FlashHashKey)
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	var blockKey []byte
	if cfg.FlashBlockKey != "" {
		blockKey = []byte(cfg.FlashBlockKey)
	}
	return securecookie.New(hashKey, blockKey)
}

func (s *server) readFlashes(r *http.Request) []string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	var msgs []string
	if err := s.flash.Decode(flashCookie, c.Value, &msgs); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("discarding undecodable flash cookie")
		return nil
	}
	return msgs
}

func (s *server) addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		return
	}
	msgs := append(s.readFlashes(r), msg)
	encoded, err := s.flash.Encode(flashCookie, msgs)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("encoding flash cookie")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// GET /me/flash returns and clears pending flash messages.
func (s *server) meFlashHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs := s.readFlashes(r)
		if msgs == nil {
			msgs = []string{}
		}
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string][]string{"messages": msgs})
	}
}
