package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gitea.kood.tech/petrkubec/genre-match/internal/config"
	"gitea.kood.tech/petrkubec/genre-match/internal/logging"
	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
	"gitea.kood.tech/petrkubec/genre-match/internal/validation"
)

// server carries every dependency the handlers need.
type server struct {
	cfg       *config.Config
	store     store.Store
	ranker    *similarity.Ranker
	validate  *validation.Validator
	hub       *Hub
	flash     *securecookie.SecureCookie
	metrics   *Metrics
	registry  *prometheus.Registry
	logger    zerolog.Logger
	jwtSecret []byte
	now       func() time.Time
}

func newServer(cfg *config.Config, st store.Store, logger zerolog.Logger) *server {
	policy := similarity.PolicyInterviewedOnly
	if cfg.RankingIncludeUninterviewed {
		policy = similarity.PolicyAnyVector
	}

	registry := prometheus.NewRegistry()
	metrics := NewMetrics()
	metrics.Register(registry)

	return &server{
		cfg:       cfg,
		store:     st,
		ranker:    similarity.NewRanker(st, policy),
		validate:  validation.New(),
		hub:       newHub(logger, metrics),
		flash:     newFlashCodec(cfg),
		metrics:   metrics,
		registry:  registry,
		logger:    logger,
		jwtSecret: []byte(cfg.JWTSecret),
		now:       time.Now,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(withCORS(s.cfg.CORSAllowedOrigins))

	r.Get("/health", s.healthHandler())
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Post("/register", s.registerHandler())
	r.With(httprate.LimitByIP(s.cfg.LoginRateLimit, s.cfg.LoginRateWindow)).
		Post("/login", s.loginHandler())

	// browsers cannot set headers on the upgrade, so the token may come as ?token=
	r.Get("/ws/feed", s.wsFeedHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.dataLoaderMiddleware)

		r.With(s.guard(interviewedOnly)).Get("/", s.homeHandler())

		r.Get("/me", s.meHandler())
		r.With(s.guard(interviewedOnly)).Get("/me/preferences", s.mePreferencesHandler())
		r.Get("/me/flash", s.meFlashHandler())
		r.Post("/me/ping", s.mePingHandler())

		r.Get("/poll", s.pollSchemaHandler())
		r.With(s.guard(notInterviewedOnly)).Post("/poll", s.submitPollHandler())

		r.Route("/compare", func(r chi.Router) {
			r.Use(s.guard(interviewedOnly))
			r.Get("/", s.compareHandler())
			r.Get("/{username}", s.compareUserHandler())
			r.Get("/{username}/{other}", s.comparePairHandler())
		})

		r.Get("/users/{username}", s.userSummaryHandler())
	})

	return r
}

func (s *server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
