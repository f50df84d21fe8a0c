package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"gitea.kood.tech/petrkubec/genre-match/internal/store"
	"gitea.kood.tech/petrkubec/genre-match/internal/validation"
)

type userCtxKey struct{}

// currentUser returns the user loaded by authenticate.
func currentUser(ctx context.Context) *store.User {
	u, _ := ctx.Value(userCtxKey{}).(*store.User)
	return u
}

func withUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64,excludesall=/?#%"`
	Email    string `json:"email" validate:"required,email,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type tokenResponse struct {
	Token string `json:"token"`
	ID    int64  `json:"id"`
}

func (s *server) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := s.validate.Struct(req); err != nil {
			var fe validation.FieldErrors
			if errors.As(err, &fe) {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"error":  "invalid_fields",
					"fields": fe.Map(),
				})
				return
			}
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("hashing password")
			writeError(w, http.StatusInternalServerError, "hash_error")
			return
		}

		u, err := s.store.CreateUser(r.Context(), store.NewUser{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			writeStoreError(w, r, err, "register")
			return
		}

		if err := s.store.TouchLastOnline(r.Context(), u.ID); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("user_id", u.ID).Msg("failed to update last_online for new user")
		}

		tokenString, err := s.issueToken(u.ID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("generating token for new user")
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}

		writeJSON(w, http.StatusCreated, tokenResponse{Token: tokenString, ID: u.ID})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		u, err := s.store.UserByEmail(r.Context(), req.Email)
		if errors.Is(err, errors.NotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		} else if err != nil {
			writeStoreError(w, r, err, "login")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}

		// don't fail the login over presence
		if err := s.store.TouchLastOnline(r.Context(), u.ID); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to update last_online")
		}

		tokenString, err := s.issueToken(u.ID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("generating token")
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{Token: tokenString, ID: u.ID})
	}
}

func (s *server) issueToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     s.now().Add(s.cfg.JWTTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

func (s *server) parseUserIDFromJWT(tokenStr string) (int64, bool) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, false
	}

	// jwt.MapClaims stores numbers as float64
	fv, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(fv), true
}

// getUserIDFromRequest reads a bearer token, falling back to ?token= for websockets.
func (s *server) getUserIDFromRequest(r *http.Request, allowQuery bool) (int64, bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return s.parseUserIDFromJWT(strings.TrimPrefix(auth, "Bearer "))
	}
	if q := r.URL.Query().Get("token"); allowQuery && q != "" {
		return s.parseUserIDFromJWT(q)
	}
	return 0, false
}

// authenticate loads the caller into the request context and marks them online.
func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.getUserIDFromRequest(r, false)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		u, err := s.store.UserByID(r.Context(), userID)
		if errors.Is(err, errors.NotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		} else if err != nil {
			writeStoreError(w, r, err, "authenticate")
			return
		}

		if err := s.store.TouchLastOnline(r.Context(), u.ID); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to update last_online")
		} else {
			now := s.now()
			u.LastOnline = &now
		}

		ctx := zerolog.Ctx(r.Context()).With().Int64("user_id", u.ID).Logger().WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(withUser(ctx, u)))
	})
}
