package main

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 16

// decodeJSON reads one JSON object from the request body. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeStoreError maps domain error kinds to HTTP responses and logs the rest.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	logger := zerolog.Ctx(r.Context())
	switch {
	case similarity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found")
	case similarity.IsInvalidVector(err):
		logger.Error().Err(err).Str("op", op).Msg("stored preferences are inconsistent")
		writeError(w, http.StatusInternalServerError, "invalid_vector")
	case errors.Is(err, store.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_exists")
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_exists")
	default:
		logger.Error().Err(err).Str("op", op).Msg("store error")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}
