package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gitea.kood.tech/petrkubec/genre-match/internal/config"
	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

const testJWTSecret = "test-secret-key-for-testing"

// TestUser is a registered account with a valid token.
type TestUser struct {
	ID       int64
	Username string
	Email    string
	Password string
	Token    string
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.StoreDriver = config.DriverMemory
	cfg.JWTSecret = testJWTSecret
	cfg.FlashHashKey = "0123456789abcdef0123456789abcdef"
	cfg.LoginRateLimit = 1000
	return cfg
}

func newTestServer(t *testing.T) (*server, *store.Memory) {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

func newTestServerWith(t *testing.T, cfg *config.Config) (*server, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return newServer(cfg, st, zerolog.Nop()), st
}

func createTestUser(t *testing.T, s *server, username, email, password string) TestUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u, err := s.store.CreateUser(context.Background(), store.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	require.NoError(t, err)

	token, err := s.issueToken(u.ID)
	require.NoError(t, err)
	return TestUser{ID: u.ID, Username: username, Email: email, Password: password, Token: token}
}

// createInterviewedUser registers a user and stores ratings for them.
func createInterviewedUser(t *testing.T, s *server, username string, ratings map[similarity.Genre]float64) TestUser {
	t.Helper()
	u := createTestUser(t, s, username, username+"@example.com", "password123")
	var v similarity.Vector
	for g, r := range ratings {
		v.Set(g, r)
	}
	require.NoError(t, s.store.SubmitPoll(context.Background(), u.ID, v))
	return u
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), "body: %s", w.Body.String())
}
