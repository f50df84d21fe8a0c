package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

func TestGuardFuncs(t *testing.T) {
	fresh := &store.User{Username: "fresh"}
	done := &store.User{Username: "done", Interviewed: true}

	assert.Equal(t, Decision{Allow: true}, interviewedOnly(done))
	assert.Equal(t, Decision{Redirect: "/poll", Flash: "You should pass the poll before get access to this page."}, interviewedOnly(fresh))

	assert.Equal(t, Decision{Allow: true}, notInterviewedOnly(fresh))
	assert.Equal(t, Decision{Redirect: "/", Flash: "You are already interviewed."}, notInterviewedOnly(done))
}

func TestGuardedRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()
	fresh := createTestUser(t, s, "fresh", "fresh@example.com", "password123")
	done := createInterviewedUser(t, s, "done", map[similarity.Genre]float64{similarity.Action: 1})

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		status   int
		redirect string
	}{
		{"Home requires poll", http.MethodGet, "/", fresh.Token, http.StatusForbidden, "/poll"},
		{"Compare requires poll", http.MethodGet, "/compare", fresh.Token, http.StatusForbidden, "/poll"},
		{"Compare user requires poll", http.MethodGet, "/compare/done", fresh.Token, http.StatusForbidden, "/poll"},
		{"Pair requires poll", http.MethodGet, "/compare/done/fresh", fresh.Token, http.StatusForbidden, "/poll"},
		{"Preferences require poll", http.MethodGet, "/me/preferences", fresh.Token, http.StatusForbidden, "/poll"},
		{"Second poll refused", http.MethodPost, "/poll", done.Token, http.StatusForbidden, "/"},
		{"Home for interviewed", http.MethodGet, "/", done.Token, http.StatusOK, ""},
		{"Poll form open to all", http.MethodGet, "/poll", done.Token, http.StatusOK, ""},
		{"Me open to all", http.MethodGet, "/me", fresh.Token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, tt.path, tt.token, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.redirect == "" {
				return
			}
			assert.Equal(t, tt.redirect, w.Header().Get("Location"))

			var resp guardDenied
			decodeBody(t, w, &resp)
			assert.Equal(t, "forbidden", resp.Error)
			assert.Equal(t, tt.redirect, resp.Redirect)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGuardUnauthenticated(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.guard(interviewedOnly)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a user")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/compare", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFlashMessages(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()
	fresh := createTestUser(t, s, "flashy", "flashy@example.com", "password123")

	denied := doRequest(t, h, http.MethodGet, "/compare", fresh.Token, nil)
	require.Equal(t, http.StatusForbidden, denied.Code)
	cookies := denied.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, flashCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	t.Run("Pop pending flashes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me/flash", nil)
		req.Header.Set("Authorization", "Bearer "+fresh.Token)
		req.AddCookie(cookies[0])
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string][]string
		decodeBody(t, w, &resp)
		assert.Equal(t, []string{flashNeedPoll}, resp["messages"])

		cleared := w.Result().Cookies()
		require.Len(t, cleared, 1)
		assert.Equal(t, -1, cleared[0].MaxAge)
	})

	t.Run("Flashes accumulate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+fresh.Token)
		req.AddCookie(cookies[0])
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		next := w.Result().Cookies()
		require.Len(t, next, 1)
		var msgs []string
		require.NoError(t, s.flash.Decode(flashCookie, next[0].Value, &msgs))
		assert.Equal(t, []string{flashNeedPoll, flashNeedPoll}, msgs)
	})

	t.Run("Tampered cookie is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me/flash", nil)
		req.Header.Set("Authorization", "Bearer "+fresh.Token)
		req.AddCookie(&http.Cookie{Name: flashCookie, Value: "forged"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		var resp map[string][]string
		decodeBody(t, w, &resp)
		assert.Empty(t, resp["messages"])
	})
}
