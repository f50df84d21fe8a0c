package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/errors"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
)

// Memory is an in-process Store for tests and local runs without Postgres.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
	prefs  map[int64]similarity.Vector
	now    func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[int64]*User),
		prefs: make(map[int64]similarity.Vector),
		now:   time.Now,
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// copyUser keeps callers from mutating stored rows.
func copyUser(u *User) *User {
	c := *u
	if u.LastOnline != nil {
		t := *u.LastOnline
		c.LastOnline = &t
	}
	return &c
}

func (m *Memory) CreateUser(_ context.Context, nu NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == nu.Username {
			return nil, ErrUsernameTaken
		}
		if u.Email == nu.Email {
			return nil, ErrEmailTaken
		}
	}
	m.nextID++
	u := &User{
		ID:           m.nextID,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    m.now(),
	}
	m.users[u.ID] = u
	return copyUser(u), nil
}

func (m *Memory) find(match func(*User) bool) *User {
	for _, u := range m.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (m *Memory) UserByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, userNotFound("id", id)
	}
	return copyUser(u), nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := m.find(func(u *User) bool { return u.Email == email })
	if u == nil {
		return nil, userNotFound("email", email)
	}
	return copyUser(u), nil
}

func (m *Memory) UserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := m.find(func(u *User) bool { return u.Username == username })
	if u == nil {
		return nil, userNotFound("username", username)
	}
	return copyUser(u), nil
}

func (m *Memory) UsersByUsernames(_ context.Context, usernames []string) (map[string]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(usernames))
	for _, n := range usernames {
		want[n] = true
	}
	out := make(map[string]*User, len(usernames))
	for _, u := range m.users {
		if want[u.Username] {
			out[u.Username] = copyUser(u)
		}
	}
	return out, nil
}

func (m *Memory) SubmitPoll(_ context.Context, userID int64, v similarity.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return userNotFound("id", userID)
	}
	m.prefs[userID] = v
	u.Interviewed = true
	return nil
}

func (m *Memory) Preferences(_ context.Context, userID int64) (*similarity.Vector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, userNotFound("id", userID)
	}
	v, ok := m.prefs[userID]
	switch {
	case !ok && u.Interviewed:
		return nil, errors.NotValidf("preferences of interviewed user %d (none stored)", userID)
	case !ok:
		return nil, errors.NotFoundf("preferences of user %d", userID)
	}
	return &v, nil
}

func (m *Memory) TouchLastOnline(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		t := m.now()
		u.LastOnline = &t
	}
	return nil
}

func (m *Memory) profile(u *User) similarity.Profile {
	pr := similarity.Profile{UserID: u.ID, Username: u.Username, Interviewed: u.Interviewed}
	if v, ok := m.prefs[u.ID]; ok {
		pr.Vector = &v
	}
	return pr
}

// Profile implements similarity.Source.
func (m *Memory) Profile(_ context.Context, username string) (similarity.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := m.find(func(u *User) bool { return u.Username == username })
	if u == nil {
		return similarity.Profile{}, userNotFound("username", username)
	}
	return m.profile(u), nil
}

// Profiles implements similarity.Source, ordered by username.
func (m *Memory) Profiles(_ context.Context, excludeUserID int64) ([]similarity.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []similarity.Profile
	for id, u := range m.users {
		if id == excludeUserID {
			continue
		}
		if _, ok := m.prefs[id]; ok || u.Interviewed {
			out = append(out, m.profile(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

var _ Store = (*Memory)(nil)
