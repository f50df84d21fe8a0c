// Package store persists users and their genre preferences.
package store

import (
	"context"
	"time"

	"github.com/juju/errors"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
)

// Conflicts reported by CreateUser.
const (
	ErrUsernameTaken = errors.ConstError("username already exists")
	ErrEmailTaken    = errors.ConstError("email already exists")
)

// User is an account row.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	AvatarHash   string
	Interviewed  bool
	CreatedAt    time.Time
	LastOnline   *time.Time
}

// OnlineWithin reports whether the user was seen in the last ttl.
func (u *User) OnlineWithin(ttl time.Duration, now time.Time) bool {
	return u.LastOnline != nil && now.Sub(*u.LastOnline) <= ttl
}

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// Store is implemented by Postgres and Memory.
type Store interface {
	similarity.Source

	CreateUser(ctx context.Context, nu NewUser) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	// UsersByUsernames returns the users found, keyed by username. Unknown names are absent.
	UsersByUsernames(ctx context.Context, usernames []string) (map[string]*User, error)

	// SubmitPoll overwrites all ratings of the user and marks them interviewed
	// in one transaction.
	SubmitPoll(ctx context.Context, userID int64, v similarity.Vector) error
	// Preferences returns the user's stored vector.
	Preferences(ctx context.Context, userID int64) (*similarity.Vector, error)

	TouchLastOnline(ctx context.Context, userID int64) error

	Ping(ctx context.Context) error
	Close() error
}

func userNotFound(key string, value any) error {
	return errors.NotFoundf("user %s=%v", key, value)
}
