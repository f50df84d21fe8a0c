package similarity

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Profile is what the ranker needs to know about one user.
type Profile struct {
	UserID      int64
	Username    string
	Interviewed bool
	// Vector is nil when the user has no stored preferences.
	Vector *Vector
	// Missing lists genres whose stored rating is NULL.
	Missing []Genre
}

// complete reports an InvalidVector error unless every rating is present.
func (p Profile) complete() error {
	if p.Vector == nil {
		return errors.NotValidf("preferences of interviewed user %q (none stored)", p.Username)
	}
	if len(p.Missing) > 0 {
		names := lo.Map(p.Missing, func(g Genre, _ int) string { return g.String() })
		return errors.NotValidf("preferences of %q (missing %s)", p.Username, strings.Join(names, ", "))
	}
	return nil
}

// usable checks a profile that is being ranked against or compared. Users
// who never took the poll are not found; interviewed users must have every
// rating stored.
func (p Profile) usable() error {
	if p.Vector == nil && !p.Interviewed {
		return errors.NotFoundf("preferences of %q", p.Username)
	}
	return p.complete()
}

// Match is one ranked candidate.
type Match struct {
	UserID   int64   `json:"-"`
	Username string  `json:"username"`
	Distance float64 `json:"distance"`
}

// Policy decides which candidates are eligible for ranking.
type Policy int

const (
	// PolicyInterviewedOnly ranks only users who completed the poll.
	PolicyInterviewedOnly Policy = iota
	// PolicyAnyVector ranks every user with stored preferences, interviewed or not.
	PolicyAnyVector
)

func (p Policy) admits(c Profile) bool {
	if p == PolicyAnyVector {
		return c.Vector != nil || c.Interviewed
	}
	return c.Interviewed
}

// Source is the read side of the preference store.
type Source interface {
	// Profile loads one user by username. Unknown users yield an errors.NotFound error.
	Profile(ctx context.Context, username string) (Profile, error)
	// Profiles loads every user except excludeUserID that either has preferences
	// or is marked interviewed.
	Profiles(ctx context.Context, excludeUserID int64) ([]Profile, error)
}

// Ranker ranks the users of a Source by distance to a target user.
type Ranker struct {
	source Source
	policy Policy
}

// NewRanker returns a Ranker reading from source.
func NewRanker(source Source, policy Policy) *Ranker {
	return &Ranker{source: source, policy: policy}
}

// Rank orders every eligible user other than username by ascending distance.
func (r *Ranker) Rank(ctx context.Context, username string) ([]Match, error) {
	target, err := r.source.Profile(ctx, username)
	if err != nil {
		return nil, errors.Annotatef(err, "load target %q", username)
	}
	candidates, err := r.source.Profiles(ctx, target.UserID)
	if err != nil {
		return nil, errors.Annotate(err, "load candidates")
	}
	return RankProfiles(target, candidates, r.policy)
}

// RankProfiles is the pure ranking step. Ties on distance are broken by
// username in ascending byte order. An empty candidate set yields an empty,
// non-nil slice.
func RankProfiles(target Profile, candidates []Profile, policy Policy) ([]Match, error) {
	if err := target.usable(); err != nil {
		return nil, err
	}

	eligible := lo.Filter(candidates, func(c Profile, _ int) bool {
		return c.Username != target.Username && policy.admits(c)
	})

	matches := make([]Match, 0, len(eligible))
	for _, c := range eligible {
		if err := c.complete(); err != nil {
			return nil, err
		}
		matches = append(matches, Match{
			UserID:   c.UserID,
			Username: c.Username,
			Distance: Distance(*target.Vector, *c.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Username < matches[j].Username
	})
	return matches, nil
}

// Compare loads two users and returns their distance together with b's
// per-genre offset from a.
func (r *Ranker) Compare(ctx context.Context, a, b string) (float64, Vector, error) {
	pa, err := r.source.Profile(ctx, a)
	if err != nil {
		return 0, Vector{}, errors.Annotatef(err, "load %q", a)
	}
	pb, err := r.source.Profile(ctx, b)
	if err != nil {
		return 0, Vector{}, errors.Annotatef(err, "load %q", b)
	}
	return ComparePair(pa, pb)
}

// ComparePair is the pure form of Ranker.Compare.
func ComparePair(a, b Profile) (float64, Vector, error) {
	for _, p := range []Profile{a, b} {
		if err := p.usable(); err != nil {
			return 0, Vector{}, err
		}
	}
	return Distance(*a.Vector, *b.Vector), Deltas(*a.Vector, *b.Vector), nil
}

// IsNotFound reports whether err means the target or its preferences do not exist.
func IsNotFound(err error) bool { return errors.Is(err, errors.NotFound) }

// IsInvalidVector reports whether err means stored preferences are incomplete.
func IsInvalidVector(err error) bool { return errors.Is(err, errors.NotValid) }
