// Package similarity ranks users by Euclidean distance between their
// genre-preference vectors.
package similarity

import (
	"math"
)

// Genre indexes one dimension of a preference vector.
type Genre int

const (
	Action Genre = iota
	Adventure
	Animation
	Childrens
	Comedy
	Crime
	Documentary
	Drama
	Fantasy
	Horror
	Musical
	Mystery
	Romance
	Science
	Thriller
	War
	Western

	// NumGenres is the dimension of every preference vector.
	NumGenres
)

var genreNames = [NumGenres]string{
	"action", "adventure", "animation", "childrens", "comedy", "crime",
	"documentary", "drama", "fantasy", "horror", "musical", "mystery",
	"romance", "science", "thriller", "war", "western",
}

// String returns the lowercase genre name, which is also its column and JSON key.
func (g Genre) String() string {
	if g < 0 || g >= NumGenres {
		return "unknown"
	}
	return genreNames[g]
}

// Genres lists every genre in vector order.
func Genres() []Genre {
	out := make([]Genre, NumGenres)
	for i := range out {
		out[i] = Genre(i)
	}
	return out
}

// ParseGenre maps a genre name back to its index.
func ParseGenre(name string) (Genre, bool) {
	for i, n := range genreNames {
		if n == name {
			return Genre(i), true
		}
	}
	return 0, false
}

// Vector is a user's preference vector: one rating per genre.
type Vector [NumGenres]float64

// Get returns the rating for g.
func (v Vector) Get(g Genre) float64 { return v[g] }

// Set stores the rating for g.
func (v *Vector) Set(g Genre, rating float64) { v[g] = rating }

// Map returns the vector keyed by genre name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumGenres)
	for i, r := range v {
		m[genreNames[i]] = r
	}
	return m
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Deltas returns b - a per genre.
func Deltas(a, b Vector) Vector {
	var out Vector
	for i := range a {
		out[i] = b[i] - a[i]
	}
	return out
}
