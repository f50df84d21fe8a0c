package main

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	n, err := seed(ctx, st, seedOptions{Count: 25, Seed: 7, InterviewedRate: 0.5, Password: "pw"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	for i, email := range testEmails {
		u, err := st.UserByEmail(ctx, email)
		require.NoError(t, err, email)
		assert.True(t, u.Interviewed, "test user %d answers the poll", i+1)
		assert.NotNil(t, u.LastOnline)
	}

	profiles, err := st.Profiles(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(profiles), len(testEmails))
	assert.LessOrEqual(t, len(profiles), 25)
	for _, p := range profiles {
		require.NotNil(t, p.Vector)
		for _, r := range p.Vector {
			assert.True(t, r >= 0 && r <= 5 && r*2 == float64(int(r*2)), "rating %v", r)
		}
	}

	matches, err := similarity.NewRanker(st, similarity.PolicyInterviewedOnly).Rank(ctx, "user1")
	require.NoError(t, err)
	assert.Len(t, matches, len(profiles)-1)
}

func TestSeedIsDeterministic(t *testing.T) {
	names := func() []string {
		st := store.NewMemory()
		_, err := seed(context.Background(), st, seedOptions{Count: 10, Seed: 99, InterviewedRate: 1, Password: "pw"}, zerolog.Nop())
		require.NoError(t, err)
		profiles, err := st.Profiles(context.Background(), 0)
		require.NoError(t, err)
		out := make([]string, len(profiles))
		for i, p := range profiles {
			out[i] = p.Username
		}
		return out
	}
	assert.Equal(t, names(), names())
}

func TestUniqueName(t *testing.T) {
	used := map[string]struct{}{"ann": {}, "ann2": {}}
	assert.Equal(t, "ann3", uniqueName("Ann", used))
	assert.Equal(t, "bob", uniqueName("bob", used))
	assert.Equal(t, "a_b", uniqueName("a/ b", used))
	assert.Equal(t, "user", uniqueName("", used))
}

func TestRandomVector(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		v := randomVector(r)
		for _, x := range v {
			assert.Contains(t, []float64{0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5}, x)
		}
	}
}

func TestPrintMatches(t *testing.T) {
	var buf bytes.Buffer
	matches := []similarity.Match{
		{Username: "near", Distance: 1},
		{Username: "mid", Distance: 2.5},
		{Username: "far", Distance: 7.0710678},
	}
	require.NoError(t, printMatches(&buf, matches, 2))

	out := buf.String()
	assert.Contains(t, out, "near")
	assert.Contains(t, out, "2.500")
	assert.NotContains(t, out, "far")
}

func TestRootCommand(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"schema", "seed", "rank"}, names)

	root.SetArgs([]string{"rank"})
	root.SetOut(&bytes.Buffer{})
	assert.Error(t, root.Execute(), "rank needs a username")
}
