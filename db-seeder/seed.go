package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

type seedOptions struct {
	Count           int
	Seed            int64
	Truncate        bool
	InterviewedRate float64 // share of users that answer the poll
	Password        string  // same password for everyone (easy login)
}

// testEmails are always created first, both interviewed.
var testEmails = []string{"user1@test.local", "user2@test.local"}

func seedCmd() *cobra.Command {
	var o seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fake users and poll answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.Count < 1 {
				return errors.New("--count must be at least 1")
			}
			if o.InterviewedRate < 0 || o.InterviewedRate > 1 {
				return errors.New("--interviewed-rate must be in range 0..1")
			}

			pg, ctx, cancel, err := openPostgres(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pg.Close()

			if err := pg.EnsureSchema(ctx); err != nil {
				return errors.Annotate(err, "apply schema")
			}
			var n int
			err = pg.InTx(ctx, func(tx *store.Postgres) error {
				if o.Truncate {
					if err := tx.Truncate(ctx); err != nil {
						return err
					}
					logger.Info().Msg("truncating users and interests")
				}
				n, err = seed(ctx, tx, o, logger)
				return err
			})
			if err != nil {
				return errors.Annotate(err, "seed rolled back")
			}
			logger.Info().Int("users", n).Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&o.Count, "count", 300, "Number of users to create")
	cmd.Flags().Int64Var(&o.Seed, "seed", 42, "RNG seed (deterministic)")
	cmd.Flags().BoolVar(&o.Truncate, "truncate", false, "TRUNCATE users and interests before running")
	cmd.Flags().Float64Var(&o.InterviewedRate, "interviewed-rate", 0.8, "Share of users that answer the poll (0..1)")
	cmd.Flags().StringVar(&o.Password, "password", "test1234", "Password assigned to all users")
	return cmd
}

// seed creates o.Count users through st and returns how many were written.
// The seed command hands it a transaction-bound store, so a failure leaves the
// database as it was.
func seed(ctx context.Context, st store.Store, o seedOptions, log zerolog.Logger) (int, error) {
	r := rand.New(rand.NewSource(o.Seed))
	fake := faker.NewWithSeed(rand.NewSource(o.Seed))

	pwHash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, errors.Annotate(err, "bcrypt")
	}

	usedNames := make(map[string]struct{}, o.Count)
	usedEmails := make(map[string]struct{}, o.Count)
	interviewed := 0

	for i := 0; i < o.Count; i++ {
		var email, username string
		if i < len(testEmails) {
			email = testEmails[i]
			username = fmt.Sprintf("user%d", i+1)
		} else {
			username = uniqueName(fake.Internet().User(), usedNames)
			email = uniqueName(username, usedEmails) + "@" + fake.Internet().FreeEmailDomain()
		}
		usedNames[username] = struct{}{}
		usedEmails[strings.SplitN(email, "@", 2)[0]] = struct{}{}

		u, err := st.CreateUser(ctx, store.NewUser{
			Username:     username,
			Email:        strings.ToLower(email),
			PasswordHash: string(pwHash),
		})
		if err != nil {
			return i, errors.Annotatef(err, "insert user %d (%s)", i, email)
		}

		if i < len(testEmails) || r.Float64() < o.InterviewedRate {
			if err := st.SubmitPoll(ctx, u.ID, randomVector(r)); err != nil {
				return i, errors.Annotatef(err, "poll for %s", username)
			}
			interviewed++
		}
		// recently online for a handful so the live flags have something to show
		if i < len(testEmails) || r.Intn(10) == 0 {
			if err := st.TouchLastOnline(ctx, u.ID); err != nil {
				return i, errors.Trace(err)
			}
		}
	}

	log.Info().Int("users", o.Count).Int("interviewed", interviewed).Msg("inserted users")
	return o.Count, nil
}

// randomVector draws every rating from 0.5..5 in half steps.
func randomVector(r *rand.Rand) similarity.Vector {
	var v similarity.Vector
	for _, g := range similarity.Genres() {
		v.Set(g, float64(r.Intn(10)+1)/2)
	}
	return v
}

// uniqueName appends a counter to base until it is unused.
func uniqueName(base string, used map[string]struct{}) string {
	base = strings.ToLower(strings.NewReplacer("/", "", "?", "", "#", "", "%", "", " ", "_").Replace(base))
	if base == "" {
		base = "user"
	}
	name := base
	for n := 2; ; n++ {
		if _, taken := used[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s%d", base, n)
	}
}
