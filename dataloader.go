package main

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/juju/errors"

	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	SummaryLoader *dataloader.Loader[string, *UserSummary]
}

// NewDataLoaders builds loaders that render summaries for a request made over r.
func (s *server) NewDataLoaders(r *http.Request) *DataLoaders {
	return &DataLoaders{
		SummaryLoader: dataloader.NewBatchedLoader(
			s.summaryBatchFn(isSecureRequest(r)),
			dataloader.WithWait[string, *UserSummary](2*time.Millisecond),
		),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// summaryBatchFn loads every requested username with one store call.
func (s *server) summaryBatchFn(secure bool) dataloader.BatchFunc[string, *UserSummary] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*UserSummary] {
		results := make([]*dataloader.Result[*UserSummary], len(keys))

		users, err := s.store.UsersByUsernames(ctx, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*UserSummary]{Error: err}
			}
			return results
		}

		now := s.now()
		for i, key := range keys {
			u, ok := users[key]
			if !ok {
				results[i] = &dataloader.Result[*UserSummary]{Error: errors.NotFoundf("user %q", key)}
				continue
			}
			results[i] = &dataloader.Result[*UserSummary]{Data: s.summarize(u, secure, now)}
		}
		return results
	}
}

func (s *server) summarize(u *store.User, secure bool, now time.Time) *UserSummary {
	return &UserSummary{
		Username:    u.Username,
		Avatar:      gravatarURL(u, secure, 100),
		IsOnline:    u.OnlineWithin(s.cfg.OnlineTTL, now),
		Interviewed: u.Interviewed,
		IsAdmin:     s.isAdmin(u),
	}
}

// loadSummaries resolves usernames through the request's loader, in order.
func (s *server) loadSummaries(r *http.Request, usernames []string) ([]*UserSummary, error) {
	if len(usernames) == 0 {
		return []*UserSummary{}, nil
	}
	ctx := r.Context()
	dl := GetDataLoadersFromContext(ctx)
	if dl == nil {
		dl = s.NewDataLoaders(r)
	}
	summaries, errs := dl.SummaryLoader.LoadMany(ctx, usernames)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return summaries, nil
}
