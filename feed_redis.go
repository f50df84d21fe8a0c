package main

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const feedChannel = "genre-match:feed"

// redisRelay shares feed events between instances over Redis pub/sub.
type redisRelay struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func newRedisRelay(ctx context.Context, url string, logger zerolog.Logger) (*redisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Annotate(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Annotate(err, "ping redis")
	}
	return &redisRelay{client: client, channel: feedChannel, logger: logger}, nil
}

func (rr *redisRelay) Publish(ctx context.Context, evt FeedEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(rr.client.Publish(ctx, rr.channel, payload).Err(), "redis publish")
}

func (rr *redisRelay) Run(ctx context.Context, deliver func(FeedEvent)) error {
	sub := rr.client.Subscribe(ctx, rr.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return errors.Annotate(err, "redis subscribe")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				rr.logger.Warn().Err(err).Msg("dropping malformed feed event")
				continue
			}
			deliver(evt)
		}
	}
}

func (rr *redisRelay) Close() error {
	return rr.client.Close()
}
