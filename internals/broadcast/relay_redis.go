package broadcast

import (
	"context"
	"encoding/json"

	"github.com/kridavyuha/auction-server/pkg/kvstore"
	"github.com/rs/zerolog"
)

const DefaultRedisChannel = "auction-events"

// RedisRelay fans events through a Redis pub/sub channel.
type RedisRelay struct {
	kv      kvstore.KVStore
	channel string
	logger  zerolog.Logger
}

func NewRedisRelay(kv kvstore.KVStore, channel string, logger zerolog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisRelay{kv: kv, channel: channel, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.kv.Publish(ctx, r.channel, string(body))
}

func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := r.kv.Subscribe(ctx, r.channel)
	if err != nil {
		return nil, err
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		for m := range msgs {
			var e Event
			if err := json.Unmarshal([]byte(m), &e); err != nil {
				r.logger.Warn().Err(err).Msg("malformed relay message")
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the KVStore is owned by the caller.
func (r *RedisRelay) Close() error {
	return nil
}
