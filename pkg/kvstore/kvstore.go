package kvstore

import "context"

// KVStore is the subset of Redis the server relies on: token lists for the
// session whitelist and pub/sub for cross-instance broadcast.
type KVStore interface {
	Delete(ctx context.Context, key string) error
	RPush(ctx context.Context, key string, values ...interface{}) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value interface{}) error
	Expire(ctx context.Context, key string, ttl int64) error
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe returns once the subscription is confirmed. Messages stop and
	// the channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
	Ping(ctx context.Context) error
	Close() error
}
