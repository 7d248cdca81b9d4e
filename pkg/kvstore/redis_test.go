package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(mr.Addr(), "", 0)
	assert.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestListOperations(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, r.RPush(ctx, "session_token_1", "a", "b", "c"))
	assert.NoError(t, r.LRem(ctx, "session_token_1", 1, "b"))

	vals, err := r.LRange(ctx, "session_token_1", 0, -1)
	assert.NoError(t, err)
	check.Equal(t, []string{"a", "c"}, vals)
}

func TestDeleteDropsList(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, r.RPush(ctx, "session_token_1", "a", "b"))
	assert.NoError(t, r.Delete(ctx, "session_token_1"))

	vals, err := r.LRange(ctx, "session_token_1", 0, -1)
	assert.NoError(t, err)
	check.Equal(t, 0, len(vals))
}

func TestPublishSubscribe(t *testing.T) {
	r := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := r.Subscribe(ctx, "auction-events")
	assert.NoError(t, err)

	assert.NoError(t, r.Publish(ctx, "auction-events", "hello"))

	select {
	case m := <-msgs:
		check.Equal(t, "hello", m)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	for range msgs {
	}
}
