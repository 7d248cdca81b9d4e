package broadcast

import "context"

// Relay carries events between server instances so every hub sees every
// committed change.
type Relay interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe returns once the relay is ready to receive. The channel is
	// closed when ctx is done or the underlying connection drops.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}
