// Package broadcast fans auction events out to every connected client.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Options struct {
	// ClientBuffer is how many undelivered events a client may lag behind
	// before new events are dropped for it.
	ClientBuffer int
	// GapTimeout bounds how long an out-of-order event waits for the missing
	// seqs before them.
	GapTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ClientBuffer <= 0 {
		o.ClientBuffer = 64
	}
	if o.GapTimeout <= 0 {
		o.GapTimeout = 250 * time.Millisecond
	}
	return o
}

var (
	ErrClientClosed = errors.New("client has left")
	// ErrStaleEvent means the client already holds a newer seq; send a fresher
	// event instead.
	ErrStaleEvent   = errors.New("client has already seen a newer event")
	ErrClientBehind = errors.New("client buffer is full")
)

type room struct {
	name    string
	clients map[*Client]struct{}
	seq     *sequencer
}

// Hub is an in-process pub/sub with named rooms. Delivery is best effort and
// at most once: a client whose buffer is full misses the event and must
// refetch the current lot.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*room
	opts   Options
	origin string
	relay  Relay
	logger zerolog.Logger
}

func NewHub(opts Options, logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		opts:   opts.withDefaults(),
		origin: uuid.NewString(),
		logger: logger.With().Str("component", "broadcast").Logger(),
	}
}

// Origin is this hub's id on the relay.
func (h *Hub) Origin() string {
	return h.origin
}

func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Prime tells the room which version storage is already at.
func (h *Hub) Prime(roomName string, version int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.room(roomName).seq.prime(version)
}

// NewClient registers nothing yet; call Join to start receiving events.
func (h *Hub) NewClient() *Client {
	return &Client{
		ID:   uuid.NewString(),
		send: make(chan Event, h.opts.ClientBuffer),
	}
}

// Join moves c into roomName. Events with seq <= lastSeq are not delivered.
func (h *Hub) Join(c *Client, roomName string, lastSeq int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	if c.room != "" {
		if r, ok := h.rooms[c.room]; ok {
			delete(r.clients, c)
		}
	}
	c.room = roomName
	if lastSeq > c.lastSeq {
		c.lastSeq = lastSeq
	}
	h.room(roomName).clients[c] = struct{}{}
	h.logger.Debug().Str("client_id", c.ID).Str("room", roomName).Int64("last_seq", c.lastSeq).Msg("client joined")
}

// Leave removes c from its room and closes its event channel.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	if r, ok := h.rooms[c.room]; ok {
		delete(r.clients, c)
	}
	c.closed = true
	close(c.send)
	h.logger.Debug().Str("client_id", c.ID).Int64("dropped", c.dropped).Msg("client left")
}

// Subscribers counts the clients in a room.
func (h *Hub) Subscribers(roomName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomName]; ok {
		return len(r.clients)
	}
	return 0
}

// Publish delivers e to the local room in seq order and forwards it to the
// relay so other instances can do the same.
func (h *Hub) Publish(ctx context.Context, e Event) {
	if e.Room == "" {
		e.Room = AuctionRoom
	}
	if e.Origin == "" {
		e.Origin = h.origin
	}

	h.mu.Lock()
	accepted := h.room(e.Room).seq.offer(e)
	relay := h.relay
	h.mu.Unlock()

	if !accepted {
		h.logger.Debug().Str("type", string(e.Type)).Int64("seq", e.Seq).Msg("stale event dropped")
		return
	}
	if relay == nil || e.Origin != h.origin {
		return
	}
	if err := relay.Publish(ctx, e); err != nil {
		h.logger.Warn().Err(err).Str("type", string(e.Type)).Int64("seq", e.Seq).Msg("relay publish failed")
	}
}

// Send delivers e to one client only, bypassing the room sequencer. An event
// with the client's last seq is still sent, an older one is not.
func (h *Hub) Send(c *Client, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case c.closed:
		return ErrClientClosed
	case e.Seq > 0 && e.Seq < c.lastSeq:
		return ErrStaleEvent
	}
	if !h.push(c, e, true) {
		return ErrClientBehind
	}
	return nil
}

// receive handles an event that arrived over the relay.
func (h *Hub) receive(e Event) {
	if e.Origin == h.origin {
		return
	}
	h.mu.Lock()
	h.room(e.Room).seq.offer(e)
	h.mu.Unlock()
}

// StartRelay subscribes to the relay and feeds remote events into the local
// rooms until ctx is done. It returns once the subscription is live.
func (h *Hub) StartRelay(ctx context.Context) (<-chan struct{}, error) {
	h.mu.Lock()
	relay := h.relay
	h.mu.Unlock()

	done := make(chan struct{})
	if relay == nil {
		close(done)
		return done, nil
	}

	events, err := relay.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		defer close(done)
		for e := range events {
			h.receive(e)
		}
	}()
	return done, nil
}

// Close stops pending gap timers and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rooms {
		r.seq.stop()
		for c := range r.clients {
			c.closed = true
			close(c.send)
		}
		r.clients = make(map[*Client]struct{})
	}
}

// room must be called with h.mu held.
func (h *Hub) room(name string) *room {
	if r, ok := h.rooms[name]; ok {
		return r
	}
	r := &room{name: name, clients: make(map[*Client]struct{})}
	r.seq = newSequencer(h.opts.GapTimeout,
		func(e Event) { h.fanout(r, e) },
		func(gen uint64) {
			h.mu.Lock()
			defer h.mu.Unlock()
			missing := r.seq.next
			if r.seq.expire(gen) {
				h.logger.Warn().Str("room", r.name).Int64("missing_seq", missing).Msg("skipped sequence gap")
			}
		})
	h.rooms[name] = r
	return r
}

func (h *Hub) fanout(r *room, e Event) {
	for c := range r.clients {
		h.push(c, e, false)
	}
}

// push must be called with h.mu held.
func (h *Hub) push(c *Client, e Event, direct bool) bool {
	if !direct && e.Seq > 0 && e.Seq <= c.lastSeq {
		return false
	}
	select {
	case c.send <- e:
		if e.Seq > c.lastSeq {
			c.lastSeq = e.Seq
		}
		return true
	default:
		c.dropped++
		h.logger.Debug().Str("client_id", c.ID).Int64("seq", e.Seq).Msg("client buffer full, event dropped")
		return false
	}
}
