package broadcast

// Client is one subscriber. All fields except ID are guarded by the hub lock.
type Client struct {
	ID      string
	send    chan Event
	room    string
	lastSeq int64
	dropped int64
	closed  bool
}

// Events yields the client's events in order; it is closed on Leave.
func (c *Client) Events() <-chan Event {
	return c.send
}
