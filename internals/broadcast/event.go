package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuctionRoom is the only room the auction publishes to.
const AuctionRoom = "auction-room"

type EventType string

const (
	EventBidAccepted         EventType = "bid-accepted"
	EventLotStarted          EventType = "lot-started"
	EventLotResolved         EventType = "lot-resolved"
	EventLotReset            EventType = "lot-reset"
	EventRegistrationChanged EventType = "registration-state-changed"
	EventAuctionToggled      EventType = "auction-toggled"
	EventRulesUpdated        EventType = "rules-updated"
	EventOverlayUpdated      EventType = "overlay-updated"
	// EventSnapshot is sent to a single client when it joins a room.
	EventSnapshot EventType = "snapshot"
	EventError    EventType = "error"
)

// Event is the envelope every subscriber receives. Seq is the AuctionState
// version committed together with the change; subscribers ignore anything at
// or below the last seq they saw.
type Event struct {
	Type      EventType       `json:"type"`
	Room      string          `json:"room"`
	Seq       int64           `json:"seq"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
	// Origin identifies the hub that first published the event so relays do
	// not echo it back.
	Origin string `json:"origin,omitempty"`
}

func NewEvent(t EventType, seq int64, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		Type:      t,
		Room:      AuctionRoom,
		Seq:       seq,
		Payload:   raw,
		EmittedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
