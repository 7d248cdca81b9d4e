package auction

import (
	"github.com/kridavyuha/auction-server/internals/increment"
	"github.com/kridavyuha/auction-server/internals/storage"
)

type Outcome string

const (
	OutcomeSold   Outcome = "sold"
	OutcomeUnsold Outcome = "unsold"
)

type BidAccepted struct {
	BidID    string `json:"bidId"`
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId"`
	Amount   int64  `json:"amount"`
	MinNext  int64  `json:"minNext"`
}

type LotStarted struct {
	Player     storage.Player `json:"player"`
	CurrentBid int64          `json:"currentBid"`
	MinNext    int64          `json:"minNext"`
}

// LotResolved carries Team and Amount only for a sale.
type LotResolved struct {
	Outcome Outcome         `json:"outcome"`
	Player  storage.Player  `json:"player"`
	Team    *storage.Team   `json:"team,omitempty"`
	Amount  *int64          `json:"amount,omitempty"`
	Overlay storage.Overlay `json:"overlay"`
}

type LotReset struct {
	PlayerID   string `json:"playerId"`
	CurrentBid int64  `json:"currentBid"`
	MinNext    int64  `json:"minNext"`
}

type RegistrationChanged struct {
	IsOpen bool `json:"isOpen"`
}

type AuctionToggled struct {
	IsActive bool `json:"isActive"`
}

type RulesUpdated struct {
	Rules increment.Table `json:"rules"`
}

type OverlayUpdated struct {
	Overlay storage.Overlay `json:"overlay"`
}
