package storage

import (
	"time"

	"github.com/kridavyuha/auction-server/internals/increment"
)

type PlayerStatus string

const (
	StatusPending    PlayerStatus = "pending"
	StatusApproved   PlayerStatus = "approved"
	StatusEligible   PlayerStatus = "eligible"
	StatusAuctioning PlayerStatus = "auctioning"
	StatusSold       PlayerStatus = "sold"
	StatusUnsold     PlayerStatus = "unsold"
)

type Sport string

const (
	SportCricket  Sport = "cricket"
	SportFootball Sport = "football"
)

type CricketStats struct {
	Role        string  `json:"role"`
	Matches     int     `json:"matches"`
	Runs        int     `json:"runs"`
	Wickets     int     `json:"wickets"`
	StrikeRate  float64 `json:"strike_rate"`
	BattingHand string  `json:"batting_hand,omitempty"`
}

type FootballStats struct {
	Position string `json:"position"`
	Matches  int    `json:"matches"`
	Goals    int    `json:"goals"`
	Assists  int    `json:"assists"`
}

// PlayerStats is a tagged record: exactly one of the sport variants is set,
// matching Kind.
type PlayerStats struct {
	Kind     Sport          `json:"kind"`
	Cricket  *CricketStats  `json:"cricket,omitempty"`
	Football *FootballStats `json:"football,omitempty"`
}

// Players Table structure
type Player struct {
	PlayerID  string       `json:"player_id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"not null"`
	Sport     Sport        `json:"sport" gorm:"not null"`
	Status    PlayerStatus `json:"status" gorm:"index;not null"`
	BasePrice int64        `json:"base_price" gorm:"not null"`
	SoldPrice *int64       `json:"sold_price"`
	TeamID    *string      `json:"team_id" gorm:"index"`
	Stats     PlayerStats  `json:"stats" gorm:"serializer:json;type:jsonb"`
	// QueuePos orders eligible players; nil for every other status.
	QueuePos  *int64    `json:"queue_pos,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Teams Table structure. RemainingBudget is a cache kept in step with the
// ledger; LedgerEpoch advances on every wallet reset.
type Team struct {
	TeamID          string    `json:"team_id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"not null"`
	Sport           Sport     `json:"sport" gorm:"not null"`
	Budget          int64     `json:"budget" gorm:"not null"`
	RemainingBudget int64     `json:"remaining_budget" gorm:"not null"`
	LedgerEpoch     int64     `json:"ledger_epoch" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Bid rows are append-only. Round ties a bid to one run of a lot so that a
// reset or a re-auction does not see stale history.
type Bid struct {
	BidID     string    `json:"bid_id" gorm:"primaryKey"`
	PlayerID  string    `json:"player_id" gorm:"index:idx_bids_lot;not null"`
	Round     int64     `json:"round" gorm:"index:idx_bids_lot;not null"`
	TeamID    string    `json:"team_id" gorm:"not null"`
	Amount    int64     `json:"amount" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

type LogType string

const (
	LogBid    LogType = "BID"
	LogCredit LogType = "CREDIT"
	LogDebit  LogType = "DEBIT"
)

// BidLog is the audit trail for bids, settlements and manual wallet
// adjustments.
type BidLog struct {
	LogID     string    `json:"log_id" gorm:"primaryKey"`
	PlayerID  *string   `json:"player_id"`
	TeamID    string    `json:"team_id" gorm:"index;not null"`
	Amount    int64     `json:"amount" gorm:"not null"`
	Type      LogType   `json:"type" gorm:"not null"`
	Reason    string    `json:"reason"`
	Epoch     int64     `json:"epoch" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

type Overlay struct {
	DurationMs int    `json:"duration_ms"`
	Type       string `json:"type"`
}

// QueueCounter hands out queue positions. Enqueue increments LastPos with an
// UPDATE, so the row lock orders concurrent enqueues on every instance.
type QueueCounter struct {
	ID      uint  `gorm:"primaryKey"`
	LastPos int64 `gorm:"not null"`
}

// SingletonID is the primary key of the only AuctionState row and of the
// QueueCounter row.
const SingletonID = 1

// AuctionState is the single mutable record of what is happening right now.
// Version increases by one on every committed change. BasePrice is the
// opening price of the current lot.
type AuctionState struct {
	ID                 uint            `json:"-" gorm:"primaryKey"`
	CurrentPlayerID    *string         `json:"current_player_id"`
	BasePrice          int64           `json:"base_price"`
	CurrentBid         int64           `json:"current_bid"`
	CurrentTeamID      *string         `json:"current_team_id"`
	IsActive           bool            `json:"is_active"`
	IsRegistrationOpen bool            `json:"is_registration_open"`
	IncrementRules     increment.Table `json:"increment_rules" gorm:"serializer:json;type:jsonb"`
	Overlay            Overlay         `json:"overlay" gorm:"serializer:json;type:jsonb"`
	Round              int64           `json:"round"`
	Version            int64           `json:"version"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (s AuctionState) Auctioning() bool {
	return s.CurrentPlayerID != nil
}
