package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/storage"

	"gorm.io/gorm"
)

// Lot is what clients need to render the auction from scratch.
type Lot struct {
	State      storage.AuctionState `json:"state"`
	Player     *storage.Player      `json:"player,omitempty"`
	HighestBid *storage.Bid         `json:"highest_bid,omitempty"`
	MinNext    int64                `json:"min_next"`
	Version    int64                `json:"version"`
}

// CurrentLot reads the state, the open player and its highest bid of the
// current round from one transaction.
func (e *Engine) CurrentLot(ctx context.Context) (Lot, error) {
	var lot Lot
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := loadState(tx)
		if err != nil {
			return err
		}
		lot.State = st
		lot.Version = st.Version
		if !st.Auctioning() {
			return nil
		}
		lot.MinNext = st.IncrementRules.MinNext(st.CurrentBid)

		var player storage.Player
		if err := tx.Where("player_id = ?", *st.CurrentPlayerID).First(&player).Error; err != nil {
			return fmt.Errorf("load player %s: %w", *st.CurrentPlayerID, err)
		}
		lot.Player = &player

		var bid storage.Bid
		err = lotBids(tx, st).First(&bid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load highest bid: %w", err)
		}
		lot.HighestBid = &bid
		return nil
	})
	return lot, err
}

// LotBids lists the bids of the open lot's current round, highest first.
func (e *Engine) LotBids(ctx context.Context) ([]storage.Bid, error) {
	bids := make([]storage.Bid, 0)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := loadState(tx)
		if err != nil {
			return err
		}
		if !st.Auctioning() {
			return nil
		}
		if err := lotBids(tx, st).Find(&bids).Error; err != nil {
			return fmt.Errorf("list bids: %w", err)
		}
		return nil
	})
	return bids, err
}

// Snapshot is the event a client gets when it joins the room.
func (e *Engine) Snapshot(ctx context.Context) (broadcast.Event, error) {
	lot, err := e.CurrentLot(ctx)
	if err != nil {
		return broadcast.Event{}, err
	}
	return broadcast.NewEvent(broadcast.EventSnapshot, lot.Version, lot)
}

func lotBids(tx *gorm.DB, st storage.AuctionState) *gorm.DB {
	return tx.Model(&storage.Bid{}).
		Where("player_id = ? AND round = ?", *st.CurrentPlayerID, st.Round).
		Order("amount DESC").
		Order("created_at DESC")
}
