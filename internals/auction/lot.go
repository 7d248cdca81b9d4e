package auction

import (
	"context"
	"fmt"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/increment"
	"github.com/kridavyuha/auction-server/internals/ledger"
	"github.com/kridavyuha/auction-server/internals/queue"
	"github.com/kridavyuha/auction-server/internals/storage"

	"gorm.io/gorm"
)

// StartLot puts a player under the hammer. An empty playerID takes the head
// of the queue; a nil basePrice opens at the player's own base price.
func (e *Engine) StartLot(ctx context.Context, playerID string, basePrice *int64) (storage.AuctionState, error) {
	if basePrice != nil && *basePrice < 0 {
		return storage.AuctionState{}, apperr.New(apperr.CodeInvalidInput, "base_price must not be negative")
	}

	return e.mutate(ctx, "start_lot", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		if st.Auctioning() {
			return emission{}, apperr.WithMetadata(apperr.CodeAuctionBusy,
				"another lot is still open", map[string]string{"current_player_id": *st.CurrentPlayerID})
		}

		var (
			player storage.Player
			err    error
		)
		if playerID == "" {
			player, err = queue.Dequeue(tx)
		} else {
			player, err = queue.Transition(tx, playerID,
				[]storage.PlayerStatus{storage.StatusApproved, storage.StatusEligible}, storage.StatusAuctioning,
				map[string]interface{}{"queue_pos": nil})
		}
		if err != nil {
			return emission{}, err
		}

		price := player.BasePrice
		if basePrice != nil {
			price = *basePrice
		}
		id := player.PlayerID
		st.CurrentPlayerID = &id
		st.BasePrice = price
		st.CurrentBid = price
		st.CurrentTeamID = nil
		st.Round++

		return emission{broadcast.EventLotStarted, LotStarted{
			Player:     player,
			CurrentBid: price,
			MinNext:    st.IncrementRules.MinNext(price),
		}}, nil
	})
}

// ResolveSold closes the lot with a sale. An empty teamID means the current
// high bidder and a nil price means the current bid.
func (e *Engine) ResolveSold(ctx context.Context, teamID string, price *int64) (storage.Player, error) {
	if price != nil && *price <= 0 {
		return storage.Player{}, apperr.New(apperr.CodeInvalidInput, "price must be positive")
	}

	var sold storage.Player
	_, err := e.mutate(ctx, "resolve_sold", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		if !st.Auctioning() {
			return emission{}, apperr.New(apperr.CodeNoActiveLot, "no lot is open")
		}
		if st.CurrentTeamID == nil {
			return emission{}, apperr.New(apperr.CodeNoAcceptedBid, "the lot has no accepted bid")
		}

		winner := *st.CurrentTeamID
		if teamID != "" {
			winner = teamID
		}
		amount := st.CurrentBid
		if price != nil {
			amount = *price
		}

		player, err := queue.Transition(tx, *st.CurrentPlayerID,
			[]storage.PlayerStatus{storage.StatusAuctioning}, storage.StatusSold,
			map[string]interface{}{"team_id": winner, "sold_price": amount})
		if err != nil {
			return emission{}, err
		}
		if err := ledger.Settle(tx, winner, player.PlayerID, amount); err != nil {
			return emission{}, err
		}
		var team storage.Team
		if err := tx.Where("team_id = ?", winner).First(&team).Error; err != nil {
			return emission{}, fmt.Errorf("load team %s: %w", winner, err)
		}

		idle(st)
		sold = player
		return emission{broadcast.EventLotResolved, LotResolved{
			Outcome: OutcomeSold,
			Player:  player,
			Team:    &team,
			Amount:  &amount,
			Overlay: st.Overlay,
		}}, nil
	})
	return sold, err
}

// ResolveUnsold closes the lot without a sale.
func (e *Engine) ResolveUnsold(ctx context.Context) (storage.Player, error) {
	var unsold storage.Player
	_, err := e.mutate(ctx, "resolve_unsold", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		if !st.Auctioning() {
			return emission{}, apperr.New(apperr.CodeNoActiveLot, "no lot is open")
		}

		player, err := queue.Transition(tx, *st.CurrentPlayerID,
			[]storage.PlayerStatus{storage.StatusAuctioning}, storage.StatusUnsold,
			map[string]interface{}{"team_id": nil, "sold_price": nil})
		if err != nil {
			return emission{}, err
		}

		idle(st)
		unsold = player
		return emission{broadcast.EventLotResolved, LotResolved{
			Outcome: OutcomeUnsold,
			Player:  player,
			Overlay: st.Overlay,
		}}, nil
	})
	return unsold, err
}

// ResetBid restarts bidding on the open lot from its opening price. Bids of
// the previous round no longer count.
func (e *Engine) ResetBid(ctx context.Context) (storage.AuctionState, error) {
	return e.mutate(ctx, "reset_bid", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		if !st.Auctioning() {
			return emission{}, apperr.New(apperr.CodeNoActiveLot, "no lot is open")
		}
		st.CurrentBid = st.BasePrice
		st.CurrentTeamID = nil
		st.Round++

		return emission{broadcast.EventLotReset, LotReset{
			PlayerID:   *st.CurrentPlayerID,
			CurrentBid: st.CurrentBid,
			MinNext:    st.IncrementRules.MinNext(st.CurrentBid),
		}}, nil
	})
}

// ToggleActive pauses or resumes bidding. The open lot is left as it is.
func (e *Engine) ToggleActive(ctx context.Context, active bool) (storage.AuctionState, error) {
	return e.mutate(ctx, "toggle_active", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		st.IsActive = active
		return emission{broadcast.EventAuctionToggled, AuctionToggled{IsActive: active}}, nil
	})
}

func (e *Engine) SetRegistration(ctx context.Context, open bool) (storage.AuctionState, error) {
	return e.mutate(ctx, "set_registration", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		st.IsRegistrationOpen = open
		return emission{broadcast.EventRegistrationChanged, RegistrationChanged{IsOpen: open}}, nil
	})
}

// UpdateIncrementRules replaces the whole table. Bids already admitted are
// not re-checked.
func (e *Engine) UpdateIncrementRules(ctx context.Context, rules []increment.Rule) (storage.AuctionState, error) {
	table, err := increment.New(rules)
	if err != nil {
		return storage.AuctionState{}, err
	}
	return e.mutate(ctx, "update_rules", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		st.IncrementRules = table
		return emission{broadcast.EventRulesUpdated, RulesUpdated{Rules: table}}, nil
	})
}

func (e *Engine) SetOverlay(ctx context.Context, overlay storage.Overlay) (storage.AuctionState, error) {
	if overlay.DurationMs < 0 {
		return storage.AuctionState{}, apperr.New(apperr.CodeInvalidInput, "duration_ms must not be negative")
	}
	if overlay.Type == "" {
		return storage.AuctionState{}, apperr.New(apperr.CodeInvalidInput, "overlay type is required")
	}
	return e.mutate(ctx, "set_overlay", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		st.Overlay = overlay
		return emission{broadcast.EventOverlayUpdated, OverlayUpdated{Overlay: overlay}}, nil
	})
}

func idle(st *storage.AuctionState) {
	st.CurrentPlayerID = nil
	st.CurrentTeamID = nil
	st.CurrentBid = 0
	st.BasePrice = 0
}
