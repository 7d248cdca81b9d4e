package auction

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/ledger"
	"github.com/kridavyuha/auction-server/internals/storage"

	"gorm.io/gorm"
)

// PlaceBid admits a bid on the open lot or says why not. Checks run in order:
// paused auction, wrong lot, unknown team, budget, increment. A bid that only
// fails because a concurrent bid got in first is reported as
// CONCURRENT_BID_LOST with the price it now has to beat.
func (e *Engine) PlaceBid(ctx context.Context, playerID, teamID string, amount int64) (storage.Bid, error) {
	switch {
	case playerID == "":
		return storage.Bid{}, apperr.New(apperr.CodeInvalidInput, "player_id is required")
	case teamID == "":
		return storage.Bid{}, apperr.New(apperr.CodeInvalidInput, "team_id is required")
	case amount <= 0:
		return storage.Bid{}, apperr.New(apperr.CodeInvalidInput, "amount must be positive")
	}

	var (
		bid      storage.Bid
		attempts int
	)
	_, err := e.mutate(ctx, "place_bid", func(tx *gorm.DB, st *storage.AuctionState) (emission, error) {
		attempts++

		if !st.IsActive {
			return emission{}, apperr.New(apperr.CodeAuctionInactive, "the auction is paused")
		}
		if !st.Auctioning() || *st.CurrentPlayerID != playerID {
			return emission{}, apperr.WithMetadata(apperr.CodeNoActiveLot,
				fmt.Sprintf("player %s is not the open lot", playerID),
				map[string]string{"player_id": playerID})
		}

		remaining, err := ledger.Remaining(tx, teamID)
		if err != nil {
			return emission{}, err
		}
		if amount > remaining {
			return emission{}, apperr.WithMetadata(apperr.CodeBudgetExceeded,
				fmt.Sprintf("team %s has %d left", teamID, remaining),
				map[string]string{"remaining_budget": strconv.FormatInt(remaining, 10)})
		}

		minNext := st.IncrementRules.MinNext(st.CurrentBid)
		if amount < minNext {
			code := apperr.CodeBidTooLow
			if attempts > 1 {
				code = apperr.CodeConcurrentBidLost
			}
			return emission{}, apperr.WithMetadata(code,
				fmt.Sprintf("bid must be at least %d", minNext),
				priceMetadata(st.CurrentBid, minNext))
		}

		bid = storage.Bid{
			BidID:    uuid.NewString(),
			PlayerID: playerID,
			Round:    st.Round,
			TeamID:   teamID,
			Amount:   amount,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return emission{}, fmt.Errorf("insert bid: %w", err)
		}
		if err := ledger.LogBid(tx, teamID, playerID, amount); err != nil {
			return emission{}, err
		}

		st.CurrentBid = amount
		st.CurrentTeamID = &teamID

		return emission{broadcast.EventBidAccepted, BidAccepted{
			BidID:    bid.BidID,
			PlayerID: playerID,
			TeamID:   teamID,
			Amount:   amount,
			MinNext:  st.IncrementRules.MinNext(amount),
		}}, nil
	})

	if apperr.HasCode(err, apperr.CodeConflict) {
		return storage.Bid{}, e.lostRace(ctx, err)
	}
	if err != nil {
		return storage.Bid{}, err
	}
	return bid, nil
}

// lostRace turns an exhausted retry into CONCURRENT_BID_LOST carrying the
// latest price.
func (e *Engine) lostRace(ctx context.Context, cause error) error {
	st, err := loadState(e.db.WithContext(ctx))
	if err != nil {
		return apperr.Wrap(apperr.CodeConcurrentBidLost, "another bid was accepted first", cause)
	}
	lost := apperr.Wrap(apperr.CodeConcurrentBidLost, "another bid was accepted first", cause)
	lost.Metadata = priceMetadata(st.CurrentBid, st.IncrementRules.MinNext(st.CurrentBid))
	return lost
}

func priceMetadata(current, minNext int64) map[string]string {
	return map[string]string{
		"current_bid": strconv.FormatInt(current, 10),
		"min_next":    strconv.FormatInt(minNext, 10),
	}
}
