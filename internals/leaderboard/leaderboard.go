package leaderboard

import (
	"context"
	"sort"

	"github.com/kridavyuha/auction-server/internals/squad"
	"github.com/kridavyuha/auction-server/internals/storage"

	"gorm.io/gorm"
)

type Leaderboard struct {
	DB *gorm.DB
	ss *squad.SquadService
}

func New(db *gorm.DB) *Leaderboard {
	return &Leaderboard{
		DB: db,
		ss: squad.New(db),
	}
}

type Standing struct {
	Rank            int    `json:"rank"`
	TeamID          string `json:"team_id"`
	TeamName        string `json:"team_name"`
	Players         int    `json:"players"`
	Spent           int64  `json:"spent"`
	RemainingBudget int64  `json:"remaining_budget"`
}

// Standings ranks teams by squad size, then by money spent. Teams that tie on
// both share a rank.
func (l *Leaderboard) Standings(ctx context.Context, sport storage.Sport) ([]Standing, error) {
	ids, err := l.ss.Teams(ctx, sport)
	if err != nil {
		return nil, err
	}

	standings := make([]Standing, 0, len(ids))
	for _, id := range ids {
		sq, err := l.ss.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		standings = append(standings, Standing{
			TeamID:          id,
			TeamName:        sq.Team.Name,
			Players:         len(sq.Players),
			Spent:           sq.Spent,
			RemainingBudget: sq.Team.RemainingBudget,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Players != standings[j].Players {
			return standings[i].Players > standings[j].Players
		}
		return standings[i].Spent > standings[j].Spent
	})

	for i := range standings {
		if i > 0 && standings[i].Players == standings[i-1].Players && standings[i].Spent == standings[i-1].Spent {
			standings[i].Rank = standings[i-1].Rank
			continue
		}
		standings[i].Rank = i + 1
	}
	return standings, nil
}
