package leaderboard

import (
	"context"
	"testing"

	"github.com/kridavyuha/auction-server/internals/storage"
	"github.com/kridavyuha/auction-server/internals/storage/storagetest"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestStandings(t *testing.T) {
	db := storagetest.NewDB(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		storagetest.SeedTeam(t, db, id, 1000)
	}
	sell := func(playerID, teamID string, price int64) {
		storagetest.SeedPlayer(t, db, playerID, storage.StatusApproved, 10)
		assert.NoError(t, db.Model(&storage.Player{}).Where("player_id = ?", playerID).Updates(map[string]interface{}{
			"status": storage.StatusSold, "team_id": teamID, "sold_price": price,
		}).Error)
	}
	sell("p1", "b", 100)
	sell("p2", "b", 100)
	sell("p3", "c", 500)
	sell("p4", "d", 100)
	sell("p5", "d", 100)

	standings, err := New(db).Standings(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, 4, len(standings))

	check.Equal(t, "b", standings[0].TeamID)
	check.Equal(t, 1, standings[0].Rank)
	check.Equal(t, "d", standings[1].TeamID)
	check.Equal(t, 1, standings[1].Rank)
	check.Equal(t, "c", standings[2].TeamID)
	check.Equal(t, 3, standings[2].Rank)
	check.Equal(t, "a", standings[3].TeamID)
	check.Equal(t, 4, standings[3].Rank)
	check.Equal(t, int64(200), standings[0].Spent)
}

func TestStandingsBySport(t *testing.T) {
	db := storagetest.NewDB(t)
	storagetest.SeedTeam(t, db, "cricket-team", 1000)
	assert.NoError(t, db.Create(&storage.Team{
		TeamID: "football-team", Name: "FC", Sport: storage.SportFootball, Budget: 1000, RemainingBudget: 1000,
	}).Error)

	standings, err := New(db).Standings(context.Background(), storage.SportFootball)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(standings))
	check.Equal(t, "football-team", standings[0].TeamID)
}
