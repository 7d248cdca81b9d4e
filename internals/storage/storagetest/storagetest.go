// Package storagetest provides an in-memory SQLite database with the auction
// schema for package tests.
package storagetest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kridavyuha/auction-server/internals/increment"
	"github.com/kridavyuha/auction-server/internals/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a fresh database per call. A single connection serialises
// transactions the way row locks would on postgres.
func NewDB(t testing.TB, rules ...increment.Rule) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	var table increment.Table
	if len(rules) > 0 {
		table, err = increment.New(rules)
		if err != nil {
			t.Fatalf("rules: %v", err)
		}
	}
	if err := storage.Migrate(db, table); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func SeedTeam(t testing.TB, db *gorm.DB, id string, budget int64) storage.Team {
	t.Helper()
	team := storage.Team{
		TeamID:          id,
		Name:            "Team " + id,
		Sport:           storage.SportCricket,
		Budget:          budget,
		RemainingBudget: budget,
	}
	if err := db.Create(&team).Error; err != nil {
		t.Fatalf("seed team %s: %v", id, err)
	}
	return team
}

func SeedPlayer(t testing.TB, db *gorm.DB, id string, status storage.PlayerStatus, basePrice int64) storage.Player {
	t.Helper()
	player := storage.Player{
		PlayerID:  id,
		Name:      "Player " + id,
		Sport:     storage.SportCricket,
		Status:    status,
		BasePrice: basePrice,
		Stats: storage.PlayerStats{
			Kind:    storage.SportCricket,
			Cricket: &storage.CricketStats{Role: "batter", Matches: 10, Runs: 320},
		},
	}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("seed player %s: %v", id, err)
	}
	return player
}

func LoadPlayer(t testing.TB, db *gorm.DB, id string) storage.Player {
	t.Helper()
	var p storage.Player
	if err := db.First(&p, "player_id = ?", id).Error; err != nil {
		t.Fatalf("load player %s: %v", id, err)
	}
	return p
}

func LoadTeam(t testing.TB, db *gorm.DB, id string) storage.Team {
	t.Helper()
	var team storage.Team
	if err := db.First(&team, "team_id = ?", id).Error; err != nil {
		t.Fatalf("load team %s: %v", id, err)
	}
	return team
}

func LoadState(t testing.TB, db *gorm.DB) storage.AuctionState {
	t.Helper()
	var st storage.AuctionState
	if err := db.First(&st, storage.SingletonID).Error; err != nil {
		t.Fatalf("load state: %v", err)
	}
	return st
}
