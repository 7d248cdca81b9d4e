// Package storage owns the gorm models and the database connection.
package storage

import (
	"errors"
	"fmt"

	"github.com/kridavyuha/auction-server/internals/increment"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres. Query logging is left at warnings; the
// application logger covers everything else.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the five collections plus the queue counter and seeds the
// singleton rows if they do not exist yet.
func Migrate(db *gorm.DB, rules increment.Table) error {
	err := db.AutoMigrate(&Player{}, &Team{}, &Bid{}, &BidLog{}, &AuctionState{}, &QueueCounter{})
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if len(rules) == 0 {
		rules = increment.Default()
	}

	var state AuctionState
	err = db.First(&state, SingletonID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		state = AuctionState{
			ID:             SingletonID,
			IsActive:       true,
			IncrementRules: rules,
			Overlay:        Overlay{DurationMs: 3000, Type: "confetti"},
		}
		if err := db.Create(&state).Error; err != nil {
			return fmt.Errorf("seed auction state: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load auction state: %w", err)
	}

	var counter QueueCounter
	err = db.First(&counter, SingletonID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// continue after any positions already handed out
		var tail int64
		err := db.Model(&Player{}).Select("COALESCE(MAX(queue_pos), 0)").Scan(&tail).Error
		if err != nil {
			return fmt.Errorf("read queue tail: %w", err)
		}
		counter = QueueCounter{ID: SingletonID, LastPos: tail}
		if err := db.Create(&counter).Error; err != nil {
			return fmt.Errorf("seed queue counter: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load queue counter: %w", err)
	}
	return nil
}
