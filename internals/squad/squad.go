// Package squad reads what each team has bought so far.
package squad

import (
	"context"
	"errors"
	"fmt"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/storage"

	"gorm.io/gorm"
)

type SquadService struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *SquadService {
	return &SquadService{DB: db}
}

type Squad struct {
	Team    storage.Team     `json:"team"`
	Players []storage.Player `json:"players"`
	Spent   int64            `json:"spent"`
}

// Get returns the team with its sold players, most expensive first.
func (s *SquadService) Get(ctx context.Context, teamID string) (Squad, error) {
	if teamID == "" {
		return Squad{}, apperr.New(apperr.CodeInvalidInput, "team_id is required")
	}

	var sq Squad
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("team_id = ?", teamID).First(&sq.Team).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.CodeNotFound, "team %s not found", teamID)
		}
		if err != nil {
			return fmt.Errorf("load team %s: %w", teamID, err)
		}

		sq.Players = make([]storage.Player, 0)
		err = tx.Where("team_id = ? AND status = ?", teamID, storage.StatusSold).
			Order("sold_price DESC").
			Order("player_id").
			Find(&sq.Players).Error
		if err != nil {
			return fmt.Errorf("load squad of %s: %w", teamID, err)
		}
		return nil
	})
	if err != nil {
		return Squad{}, err
	}

	for _, p := range sq.Players {
		if p.SoldPrice != nil {
			sq.Spent += *p.SoldPrice
		}
	}
	return sq, nil
}

// Teams lists team ids, optionally for one sport only.
func (s *SquadService) Teams(ctx context.Context, sport storage.Sport) ([]string, error) {
	q := s.DB.WithContext(ctx).Model(&storage.Team{})
	if sport != "" {
		q = q.Where("sport = ?", sport)
	}
	ids := make([]string, 0)
	if err := q.Order("team_id").Pluck("team_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return ids, nil
}
