// Package ledger keeps each team's cached remaining budget in step with the
// BidLog audit trail.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/storage"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settlementReason = "lot settlement"

type LedgerService struct {
	DB     *gorm.DB
	logger zerolog.Logger
}

func New(db *gorm.DB, logger zerolog.Logger) *LedgerService {
	return &LedgerService{
		DB:     db,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Team loads a team by id.
func (l *LedgerService) Team(ctx context.Context, teamID string) (storage.Team, error) {
	return loadTeam(l.DB.WithContext(ctx), teamID, false)
}

// Remaining returns the cached remaining budget inside the caller's
// transaction.
func Remaining(tx *gorm.DB, teamID string) (int64, error) {
	team, err := loadTeam(tx, teamID, false)
	if err != nil {
		return 0, err
	}
	return team.RemainingBudget, nil
}

func (l *LedgerService) Credit(ctx context.Context, teamID string, amount int64, reason string) (storage.Team, error) {
	return l.Adjust(ctx, teamID, ActionCredit, amount, reason)
}

func (l *LedgerService) Debit(ctx context.Context, teamID string, amount int64, reason string) (storage.Team, error) {
	return l.Adjust(ctx, teamID, ActionDebit, amount, reason)
}

// Adjust applies a manual credit or debit. The log row and the cached budget
// are written in one transaction.
func (l *LedgerService) Adjust(ctx context.Context, teamID string, action Action, amount int64, reason string) (storage.Team, error) {
	if amount <= 0 {
		return storage.Team{}, apperr.New(apperr.CodeInvalidInput, "amount must be positive")
	}

	var team storage.Team
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadTeam(tx, teamID, true)
		if err != nil {
			return err
		}

		var logType storage.LogType
		switch action {
		case ActionCredit:
			logType = storage.LogCredit
			err = applyDelta(tx, teamID, amount)
		case ActionDebit:
			logType = storage.LogDebit
			err = applyDelta(tx, teamID, -amount)
		default:
			return apperr.Newf(apperr.CodeInvalidInput, "unknown wallet action %q", action)
		}
		if err != nil {
			return err
		}

		if err := appendLog(tx, storage.BidLog{
			TeamID: teamID,
			Amount: amount,
			Type:   logType,
			Reason: reason,
			Epoch:  current.LedgerEpoch,
		}); err != nil {
			return err
		}

		team, err = loadTeam(tx, teamID, false)
		return err
	})
	if err != nil {
		return storage.Team{}, err
	}

	l.logger.Info().
		Str("team_id", teamID).
		Str("action", string(action)).
		Int64("amount", amount).
		Int64("remaining_budget", team.RemainingBudget).
		Msg("wallet adjusted")
	return team, nil
}

// Settle debits the winning team for a sold lot inside the caller's
// transaction and records the settlement in the BidLog.
func Settle(tx *gorm.DB, teamID, playerID string, price int64) error {
	team, err := loadTeam(tx, teamID, true)
	if err != nil {
		return err
	}
	if err := applyDelta(tx, teamID, -price); err != nil {
		return err
	}
	return appendLog(tx, storage.BidLog{
		PlayerID: &playerID,
		TeamID:   teamID,
		Amount:   price,
		Type:     storage.LogBid,
		Reason:   settlementReason,
		Epoch:    team.LedgerEpoch,
	})
}

// LogBid records an admitted bid in the audit trail.
func LogBid(tx *gorm.DB, teamID, playerID string, amount int64) error {
	return appendLog(tx, storage.BidLog{
		PlayerID: &playerID,
		TeamID:   teamID,
		Amount:   amount,
		Type:     storage.LogBid,
		Reason:   "bid",
	})
}

// ResetWallet restores the full budget and returns every player the team
// bought to the approved pool. Manual adjustments made before the reset no
// longer count towards the budget.
func (l *LedgerService) ResetWallet(ctx context.Context, teamID string) (ResetResult, error) {
	var result ResetResult
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID, true)
		if err != nil {
			return err
		}

		var sold []storage.Player
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("team_id = ? AND status = ?", teamID, storage.StatusSold).
			Order("player_id").
			Find(&sold).Error
		if err != nil {
			return fmt.Errorf("load sold players: %w", err)
		}

		for i := range sold {
			p := &sold[i]
			var price int64
			if p.SoldPrice != nil {
				price = *p.SoldPrice
			}
			err := tx.Model(&storage.Player{}).
				Where("player_id = ?", p.PlayerID).
				Updates(map[string]interface{}{
					"status":     storage.StatusApproved,
					"team_id":    nil,
					"sold_price": nil,
					"updated_at": time.Now(),
				}).Error
			if err != nil {
				return fmt.Errorf("revert player %s: %w", p.PlayerID, err)
			}

			playerID := p.PlayerID
			if err := appendLog(tx, storage.BidLog{
				PlayerID: &playerID,
				TeamID:   teamID,
				Amount:   price,
				Type:     storage.LogCredit,
				Reason:   "wallet reset: player returned to pool",
				Epoch:    team.LedgerEpoch,
			}); err != nil {
				return err
			}

			p.Status = storage.StatusApproved
			p.TeamID = nil
			p.SoldPrice = nil
		}

		err = tx.Model(&storage.Team{}).
			Where("team_id = ?", teamID).
			Updates(map[string]interface{}{
				"remaining_budget": team.Budget,
				"ledger_epoch":     team.LedgerEpoch + 1,
				"updated_at":       time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("reset team %s: %w", teamID, err)
		}

		result.Team, err = loadTeam(tx, teamID, false)
		result.Reverted = sold
		return err
	})
	if err != nil {
		return ResetResult{}, err
	}

	l.logger.Info().
		Str("team_id", teamID).
		Int("reverted_players", len(result.Reverted)).
		Int64("remaining_budget", result.Team.RemainingBudget).
		Msg("wallet reset")
	return result, nil
}

// Reconcile recomputes the remaining budget from sold players and the
// current-epoch CREDIT/DEBIT rows without changing anything.
func (l *LedgerService) Reconcile(ctx context.Context, teamID string) (Reconciliation, error) {
	return reconcile(l.DB.WithContext(ctx), teamID)
}

// Repair overwrites the cached remaining budget with the recomputed value.
func (l *LedgerService) Repair(ctx context.Context, teamID string) (Reconciliation, error) {
	var rec Reconciliation
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadTeam(tx, teamID, true); err != nil {
			return err
		}
		var err error
		rec, err = reconcile(tx, teamID)
		if err != nil {
			return err
		}
		if rec.Consistent {
			return nil
		}
		if rec.Expected < 0 {
			return apperr.WithMetadata(apperr.CodeInsufficientFunds, "recomputed budget is negative",
				map[string]string{"expected": fmt.Sprint(rec.Expected)})
		}
		err = tx.Model(&storage.Team{}).
			Where("team_id = ?", teamID).
			Updates(map[string]interface{}{"remaining_budget": rec.Expected, "updated_at": time.Now()}).Error
		if err != nil {
			return fmt.Errorf("repair team %s: %w", teamID, err)
		}
		l.logger.Warn().
			Str("team_id", teamID).
			Int64("cached", rec.Cached).
			Int64("expected", rec.Expected).
			Msg("remaining budget repaired")
		rec.Cached = rec.Expected
		rec.Consistent = true
		return nil
	})
	return rec, err
}

func reconcile(db *gorm.DB, teamID string) (Reconciliation, error) {
	team, err := loadTeam(db, teamID, false)
	if err != nil {
		return Reconciliation{}, err
	}

	rec := Reconciliation{TeamID: teamID, Budget: team.Budget, Cached: team.RemainingBudget}

	err = db.Model(&storage.Player{}).
		Select("COALESCE(SUM(sold_price), 0)").
		Where("team_id = ? AND status = ?", teamID, storage.StatusSold).
		Scan(&rec.SoldTotal).Error
	if err != nil {
		return rec, fmt.Errorf("sum sold players: %w", err)
	}

	sumLogs := func(t storage.LogType, dst *int64) error {
		return db.Model(&storage.BidLog{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("team_id = ? AND type = ? AND epoch = ?", teamID, t, team.LedgerEpoch).
			Scan(dst).Error
	}
	if err := sumLogs(storage.LogCredit, &rec.Credits); err != nil {
		return rec, fmt.Errorf("sum credits: %w", err)
	}
	if err := sumLogs(storage.LogDebit, &rec.Debits); err != nil {
		return rec, fmt.Errorf("sum debits: %w", err)
	}

	rec.Expected = rec.Budget - rec.SoldTotal + rec.Credits - rec.Debits
	rec.Consistent = rec.Expected == rec.Cached
	return rec, nil
}

func loadTeam(tx *gorm.DB, teamID string, lock bool) (storage.Team, error) {
	if teamID == "" {
		return storage.Team{}, apperr.New(apperr.CodeInvalidInput, "team_id is required")
	}
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var team storage.Team
	err := q.Where("team_id = ?", teamID).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return team, apperr.Newf(apperr.CodeNotFound, "team %s not found", teamID)
	}
	if err != nil {
		return team, fmt.Errorf("load team %s: %w", teamID, err)
	}
	return team, nil
}

// applyDelta moves the cached budget; a negative delta only applies if the
// budget stays non-negative.
func applyDelta(tx *gorm.DB, teamID string, delta int64) error {
	q := tx.Model(&storage.Team{}).Where("team_id = ?", teamID)
	if delta < 0 {
		q = q.Where("remaining_budget >= ?", -delta)
	}
	res := q.Updates(map[string]interface{}{
		"remaining_budget": gorm.Expr("remaining_budget + ?", delta),
		"updated_at":       time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("update budget of %s: %w", teamID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.WithMetadata(apperr.CodeInsufficientFunds,
			fmt.Sprintf("team %s cannot cover %d", teamID, -delta),
			map[string]string{"team_id": teamID, "amount": fmt.Sprint(-delta)})
	}
	return nil
}

func appendLog(tx *gorm.DB, entry storage.BidLog) error {
	entry.LogID = uuid.NewString()
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append bid log: %w", err)
	}
	return nil
}
