// Package queue keeps the FIFO of players that are eligible to go under the
// hammer next.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/storage"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// QueueService edits the queue. Positions come from the QueueCounter row, so
// instances sharing a database still agree on FIFO order.
type QueueService struct {
	DB     *gorm.DB
	logger zerolog.Logger
}

func New(db *gorm.DB, logger zerolog.Logger) *QueueService {
	return &QueueService{
		DB:     db,
		logger: logger.With().Str("component", "queue").Logger(),
	}
}

// List returns the eligible players in queue order.
func (q *QueueService) List(ctx context.Context) ([]storage.Player, error) {
	players := make([]storage.Player, 0)
	err := ordered(q.DB.WithContext(ctx)).Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return players, nil
}

// Enqueue appends an approved player to the tail.
func (q *QueueService) Enqueue(ctx context.Context, playerID string) (storage.Player, error) {
	var player storage.Player
	err := q.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := nextPos(tx)
		if err != nil {
			return err
		}

		player, err = Transition(tx, playerID,
			[]storage.PlayerStatus{storage.StatusApproved}, storage.StatusEligible,
			map[string]interface{}{"queue_pos": pos})
		return err
	})
	if err != nil {
		return storage.Player{}, err
	}

	q.logger.Info().Str("player_id", playerID).Int64("queue_pos", *player.QueuePos).Msg("player enqueued")
	return player, nil
}

// Remove takes an eligible player out of the queue and back to approved.
func (q *QueueService) Remove(ctx context.Context, playerID string) (storage.Player, error) {
	var player storage.Player
	err := q.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		player, err = Transition(tx, playerID,
			[]storage.PlayerStatus{storage.StatusEligible}, storage.StatusApproved,
			map[string]interface{}{"queue_pos": nil})
		return err
	})
	if err != nil {
		return storage.Player{}, err
	}

	q.logger.Info().Str("player_id", playerID).Msg("player removed from queue")
	return player, nil
}

// Approve moves a pending player, or an unsold one being re-offered, into the
// approved pool.
func (q *QueueService) Approve(ctx context.Context, playerID string) (storage.Player, error) {
	var player storage.Player
	err := q.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		player, err = Transition(tx, playerID,
			[]storage.PlayerStatus{storage.StatusPending, storage.StatusUnsold}, storage.StatusApproved, nil)
		return err
	})
	if err != nil {
		return storage.Player{}, err
	}

	q.logger.Info().Str("player_id", playerID).Msg("player approved")
	return player, nil
}

// nextPos takes the next position from the counter. The row stays locked
// until tx ends; a failed enqueue rolls the increment back with it.
func nextPos(tx *gorm.DB) (int64, error) {
	res := tx.Model(&storage.QueueCounter{}).
		Where("id = ?", storage.SingletonID).
		UpdateColumn("last_pos", gorm.Expr("last_pos + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("advance queue counter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, errors.New("queue counter row is missing")
	}

	var counter storage.QueueCounter
	if err := tx.First(&counter, storage.SingletonID).Error; err != nil {
		return 0, fmt.Errorf("read queue counter: %w", err)
	}
	return counter.LastPos, nil
}

// Head returns the first eligible player without changing it.
func Head(tx *gorm.DB) (storage.Player, error) {
	var player storage.Player
	err := ordered(tx).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return player, apperr.New(apperr.CodeQueueEmpty, "no eligible player is queued")
	}
	if err != nil {
		return player, fmt.Errorf("read queue head: %w", err)
	}
	return player, nil
}

// Dequeue takes the head of the queue and puts it under the hammer inside the
// caller's transaction.
func Dequeue(tx *gorm.DB) (storage.Player, error) {
	head, err := Head(tx)
	if err != nil {
		return head, err
	}
	return Transition(tx, head.PlayerID,
		[]storage.PlayerStatus{storage.StatusEligible}, storage.StatusAuctioning,
		map[string]interface{}{"queue_pos": nil})
}

// Transition moves a player from one of the allowed statuses to `to`, setting
// any extra columns. The status check is part of the UPDATE so a concurrent
// transition on the same player cannot both succeed.
func Transition(tx *gorm.DB, playerID string, from []storage.PlayerStatus, to storage.PlayerStatus, extra map[string]interface{}) (storage.Player, error) {
	if playerID == "" {
		return storage.Player{}, apperr.New(apperr.CodeInvalidInput, "player_id is required")
	}

	fields := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		fields[k] = v
	}

	res := tx.Model(&storage.Player{}).
		Where("player_id = ? AND status IN ?", playerID, from).
		Updates(fields)
	if res.Error != nil {
		return storage.Player{}, fmt.Errorf("update player %s: %w", playerID, res.Error)
	}

	var player storage.Player
	err := tx.Where("player_id = ?", playerID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return player, apperr.Newf(apperr.CodeNotFound, "player %s not found", playerID)
	}
	if err != nil {
		return player, fmt.Errorf("load player %s: %w", playerID, err)
	}

	if res.RowsAffected == 0 {
		return player, apperr.WithMetadata(apperr.CodeWrongPlayerStatus,
			fmt.Sprintf("player %s is %s, expected one of %v", playerID, player.Status, from),
			map[string]string{"player_id": playerID, "status": string(player.Status)})
	}
	return player, nil
}

func ordered(tx *gorm.DB) *gorm.DB {
	return tx.Model(&storage.Player{}).
		Where("status = ?", storage.StatusEligible).
		Order("queue_pos ASC").
		Order("player_id ASC")
}
