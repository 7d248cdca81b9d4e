// Package auction holds the lot state machine and bid admission. Every write
// goes through Engine so that the AuctionState row is only ever changed under
// its optimistic version.
package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/storage"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gorm.io/gorm"
)

const (
	DefaultMaxRetries = 3
	retryBase         = 5 * time.Millisecond
)

// errVersionMoved means another writer committed between our read and our
// write. It never leaves the package.
var errVersionMoved = errors.New("auction state version moved")

// Publisher receives events after the change they describe is committed.
type Publisher interface {
	Publish(ctx context.Context, e broadcast.Event)
}

type Options struct {
	// MaxRetries is how many times a write that lost the version race is
	// re-run against fresh state before the caller sees a conflict.
	MaxRetries int
}

type Engine struct {
	db         *gorm.DB
	pub        Publisher
	monitor    *storage.Monitor
	logger     zerolog.Logger
	maxRetries int
	// commit writes the state over the version read; tests swap it to lose
	// the race on purpose.
	commit     func(tx *gorm.DB, st *storage.AuctionState, read int64) error
}

func New(db *gorm.DB, pub Publisher, monitor *storage.Monitor, logger zerolog.Logger, opts Options) *Engine {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Engine{
		db:         db,
		pub:        pub,
		monitor:    monitor,
		logger:     logger.With().Str("component", "auction").Logger(),
		maxRetries: opts.MaxRetries,
		commit:     commitState,
	}
}

// emission is the event a mutation wants published once it commits.
type emission struct {
	typ     broadcast.EventType
	payload interface{}
}

// mutation reads and edits st inside tx. It must not write the AuctionState
// row itself.
type mutation func(tx *gorm.DB, st *storage.AuctionState) (emission, error)

// mutate runs fn in a transaction and commits the edited state only if the
// version it read is still current, re-running fn on a fresh read when it is
// not. The returned state is the committed one.
func (e *Engine) mutate(ctx context.Context, op string, fn mutation) (storage.AuctionState, error) {
	if err := e.monitor.Check(); err != nil {
		return storage.AuctionState{}, err
	}

	for attempt := 0; ; attempt++ {
		var (
			committed storage.AuctionState
			out       emission
		)
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			st, err := loadState(tx)
			if err != nil {
				return err
			}
			read := st.Version

			out, err = fn(tx, &st)
			if err != nil {
				return err
			}

			st.Version = read + 1
			if err := e.commit(tx, &st, read); err != nil {
				return err
			}
			committed = st
			return nil
		})

		switch {
		case err == nil:
			e.emit(ctx, committed.Version, out)
			e.logger.Info().
				Str("op", op).
				Int64("version", committed.Version).
				Int("attempt", attempt).
				Msg("auction state committed")
			return committed, nil

		case errors.Is(err, errVersionMoved):
			if attempt >= e.maxRetries {
				e.logger.Warn().Str("op", op).Int("attempts", attempt+1).Msg("gave up after version conflicts")
				return storage.AuctionState{}, apperr.Wrap(apperr.CodeConflict,
					"auction state changed concurrently, refetch and retry", err)
			}
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return storage.AuctionState{}, err
			}

		default:
			var appErr *apperr.Error
			if !errors.As(err, &appErr) {
				e.checkStorage(ctx, err)
			}
			return storage.AuctionState{}, err
		}
	}
}

// checkStorage closes the bid gate when an unexpected database error turns
// out to be a lost connection.
func (e *Engine) checkStorage(ctx context.Context, cause error) {
	if e.monitor == nil || ctx.Err() != nil {
		return
	}
	if err := e.monitor.Ping(ctx); err != nil {
		e.monitor.MarkDown(fmt.Errorf("%v (ping: %w)", cause, err))
	}
}

func (e *Engine) emit(ctx context.Context, seq int64, out emission) {
	if e.pub == nil || out.typ == "" {
		return
	}
	ev, err := broadcast.NewEvent(out.typ, seq, out.payload)
	if err != nil {
		e.logger.Error().Err(err).Str("type", string(out.typ)).Msg("event not published")
		return
	}
	e.pub.Publish(context.WithoutCancel(ctx), ev)
}

func loadState(tx *gorm.DB) (storage.AuctionState, error) {
	var st storage.AuctionState
	if err := tx.First(&st, storage.SingletonID).Error; err != nil {
		return st, fmt.Errorf("load auction state: %w", err)
	}
	return st, nil
}

// commitState writes every column of st, but only over the version we read.
func commitState(tx *gorm.DB, st *storage.AuctionState, read int64) error {
	res := tx.Model(st).Where("version = ?", read).Select("*").Updates(st)
	if res.Error != nil {
		return fmt.Errorf("write auction state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errVersionMoved
	}
	return nil
}

func backoff(attempt int) time.Duration {
	d := retryBase << attempt
	return d + time.Duration(rand.Int63n(int64(retryBase)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
