package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kridavyuha/auction-server/internals/apperr"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Monitor pings the database and keeps a health flag. While the flag is down
// the engine refuses new bids.
type Monitor struct {
	db       *gorm.DB
	interval time.Duration
	logger   zerolog.Logger
	down     atomic.Bool
}

func NewMonitor(db *gorm.DB, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{
		db:       db,
		interval: interval,
		logger:   logger.With().Str("component", "storage-monitor").Logger(),
	}
}

// Healthy reports the result of the last ping. A nil monitor is always healthy.
func (m *Monitor) Healthy() bool {
	return m == nil || !m.down.Load()
}

// Check returns STORAGE_UNAVAILABLE while the database is unreachable.
func (m *Monitor) Check() error {
	if m.Healthy() {
		return nil
	}
	return apperr.New(apperr.CodeStorageUnavailable, "storage is unavailable, bids are suspended")
}

// MarkDown lets a caller that saw a connection error close the gate early.
func (m *Monitor) MarkDown(err error) {
	if m == nil {
		return
	}
	if !m.down.Swap(true) {
		m.logger.Error().Err(err).Msg("storage marked unavailable")
	}
}

func (m *Monitor) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Run pings until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := m.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.MarkDown(err)
			continue
		}
		if m.down.Swap(false) {
			m.logger.Info().Msg("storage reachable again, bids resumed")
		}
	}
}
