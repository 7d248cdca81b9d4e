package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/storage"
	"github.com/kridavyuha/auction-server/internals/storage/storagetest"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNilMonitorIsHealthy(t *testing.T) {
	var m *storage.Monitor
	check.True(t, m.Healthy())
	check.NoError(t, m.Check())
	m.MarkDown(errors.New("ignored"))
}

func TestMonitorRecoversAfterPing(t *testing.T) {
	db := storagetest.NewDB(t)
	m := storage.NewMonitor(db, 10*time.Millisecond, zerolog.Nop())

	m.MarkDown(errors.New("connection reset"))
	check.False(t, m.Healthy())
	check.Equal(t, apperr.CodeStorageUnavailable, apperr.CodeOf(m.Check()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, m.Healthy)
	cancel()
	assert.NoError(t, <-done)
}

func TestMonitorClosesGateWhenDatabaseGoes(t *testing.T) {
	db := storagetest.NewDB(t)
	m := storage.NewMonitor(db, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	assert.NoError(t, sqlDB.Close())

	waitFor(t, func() bool { return !m.Healthy() })
	check.Error(t, m.Check())
}
