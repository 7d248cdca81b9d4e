package queue

import (
	"context"
	"testing"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/storage"
	"github.com/kridavyuha/auction-server/internals/storage/storagetest"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func ids(players []storage.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.PlayerID)
	}
	return out
}

func TestEnqueueKeepsInsertionOrder(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		storagetest.SeedPlayer(t, db, id, storage.StatusApproved, 100)
	}
	for _, id := range []string{"c", "a", "b"} {
		p, err := q.Enqueue(ctx, id)
		assert.NoError(t, err)
		check.Equal(t, storage.StatusEligible, p.Status)
	}

	list, err := q.List(ctx)
	assert.NoError(t, err)
	check.Equal(t, []string{"c", "a", "b"}, ids(list))

	head, err := Head(db)
	assert.NoError(t, err)
	check.Equal(t, "c", head.PlayerID)
}

func TestEnqueueRequiresApproved(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())

	storagetest.SeedPlayer(t, db, "p1", storage.StatusPending, 100)
	_, err := q.Enqueue(context.Background(), "p1")
	check.True(t, apperr.HasCode(err, apperr.CodeWrongPlayerStatus))

	_, err = q.Enqueue(context.Background(), "ghost")
	check.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestRemoveReturnsPlayerToApproved(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())
	ctx := context.Background()

	storagetest.SeedPlayer(t, db, "p1", storage.StatusApproved, 100)
	storagetest.SeedPlayer(t, db, "p2", storage.StatusApproved, 100)
	_, err := q.Enqueue(ctx, "p1")
	assert.NoError(t, err)
	_, err = q.Enqueue(ctx, "p2")
	assert.NoError(t, err)

	p, err := q.Remove(ctx, "p1")
	assert.NoError(t, err)
	check.Equal(t, storage.StatusApproved, p.Status)
	check.Nil(t, p.QueuePos)

	list, err := q.List(ctx)
	assert.NoError(t, err)
	check.Equal(t, []string{"p2"}, ids(list))

	_, err = q.Remove(ctx, "p1")
	check.True(t, apperr.HasCode(err, apperr.CodeWrongPlayerStatus))
}

func TestReEnqueueGoesToTail(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		storagetest.SeedPlayer(t, db, id, storage.StatusApproved, 100)
		_, err := q.Enqueue(ctx, id)
		assert.NoError(t, err)
	}
	_, err := q.Remove(ctx, "p1")
	assert.NoError(t, err)
	_, err = q.Enqueue(ctx, "p1")
	assert.NoError(t, err)

	list, err := q.List(ctx)
	assert.NoError(t, err)
	check.Equal(t, []string{"p2", "p1"}, ids(list))
}

func TestHeadOnEmptyQueue(t *testing.T) {
	db := storagetest.NewDB(t)
	_, err := Head(db)
	check.True(t, apperr.HasCode(err, apperr.CodeQueueEmpty))
}

func TestApprove(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())
	ctx := context.Background()

	storagetest.SeedPlayer(t, db, "pending", storage.StatusPending, 100)
	storagetest.SeedPlayer(t, db, "unsold", storage.StatusUnsold, 100)
	storagetest.SeedPlayer(t, db, "sold", storage.StatusSold, 100)

	p, err := q.Approve(ctx, "pending")
	assert.NoError(t, err)
	check.Equal(t, storage.StatusApproved, p.Status)

	p, err = q.Approve(ctx, "unsold")
	assert.NoError(t, err)
	check.Equal(t, storage.StatusApproved, p.Status)

	_, err = q.Approve(ctx, "sold")
	check.True(t, apperr.HasCode(err, apperr.CodeWrongPlayerStatus))
}

func TestDequeueTakesHead(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		storagetest.SeedPlayer(t, db, id, storage.StatusApproved, 100)
		_, err := q.Enqueue(ctx, id)
		assert.NoError(t, err)
	}

	var got storage.Player
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		got, err = Dequeue(tx)
		return err
	})
	assert.NoError(t, err)
	check.Equal(t, "p1", got.PlayerID)
	check.Equal(t, storage.StatusAuctioning, got.Status)
	check.Nil(t, got.QueuePos)

	list, err := q.List(ctx)
	assert.NoError(t, err)
	check.Equal(t, []string{"p2"}, ids(list))
}

func TestInstancesShareQueuePositions(t *testing.T) {
	db := storagetest.NewDB(t)
	a := New(db, zerolog.Nop())
	b := New(db, zerolog.Nop())
	ctx := context.Background()

	players := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	for _, id := range players {
		storagetest.SeedPlayer(t, db, id, storage.StatusApproved, 100)
	}

	errs := make(chan error, len(players))
	for i, id := range players {
		svc := a
		if i%2 == 1 {
			svc = b
		}
		go func(svc *QueueService, id string) {
			_, err := svc.Enqueue(ctx, id)
			errs <- err
		}(svc, id)
	}
	for range players {
		assert.NoError(t, <-errs)
	}

	list, err := a.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, len(players), len(list))
	seen := make(map[int64]bool)
	for i, p := range list {
		assert.NotNil(t, p.QueuePos)
		check.False(t, seen[*p.QueuePos])
		seen[*p.QueuePos] = true
		if i > 0 {
			check.True(t, *p.QueuePos > *list[i-1].QueuePos)
		}
	}
}

func TestQueuePositionsNeverReused(t *testing.T) {
	db := storagetest.NewDB(t)
	q := New(db, zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		storagetest.SeedPlayer(t, db, id, storage.StatusApproved, 100)
	}
	first, err := q.Enqueue(ctx, "p1")
	assert.NoError(t, err)
	_, err = q.Remove(ctx, "p1")
	assert.NoError(t, err)

	second, err := q.Enqueue(ctx, "p2")
	assert.NoError(t, err)
	check.True(t, *second.QueuePos > *first.QueuePos)
}
