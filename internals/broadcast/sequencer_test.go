package broadcast

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestExpiredTimerOfClosedGapIsIgnored(t *testing.T) {
	var (
		delivered []int64
		fired     []uint64
	)
	s := newSequencer(time.Hour,
		func(e Event) { delivered = append(delivered, e.Seq) },
		func(gen uint64) { fired = append(fired, gen) })
	defer s.stop()
	s.prime(0)

	s.offer(Event{Seq: 2})
	first := s.gen
	s.offer(Event{Seq: 1})
	check.Equal(t, []int64{1, 2}, delivered)

	// a new gap opens before the first timer's callback gets the lock
	s.offer(Event{Seq: 4})
	assert.True(t, s.gen != first)

	check.False(t, s.expire(first))
	check.Equal(t, []int64{1, 2}, delivered)
	check.Equal(t, 1, len(s.pending))

	check.True(t, s.expire(s.gen))
	check.Equal(t, []int64{1, 2, 4}, delivered)
	check.Equal(t, 0, len(fired))
}
