package broadcast

import (
	"sort"
	"time"
)

// sequencer releases events of one room in seq order. Writers publish after
// their commit returns, so seq 7 can reach the hub before seq 6; the later
// one is parked until the gap closes or gapTimeout expires, at which point
// the gap is skipped. Not safe for concurrent use; the hub lock guards it.
type sequencer struct {
	next       int64
	pending    map[int64]Event
	gapTimeout time.Duration
	timer      *time.Timer
	// gen identifies the armed timer; a callback that fired for an older
	// timer is ignored by expire.
	gen        uint64
	deliver    func(Event)
	onGap      func(gen uint64) // runs on the timer goroutine; must take the hub lock itself
}

func newSequencer(gapTimeout time.Duration, deliver func(Event), onGap func(gen uint64)) *sequencer {
	return &sequencer{
		pending:    make(map[int64]Event),
		gapTimeout: gapTimeout,
		deliver:    deliver,
		onGap:      onGap,
	}
}

// prime sets the last seq already reflected in storage so the first live
// event is expected at version+1.
func (s *sequencer) prime(version int64) {
	if version+1 > s.next {
		s.next = version + 1
	}
}

// offer returns false if the event was stale or a duplicate.
func (s *sequencer) offer(e Event) bool {
	if e.Seq <= 0 {
		s.deliver(e)
		return true
	}
	if s.next == 0 {
		s.next = e.Seq
	}
	if e.Seq < s.next {
		return false
	}
	if _, dup := s.pending[e.Seq]; dup {
		return false
	}
	if e.Seq > s.next {
		s.pending[e.Seq] = e
		if s.timer == nil && s.onGap != nil {
			s.gen++
			gen := s.gen
			s.timer = time.AfterFunc(s.gapTimeout, func() { s.onGap(gen) })
		}
		return true
	}

	s.deliver(e)
	s.next++
	s.drain()
	return true
}

// expire skips the gap if gen is still the armed timer. It reports whether
// anything was skipped.
func (s *sequencer) expire(gen uint64) bool {
	if s.timer == nil || gen != s.gen {
		return false
	}
	s.skipGap()
	return true
}

// skipGap gives up on missing seqs and releases everything parked.
func (s *sequencer) skipGap() {
	s.timer = nil
	for len(s.pending) > 0 {
		seqs := make([]int64, 0, len(s.pending))
		for seq := range s.pending {
			seqs = append(seqs, seq)
		}
		sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
		s.next = seqs[0]
		s.drain()
	}
}

func (s *sequencer) drain() {
	for {
		e, ok := s.pending[s.next]
		if !ok {
			break
		}
		delete(s.pending, s.next)
		s.deliver(e)
		s.next++
	}
	if len(s.pending) == 0 && s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *sequencer) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
