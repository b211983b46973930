package controller

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler is backed by time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler runs callbacks only when virtual time is advanced.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward and runs every due callback in deadline order.
// Callbacks run on the caller's goroutine without the scheduler lock held.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	now := s.now
	var due []*manualTimer
	rest := s.timers[:0]
	for _, t := range s.timers {
		switch {
		case t.stopped:
		case t.at <= now:
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	s.timers = rest
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
