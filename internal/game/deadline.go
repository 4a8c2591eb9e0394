package game

import (
	"sync"
	"time"
)

// Scheduler manages at most one countdown per session. Arming records the
// absolute expiry; remaining time is always derived from it, never from a
// ticking counter, so suspensions and missed ticks cannot cause drift.
//
// A firing is delivered through the fire callback as a first-class event; it
// contends for the same per-session serialization as participant commands.
type Scheduler struct {
	mu     sync.Mutex
	fire   func(sessionID uint, expiresAt time.Time)
	timers map[uint]*time.Timer
	clock  func() time.Time
}

// NewScheduler creates a scheduler delivering expirations through fire.
func NewScheduler(fire func(sessionID uint, expiresAt time.Time)) *Scheduler {
	return &Scheduler{
		fire:   fire,
		timers: make(map[uint]*time.Timer),
		clock:  time.Now,
	}
}

// Arm starts a countdown for the session, cancelling any previous one, and
// returns the recorded deadline.
func (s *Scheduler) Arm(sessionID uint, d time.Duration) *DeadlineInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
	}

	expiresAt := s.clock().Add(d)
	s.timers[sessionID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, sessionID)
		s.mu.Unlock()
		s.fire(sessionID, expiresAt)
	})

	return &DeadlineInfo{ExpiresAt: expiresAt, SecondsTotal: int(d.Seconds())}
}

// Cancel stops the session's countdown if one is armed. Tearing down a
// session must cancel its deadline so no timer fires into destroyed state.
func (s *Scheduler) Cancel(sessionID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
}
