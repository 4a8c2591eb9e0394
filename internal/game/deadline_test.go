package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineRemaining(t *testing.T) {
	now := time.Now()
	d := &DeadlineInfo{ExpiresAt: now.Add(90 * time.Second), SecondsTotal: 120}

	assert.Equal(t, 90, d.Remaining(now))
	assert.Equal(t, 30, d.Remaining(now.Add(60*time.Second)))
	assert.Equal(t, 0, d.Remaining(now.Add(2*time.Minute)), "remaining clamps at zero")

	var nilDeadline *DeadlineInfo
	assert.Equal(t, 0, nilDeadline.Remaining(now))
}

func TestSchedulerArmRecordsAbsoluteExpiry(t *testing.T) {
	s := NewScheduler(func(uint, time.Time) {})
	defer s.Cancel(1)

	before := time.Now()
	d := s.Arm(1, time.Minute)
	after := time.Now()

	assert.Equal(t, 60, d.SecondsTotal)
	assert.False(t, d.ExpiresAt.Before(before.Add(time.Minute)))
	assert.False(t, d.ExpiresAt.After(after.Add(time.Minute)))
}

func TestSchedulerFires(t *testing.T) {
	type firing struct {
		sessionID uint
		expiresAt time.Time
	}
	fired := make(chan firing, 1)
	s := NewScheduler(func(id uint, at time.Time) {
		fired <- firing{id, at}
	})

	d := s.Arm(7, 10*time.Millisecond)

	select {
	case f := <-fired:
		assert.Equal(t, uint(7), f.sessionID)
		assert.True(t, f.expiresAt.Equal(d.ExpiresAt), "firing carries the armed expiry")
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	var mu sync.Mutex
	count := 0
	s := NewScheduler(func(uint, time.Time) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	s.Arm(3, 20*time.Millisecond)
	s.Cancel(3)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestSchedulerRearmReplacesCountdown(t *testing.T) {
	fired := make(chan time.Time, 2)
	s := NewScheduler(func(_ uint, at time.Time) {
		fired <- at
	})

	s.Arm(5, time.Hour)
	d := s.Arm(5, 10*time.Millisecond)

	select {
	case at := <-fired:
		require.True(t, at.Equal(d.ExpiresAt), "only the replacement countdown fires")
	case <-time.After(time.Second):
		t.Fatal("replacement deadline never fired")
	}

	select {
	case <-fired:
		t.Fatal("the replaced countdown fired too")
	case <-time.After(50 * time.Millisecond):
	}
}
