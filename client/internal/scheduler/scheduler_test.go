package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets the test move the scheduler's wall clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func at(hour, minute int) time.Time {
	return time.Date(2026, time.August, 26, hour, minute, 0, 0, time.Local)
}

func TestParseTimeOfDay(t *testing.T) {
	testCases := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"23:59", 23, 59, false},
		{"0:5", 0, 5, false},
		{" 09:00 ", 9, 0, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"nine", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tc := range testCases {
		hour, minute, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.hour, hour, tc.in)
		assert.Equal(t, tc.minute, minute, tc.in)
	}
}

func TestNextOccurrence(t *testing.T) {
	s := New(func() {})
	s.cfg = Config{Enabled: true, TimeOfDay: "09:00"}

	// before the configured time: today
	next := s.nextOccurrence(at(8, 30))
	assert.Equal(t, at(9, 0), next)

	// exactly at the configured time: strictly after, so tomorrow
	next = s.nextOccurrence(at(9, 0))
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), next)

	// after the configured time: tomorrow
	next = s.nextOccurrence(at(14, 0))
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), next)
}

func TestNextOccurrenceBadTimeFallsBack(t *testing.T) {
	s := New(func() {})
	s.cfg = Config{Enabled: true, TimeOfDay: "garbage"}

	next := s.nextOccurrence(at(8, 0))
	assert.Equal(t, at(9, 0), next, "invalid time of day falls back to 09:00")
}

func TestFiresOnSchedule(t *testing.T) {
	clock := &fakeClock{now: at(8, 59)}
	fired := make(chan struct{}, 8)

	s := New(func() { fired <- struct{}{} })
	s.nowFn = clock.Now
	s.pollInterval = time.Millisecond

	s.Start(Config{Enabled: true, TimeOfDay: "09:00"})
	defer s.Stop()

	// not due yet
	select {
	case <-fired:
		t.Fatal("fired before the scheduled time")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Set(at(9, 0))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("did not fire at the scheduled time")
	}

	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), s.NextFireTime())
}

func TestMissedFireRunsOnce(t *testing.T) {
	// configured for 09:00, host "resumes" at 09:40 having missed the fire
	clock := &fakeClock{now: at(8, 0)}
	fired := make(chan struct{}, 8)

	s := New(func() { fired <- struct{}{} })
	s.nowFn = clock.Now
	s.pollInterval = time.Millisecond

	s.Start(Config{Enabled: true, TimeOfDay: "09:00"})
	defer s.Stop()

	clock.Set(at(9, 40))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("missed fire was not caught up")
	}

	// exactly one catch-up execution, then normal daily rescheduling
	select {
	case <-fired:
		t.Fatal("missed fire executed more than once")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), s.NextFireTime())
}

func TestDisabledNeverFires(t *testing.T) {
	clock := &fakeClock{now: at(10, 0)}
	fired := make(chan struct{}, 1)

	s := New(func() { fired <- struct{}{} })
	s.nowFn = clock.Now
	s.pollInterval = time.Millisecond

	s.Start(Config{Enabled: false, TimeOfDay: "09:00"})
	defer s.Stop()

	select {
	case <-fired:
		t.Fatal("disabled scheduler fired")
	case <-time.After(20 * time.Millisecond):
	}
	assert.True(t, s.NextFireTime().IsZero())
}

func TestUpdateConfigReschedules(t *testing.T) {
	clock := &fakeClock{now: at(10, 0)}
	fired := make(chan struct{}, 8)

	s := New(func() { fired <- struct{}{} })
	s.nowFn = clock.Now
	s.pollInterval = time.Millisecond

	s.Start(Config{Enabled: true, TimeOfDay: "09:00"})
	defer s.Stop()

	// 09:00 already passed, next is tomorrow
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), s.NextFireTime())

	s.UpdateConfig(Config{Enabled: true, TimeOfDay: "10:30"})
	assert.Equal(t, at(10, 30), s.NextFireTime())

	clock.Set(at(10, 31))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("did not fire after config update")
	}
}

func TestNoSecondFireOnTheSameDay(t *testing.T) {
	// the 09:00 check runs, then the target is moved back past "now":
	// the day already saw its check, so 10:30 must not fire again today
	clock := &fakeClock{now: at(8, 59)}
	fired := make(chan struct{}, 8)

	s := New(func() { fired <- struct{}{} })
	s.nowFn = clock.Now
	s.pollInterval = time.Millisecond

	s.Start(Config{Enabled: true, TimeOfDay: "09:00"})
	defer s.Stop()

	clock.Set(at(9, 0))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("did not fire at the scheduled time")
	}

	s.UpdateConfig(Config{Enabled: true, TimeOfDay: "10:30"})
	clock.Set(at(10, 31))

	select {
	case <-fired:
		t.Fatal("fired a second time on the same day")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, at(10, 30).AddDate(0, 0, 1), s.NextFireTime())
}

func TestLastCheckDateSuppressesTodaysFire(t *testing.T) {
	// a restart after today's check must not repeat it; the persisted
	// date seeds the guard, tomorrow fires normally
	clock := &fakeClock{now: at(8, 59)}
	fired := make(chan struct{}, 8)

	s := New(func() { fired <- struct{}{} })
	s.nowFn = clock.Now
	s.pollInterval = time.Millisecond

	s.Start(Config{
		Enabled:       true,
		TimeOfDay:     "09:00",
		LastCheckDate: at(0, 0).Format("2006-01-02"),
	})
	defer s.Stop()

	clock.Set(at(9, 0))
	select {
	case <-fired:
		t.Fatal("fired on a day that already had a check")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Set(at(9, 1).AddDate(0, 0, 1))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("did not fire on the following day")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(func() {})
	s.pollInterval = time.Millisecond
	s.Start(Config{Enabled: true, TimeOfDay: "09:00"})
	s.Stop()
	s.Stop()
}
