// Package scheduler fires the update check at a configured time of day,
// once per day, catching up on fires missed while the host was asleep.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// defaultTimeOfDay is used when the configured time does not parse
const defaultTimeOfDay = "09:00"

// pollInterval is how often the wall clock is inspected. Polling instead of
// a long sleep makes suspend/resume safe: the first tick after wake-up
// notices a missed fire.
const defaultPollInterval = time.Minute

// dateLayout is the wire format of LastCheckDate
const dateLayout = "2006-01-02"

// Config is the read-only schedule snapshot supplied by the settings owner
type Config struct {
	Enabled   bool
	TimeOfDay string // "HH:MM", 24h clock

	// LastCheckDate ("YYYY-MM-DD") seeds the same-day guard so a check
	// already performed today is not repeated after a restart or a
	// schedule change. Empty means no check has happened yet.
	LastCheckDate string
}

// ParseTimeOfDay parses "HH:MM" into hour and minute
func ParseTimeOfDay(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// Scheduler drives the recurring check cycle. Each fire runs onFire in its
// own goroutine so a slow callback never delays the clock polling; Stop
// waits for in-flight callbacks.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	next     time.Time
	lastFire string // "YYYY-MM-DD" of the most recent fire
	running  bool
	cancel   chan struct{}
	wg       sync.WaitGroup

	onFire func()

	// test seams
	nowFn        func() time.Time
	pollInterval time.Duration
}

// New creates a stopped scheduler that will invoke onFire on schedule
func New(onFire func()) *Scheduler {
	return &Scheduler{
		onFire:       onFire,
		nowFn:        time.Now,
		pollInterval: defaultPollInterval,
	}
}

// Start begins watching the clock with the given config
func (s *Scheduler) Start(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Errorf("scheduler already started")
		return
	}

	s.applyConfig(cfg)
	s.cancel = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.loop(s.cancel)

	log.Infof("scheduler started, next fire at %s", s.next.Format(time.RFC3339))
}

// Stop halts the scheduler. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.cancel)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	log.Debugf("scheduler stopped")
}

// UpdateConfig replaces the schedule snapshot and recomputes the next fire.
// Called by the settings owner; the scheduler never mutates the config.
func (s *Scheduler) UpdateConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyConfig(cfg)
	log.Debugf("scheduler config updated, next fire at %s", s.next.Format(time.RFC3339))
}

// NextFireTime returns the next scheduled fire, zero when disabled
func (s *Scheduler) NextFireTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		return time.Time{}
	}
	return s.next
}

func (s *Scheduler) applyConfig(cfg Config) {
	s.cfg = cfg
	// lastFire only moves forward so a stale snapshot cannot re-arm today
	if cfg.LastCheckDate > s.lastFire {
		s.lastFire = cfg.LastCheckDate
	}
	if cfg.Enabled {
		s.next = s.nextOccurrence(s.nowFn())
	} else {
		s.next = time.Time{}
	}
}

func (s *Scheduler) loop(cancel <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if fire := s.dueNow(); fire {
				log.Debugf("scheduled check fire")
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.onFire()
				}()
			}
		}
	}
}

// dueNow reports whether the schedule is due and, if so, advances the next
// fire time. A wall clock far past the target (host was asleep) yields a
// single catch-up fire: rescheduling starts from "now", so multiple missed
// days collapse into one. A day that already saw a fire never sees a
// second one, even when a schedule change moves the target back past "now".
func (s *Scheduler) dueNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled || s.next.IsZero() {
		return false
	}

	now := s.nowFn()
	if now.Before(s.next) {
		return false
	}

	s.next = s.nextOccurrence(now)

	today := now.Format(dateLayout)
	if s.lastFire == today {
		log.Debugf("skipping fire, a check already ran on %s", today)
		return false
	}
	s.lastFire = today
	return true
}

// nextOccurrence returns the next occurrence of the configured time of day
// strictly after now
func (s *Scheduler) nextOccurrence(now time.Time) time.Time {
	hour, minute, err := ParseTimeOfDay(s.cfg.TimeOfDay)
	if err != nil {
		log.Warnf("falling back to %s: %v", defaultTimeOfDay, err)
		hour, minute, _ = ParseTimeOfDay(defaultTimeOfDay)
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
