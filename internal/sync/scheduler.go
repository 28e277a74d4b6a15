// Package sync schedules inbound fetch runs at fixed daily times and on
// demand.
package sync

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	gosync "sync"
	"time"
)

// Trigger reasons passed to the Trigger callback.
const (
	ReasonSchedule = "schedule"
	ReasonManual   = "manual"
)

// Trigger starts a fetch run. It is called from the scheduler goroutine and
// must hand the work off instead of running it inline.
type Trigger func(reason string)

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseDailyTimes parses "HH:MM" entries. The result is sorted and free of
// duplicates. Every malformed entry is reported in the returned error.
func ParseDailyTimes(values []string) ([]ClockTime, error) {
	seen := make(map[ClockTime]bool)
	var times []ClockTime
	var bad []string

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		ct, ok := parseClock(value)
		if !ok {
			bad = append(bad, strconv.Quote(value))
			continue
		}
		if !seen[ct] {
			seen[ct] = true
			times = append(times, ct)
		}
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid fetch times %s: want HH:MM", strings.Join(bad, ", "))
	}

	sort.Slice(times, func(i, j int) bool {
		if times[i].Hour != times[j].Hour {
			return times[i].Hour < times[j].Hour
		}
		return times[i].Minute < times[j].Minute
	})
	return times, nil
}

func parseClock(s string) (ClockTime, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return ClockTime{}, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return ClockTime{}, false
	}
	return ClockTime{Hour: h, Minute: m}, true
}

// NextAfter returns the first trigger instant strictly after now, in now's
// location, or the zero time when times is empty.
func NextAfter(times []ClockTime, now time.Time) time.Time {
	var next time.Time
	for day := 0; day <= 1; day++ {
		for _, ct := range times {
			at := time.Date(now.Year(), now.Month(), now.Day()+day, ct.Hour, ct.Minute, 0, 0, now.Location())
			if at.After(now) && (next.IsZero() || at.Before(next)) {
				next = at
			}
		}
		if !next.IsZero() {
			return next
		}
	}
	return next
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for trigger events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock replaces the wall clock and timer source.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

// Scheduler fires its Trigger at fixed daily times and whenever FetchNow
// is called. It never waits for the runs it starts.
type Scheduler struct {
	times   []ClockTime
	trigger Trigger
	logger  *slog.Logger
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time

	triggerCh chan string
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
	next      time.Time
}

// New creates a scheduler for the given daily times.
func New(times []ClockTime, trigger Trigger, opts ...Option) *Scheduler {
	s := &Scheduler{
		times:     append([]ClockTime(nil), times...),
		trigger:   trigger,
		logger:    slog.Default(),
		now:       time.Now,
		after:     time.After,
		triggerCh: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Times returns the configured daily trigger times.
func (s *Scheduler) Times() []ClockTime {
	return append([]ClockTime(nil), s.times...)
}

// Start launches the timer goroutine. Calling Start on a running
// scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	go s.loop(s.stopCh)

	s.logger.Info("scheduler started", "times", s.times)
}

// Stop halts the timer goroutine without waiting for runs already started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.next = time.Time{}
}

// Running reports whether the timer goroutine is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled trigger, zero when stopped or when no
// times are configured.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// FetchNow requests an immediate run through the same path scheduled
// triggers take. A request made while another one is still queued is
// dropped. When the scheduler is stopped the trigger is called directly.
func (s *Scheduler) FetchNow() {
	if !s.Running() {
		s.fire(ReasonManual)
		return
	}
	select {
	case s.triggerCh <- ReasonManual:
	default:
		s.logger.Debug("fetch already queued, dropping request")
	}
}

func (s *Scheduler) loop(stopCh <-chan struct{}) {
	for {
		now := s.now()
		next := NextAfter(s.times, now)

		var fire <-chan time.Time
		if !next.IsZero() {
			fire = s.after(next.Sub(now))
		}
		s.setNext(stopCh, next)

		select {
		case <-stopCh:
			return
		case <-fire:
			s.fire(ReasonSchedule)
		case reason := <-s.triggerCh:
			s.fire(reason)
		}
	}
}

func (s *Scheduler) setNext(stopCh <-chan struct{}, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale loop must not overwrite the state of a restarted scheduler.
	if s.stopCh == stopCh && s.running {
		s.next = next
	}
}

func (s *Scheduler) fire(reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fetch trigger panicked", "reason", reason, "panic", r)
		}
	}()

	s.logger.Info("triggering fetch", "reason", reason)
	if s.trigger != nil {
		s.trigger(reason)
	}
}
