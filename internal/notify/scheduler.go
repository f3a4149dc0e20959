// internal/notify/scheduler.go
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	errs "clinic-reminders/internal/common/errors"
	"clinic-reminders/internal/common/logger"
)

const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// trigger is one daily firing time. lastFired holds the calendar day of the
// most recent firing so a trigger runs at most once per day even if several
// ticks land in the matching minute.
type trigger struct {
	name      string
	hour, min int
	run       func(ctx context.Context)
	lastFired time.Time
}

// Scheduler owns an explicit trigger table and a single ticking goroutine.
// Triggers fire when the wall clock reaches their HH:MM in local time.
type Scheduler struct {
	mu       sync.Mutex
	triggers []*trigger
	running  bool
	stopCh   chan struct{}

	interval time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		interval: time.Minute,
		now:      time.Now,
		logger:   log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

// AddDaily registers a trigger at the given HH:MM local time. Triggers cannot
// be added while the scheduler is running.
func (s *Scheduler) AddDaily(name, timeOfDay string, run func(ctx context.Context)) error {
	hour, min, err := parseClock(timeOfDay)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errs.NewConfigurationError("cannot add trigger while scheduler is running")
	}
	s.triggers = append(s.triggers, &trigger{name: name, hour: hour, min: min, run: run})
	return nil
}

// Start launches the ticking goroutine. Starting an already running scheduler
// is a no-op and returns false.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.stopCh = make(chan struct{})

	go s.loop(s.stopCh)
	s.logger.Info("scheduler started", map[string]interface{}{
		"triggers": len(s.triggers),
	})
	return true
}

// Stop cancels future wake-ups. An in-flight batch keeps running; its context
// is not tied to the scheduler lifecycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("scheduler stopped", nil)
}

func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return StatusRunning
	}
	return StatusStopped
}

func (s *Scheduler) loop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.fireDue(s.now())
		}
	}
}

// fireDue runs every trigger whose HH:MM matches the current minute and that
// has not fired today. Triggers run sequentially on the scheduler goroutine.
func (s *Scheduler) fireDue(now time.Time) {
	s.mu.Lock()
	var due []*trigger
	for _, t := range s.triggers {
		if now.Hour() == t.hour && now.Minute() == t.min && !sameDay(t.lastFired, now) {
			t.lastFired = now
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.logger.Info("trigger fired", map[string]interface{}{
			"trigger": t.name,
			"at":      now.Format("15:04"),
		})
		t.run(context.Background())
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func parseClock(timeOfDay string) (hour, min int, err error) {
	parts := strings.SplitN(timeOfDay, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errs.NewConfigurationError(fmt.Sprintf("invalid trigger time %q", timeOfDay))
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errs.NewConfigurationError(fmt.Sprintf("invalid trigger time %q", timeOfDay))
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, errs.NewConfigurationError(fmt.Sprintf("invalid trigger time %q", timeOfDay))
	}
	return hour, min, nil
}
