// Package activity maintains the persistent study-activity aggregate:
// day streaks, the rolling "today" minute bucket, goals, and lifetime totals.
// One tracker exists per profile and all mutation happens inside its lock.
package activity

import (
	"fmt"
	"sync"

	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/domain"
)

// Store persists the aggregate. The sqlite repository implements it.
type Store interface {
	LoadActivity() (domain.ActivityState, error)
	SaveActivity(domain.ActivityState) error
}

// Tracker wraps the ActivityState singleton with streak arithmetic. Methods
// are safe for concurrent use; each call is one critical section.
type Tracker struct {
	mu    sync.Mutex
	clk   clock.Clock
	store Store
	state domain.ActivityState
}

// NewTracker loads the persisted aggregate from the store.
func NewTracker(store Store, clk clock.Clock) (*Tracker, error) {
	state, err := store.LoadActivity()
	if err != nil {
		return nil, fmt.Errorf("load activity state: %w", err)
	}
	return &Tracker{clk: clk, store: store, state: state}, nil
}

// RecordStudy folds one finished study session into the aggregate: minutes
// into the day bucket, streak arithmetic across the calendar-day gap since
// the last session, and lifetime totals. Safe to repeat on failure.
func (t *Tracker) RecordStudy(minutes, cards, pages int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	today := t.clk.DayOf(now)

	if t.state.TodayBucket != nil && !t.clk.DayOf(*t.state.TodayBucket).Equal(today) {
		t.state.TodayMinutes = 0
	}
	t.state.TodayBucket = &now

	if t.state.LastStudy == nil {
		t.state.CurrentStreak = 1
		t.state.TodayMinutes = minutes
		t.state.TotalStudyDays = 1
	} else {
		lastDay := t.clk.DayOf(*t.state.LastStudy)
		switch gap := clock.DaysBetween(lastDay, today); {
		case gap == 0:
			t.state.TodayMinutes += minutes
		case gap == 1:
			t.state.CurrentStreak++
			t.state.TodayMinutes = minutes
			t.state.TotalStudyDays++
		case gap > 1:
			t.state.CurrentStreak = 1
			t.state.TodayMinutes = minutes
			t.state.TotalStudyDays++
		default:
			// Negative gap means the wall clock went backwards across a day
			// boundary. Leave streak state alone; totals still accumulate.
		}
	}

	t.state.LastStudy = &now
	t.state.TotalMinutes += minutes
	t.state.TotalCardsReviewed += cards
	t.state.TotalPagesRead += pages
	if t.state.CurrentStreak > t.state.LongestStreak {
		t.state.LongestStreak = t.state.CurrentStreak
	}

	if err := t.store.SaveActivity(t.state); err != nil {
		return fmt.Errorf("%w: save activity: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

// CheckStreakStatus reconciles the aggregate with the calendar without a
// study event: a stale day bucket drops its minutes, and a 2+ day silence
// zeroes the streak. Idempotent; call on every app activation.
func (t *Tracker) CheckStreakStatus() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	today := t.clk.DayOf(now)
	before := t.state

	if t.state.TodayBucket != nil && !t.clk.DayOf(*t.state.TodayBucket).Equal(today) {
		t.state.TodayMinutes = 0
	}
	if t.state.LastStudy != nil && clock.DaysBetween(t.clk.DayOf(*t.state.LastStudy), today) > 1 {
		t.state.CurrentStreak = 0
	}

	if t.state == before {
		return nil
	}
	if err := t.store.SaveActivity(t.state); err != nil {
		return fmt.Errorf("%w: save activity: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

// UpdateDailyGoal sets the daily goal, clamped to [5,480] minutes.
func (t *Tracker) UpdateDailyGoal(minutes int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.DailyGoalMinutes = clamp(minutes, domain.MinDailyGoalMinutes, domain.MaxDailyGoalMinutes)
	if err := t.store.SaveActivity(t.state); err != nil {
		return fmt.Errorf("%w: save activity: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

// UpdateWeeklyGoal sets the weekly goal, clamped to [1,7] days.
func (t *Tracker) UpdateWeeklyGoal(days int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.WeeklyGoalDays = clamp(days, domain.MinWeeklyGoalDays, domain.MaxWeeklyGoalDays)
	if err := t.store.SaveActivity(t.state); err != nil {
		return fmt.Errorf("%w: save activity: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

// State returns a copy of the aggregate.
func (t *Tracker) State() domain.ActivityState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TodayMinutes returns the minutes studied today. A bucket left over from an
// earlier day reads as zero even before CheckStreakStatus has run.
func (t *Tracker) TodayMinutes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.todayMinutesLocked()
}

// GoalProgress reports progress toward the daily goal in [0,1].
func (t *Tracker) GoalProgress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.DailyGoalMinutes <= 0 {
		return 0
	}
	p := float64(t.todayMinutesLocked()) / float64(t.state.DailyGoalMinutes)
	if p > 1 {
		p = 1
	}
	return p
}

// HasMetDailyGoal reports whether today's minutes reached the daily goal.
func (t *Tracker) HasMetDailyGoal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.todayMinutesLocked() >= t.state.DailyGoalMinutes
}

func (t *Tracker) todayMinutesLocked() int {
	if t.state.TodayBucket == nil {
		return 0
	}
	if !t.clk.DayOf(*t.state.TodayBucket).Equal(t.clk.DayOf(t.clk.Now())) {
		return 0
	}
	return t.state.TodayMinutes
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
