package activity

import (
	"errors"
	"testing"
	"time"

	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/domain"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type memStore struct {
	state   domain.ActivityState
	saveErr error
	saves   int
}

func (m *memStore) LoadActivity() (domain.ActivityState, error) {
	return m.state, nil
}

func (m *memStore) SaveActivity(s domain.ActivityState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = s
	m.saves++
	return nil
}

func newTracker(t *testing.T) (*Tracker, *memStore, *clock.Fake) {
	t.Helper()
	st := &memStore{state: domain.NewActivityState()}
	clk := clock.NewFake(t0)
	tr, err := NewTracker(st, clk)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tr, st, clk
}

func TestFirstSession(t *testing.T) {
	tr, st, _ := newTracker(t)

	if err := tr.RecordStudy(10, 4, 2); err != nil {
		t.Fatalf("RecordStudy: %v", err)
	}

	s := tr.State()
	if s.CurrentStreak != 1 || s.LongestStreak != 1 {
		t.Errorf("streaks=%d/%d, want 1/1", s.CurrentStreak, s.LongestStreak)
	}
	if s.TodayMinutes != 10 || s.TotalStudyDays != 1 {
		t.Errorf("today=%d days=%d, want 10, 1", s.TodayMinutes, s.TotalStudyDays)
	}
	if s.TotalMinutes != 10 || s.TotalCardsReviewed != 4 || s.TotalPagesRead != 2 {
		t.Errorf("totals=%d/%d/%d, want 10/4/2", s.TotalMinutes, s.TotalCardsReviewed, s.TotalPagesRead)
	}
	if s.LastStudy == nil || !s.LastStudy.Equal(t0) {
		t.Errorf("LastStudy=%v, want %v", s.LastStudy, t0)
	}
	if st.saves != 1 {
		t.Errorf("saves=%d, want 1", st.saves)
	}
}

func TestSameDayAccumulates(t *testing.T) {
	tr, _, clk := newTracker(t)

	tr.RecordStudy(10, 0, 0)
	clk.Advance(3 * time.Hour)
	tr.RecordStudy(15, 0, 0)

	s := tr.State()
	if s.TodayMinutes != 25 {
		t.Errorf("TodayMinutes=%d, want 25", s.TodayMinutes)
	}
	if s.CurrentStreak != 1 {
		t.Errorf("CurrentStreak=%d, want 1 (same-day calls never change it)", s.CurrentStreak)
	}
	if s.TotalStudyDays != 1 {
		t.Errorf("TotalStudyDays=%d, want 1", s.TotalStudyDays)
	}
}

func TestConsecutiveDaysExtendStreak(t *testing.T) {
	tr, _, clk := newTracker(t)

	for day := 0; day < 4; day++ {
		tr.RecordStudy(10, 0, 0)
		clk.Advance(24 * time.Hour)
	}

	s := tr.State()
	if s.CurrentStreak != 4 || s.LongestStreak != 4 {
		t.Errorf("streaks=%d/%d, want 4/4", s.CurrentStreak, s.LongestStreak)
	}
	if s.TotalStudyDays != 4 {
		t.Errorf("TotalStudyDays=%d, want 4", s.TotalStudyDays)
	}
}

func TestGapResetsStreakToOne(t *testing.T) {
	tr, _, clk := newTracker(t)

	tr.RecordStudy(10, 0, 0)
	clk.Advance(24 * time.Hour)
	tr.RecordStudy(10, 0, 0)
	clk.Advance(3 * 24 * time.Hour)
	tr.RecordStudy(10, 0, 0)

	s := tr.State()
	if s.CurrentStreak != 1 {
		t.Errorf("CurrentStreak=%d, want 1 after a gap", s.CurrentStreak)
	}
	if s.LongestStreak != 2 {
		t.Errorf("LongestStreak=%d, want 2 preserved", s.LongestStreak)
	}
	if s.TodayMinutes != 10 {
		t.Errorf("TodayMinutes=%d, want fresh bucket of 10", s.TodayMinutes)
	}
}

func TestStreakScenarioFromYesterday(t *testing.T) {
	st := &memStore{state: domain.NewActivityState()}
	clk := clock.NewFake(t0)
	yesterday := t0.AddDate(0, 0, -1)
	st.state.CurrentStreak = 3
	st.state.LongestStreak = 3
	st.state.LastStudy = &yesterday

	tr, err := NewTracker(st, clk)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tr.RecordStudy(10, 0, 0)

	s := tr.State()
	if s.CurrentStreak != 4 {
		t.Errorf("CurrentStreak=%d, want 4", s.CurrentStreak)
	}
	if s.TodayMinutes != 10 {
		t.Errorf("TodayMinutes=%d, want 10", s.TodayMinutes)
	}
}

func TestCheckStreakStatusLapse(t *testing.T) {
	tr, _, clk := newTracker(t)

	tr.RecordStudy(10, 0, 0)
	clk.Advance(2 * 24 * time.Hour)

	if err := tr.CheckStreakStatus(); err != nil {
		t.Fatalf("CheckStreakStatus: %v", err)
	}
	s := tr.State()
	if s.CurrentStreak != 0 {
		t.Errorf("CurrentStreak=%d, want 0 after two silent days", s.CurrentStreak)
	}
	if s.TodayMinutes != 0 {
		t.Errorf("TodayMinutes=%d, want 0 (stale bucket dropped)", s.TodayMinutes)
	}
	if s.LongestStreak != 1 {
		t.Errorf("LongestStreak=%d, want 1 untouched", s.LongestStreak)
	}
}

func TestCheckStreakStatusIdempotent(t *testing.T) {
	tr, st, clk := newTracker(t)

	tr.RecordStudy(10, 0, 0)
	clk.Advance(2 * 24 * time.Hour)

	tr.CheckStreakStatus()
	saved := st.saves
	first := tr.State()

	tr.CheckStreakStatus()
	tr.CheckStreakStatus()

	if tr.State() != first {
		t.Error("repeated CheckStreakStatus changed state")
	}
	if st.saves != saved {
		t.Errorf("saves=%d, want %d (no-op calls must not rewrite)", st.saves, saved)
	}
}

func TestCheckStreakStatusNextDayKeepsStreak(t *testing.T) {
	tr, _, clk := newTracker(t)

	tr.RecordStudy(10, 0, 0)
	clk.Advance(24 * time.Hour)

	tr.CheckStreakStatus()
	s := tr.State()
	if s.CurrentStreak != 1 {
		t.Errorf("CurrentStreak=%d, want 1 (one silent day is not a lapse)", s.CurrentStreak)
	}
	if s.TodayMinutes != 0 {
		t.Errorf("TodayMinutes=%d, want 0 after rollover", s.TodayMinutes)
	}
}

func TestStaleBucketReadsAsZero(t *testing.T) {
	tr, _, clk := newTracker(t)

	tr.RecordStudy(60, 0, 0)
	clk.Advance(24 * time.Hour)

	// No CheckStreakStatus yet: reads must still treat the bucket as empty.
	if got := tr.TodayMinutes(); got != 0 {
		t.Errorf("TodayMinutes=%d, want 0 for stale bucket", got)
	}
	if tr.HasMetDailyGoal() {
		t.Error("HasMetDailyGoal should be false on a fresh day")
	}
	if got := tr.GoalProgress(); got != 0 {
		t.Errorf("GoalProgress=%f, want 0", got)
	}
}

func TestGoalProgress(t *testing.T) {
	tr, _, _ := newTracker(t)
	tr.UpdateDailyGoal(30)

	tr.RecordStudy(15, 0, 0)
	if got := tr.GoalProgress(); got != 0.5 {
		t.Errorf("GoalProgress=%f, want 0.5", got)
	}
	if tr.HasMetDailyGoal() {
		t.Error("goal should not be met at 15/30")
	}

	tr.RecordStudy(45, 0, 0)
	if got := tr.GoalProgress(); got != 1 {
		t.Errorf("GoalProgress=%f, want capped at 1", got)
	}
	if !tr.HasMetDailyGoal() {
		t.Error("goal should be met at 60/30")
	}
}

func TestGoalClamping(t *testing.T) {
	tr, _, _ := newTracker(t)

	tr.UpdateDailyGoal(2)
	if got := tr.State().DailyGoalMinutes; got != domain.MinDailyGoalMinutes {
		t.Errorf("DailyGoalMinutes=%d, want clamped to %d", got, domain.MinDailyGoalMinutes)
	}
	tr.UpdateDailyGoal(10000)
	if got := tr.State().DailyGoalMinutes; got != domain.MaxDailyGoalMinutes {
		t.Errorf("DailyGoalMinutes=%d, want clamped to %d", got, domain.MaxDailyGoalMinutes)
	}

	tr.UpdateWeeklyGoal(0)
	if got := tr.State().WeeklyGoalDays; got != domain.MinWeeklyGoalDays {
		t.Errorf("WeeklyGoalDays=%d, want clamped to %d", got, domain.MinWeeklyGoalDays)
	}
	tr.UpdateWeeklyGoal(9)
	if got := tr.State().WeeklyGoalDays; got != domain.MaxWeeklyGoalDays {
		t.Errorf("WeeklyGoalDays=%d, want clamped to %d", got, domain.MaxWeeklyGoalDays)
	}
}

func TestLongestStreakInvariant(t *testing.T) {
	tr, _, clk := newTracker(t)

	for day := 0; day < 10; day++ {
		tr.RecordStudy(5, 0, 0)
		s := tr.State()
		if s.CurrentStreak > s.LongestStreak {
			t.Fatalf("day %d: current=%d > longest=%d", day, s.CurrentStreak, s.LongestStreak)
		}
		clk.Advance(24 * time.Hour)
	}
}

func TestRecordStudySaveFailure(t *testing.T) {
	tr, st, _ := newTracker(t)
	st.saveErr = errors.New("disk full")

	err := tr.RecordStudy(10, 0, 0)
	if !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("err=%v, want ErrPersistFailed", err)
	}
}

func TestMidnightBoundary(t *testing.T) {
	// Study just before midnight, then just after: consecutive days.
	st := &memStore{state: domain.NewActivityState()}
	clk := clock.NewFake(time.Date(2026, 3, 10, 23, 58, 0, 0, time.UTC))
	tr, err := NewTracker(st, clk)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	tr.RecordStudy(10, 0, 0)
	clk.Advance(4 * time.Minute) // 00:02 next day

	tr.RecordStudy(10, 0, 0)
	s := tr.State()
	if s.CurrentStreak != 2 {
		t.Errorf("CurrentStreak=%d, want 2 across midnight", s.CurrentStreak)
	}
	if s.TodayMinutes != 10 {
		t.Errorf("TodayMinutes=%d, want fresh bucket of 10", s.TodayMinutes)
	}
	if s.TotalStudyDays != 2 {
		t.Errorf("TotalStudyDays=%d, want 2", s.TotalStudyDays)
	}
}
