package domain

import "time"

// Goal bounds and defaults. Out-of-range goal updates are clamped, not
// rejected.
const (
	MinDailyGoalMinutes = 5
	MaxDailyGoalMinutes = 480
	MinWeeklyGoalDays   = 1
	MaxWeeklyGoalDays   = 7

	DefaultDailyGoalMinutes = 30
	DefaultWeeklyGoalDays   = 5
)

// ActivityState is the persistent, app-wide study activity aggregate:
// streaks, the rolling "today" minute bucket, goals, and lifetime totals.
// TodayMinutes is only meaningful for the calendar day TodayBucket falls on;
// readers observing a stale bucket must treat the minutes as zero.
type ActivityState struct {
	CurrentStreak int
	LongestStreak int
	LastStudy     *time.Time

	TodayMinutes int
	TodayBucket  *time.Time

	DailyGoalMinutes int
	WeeklyGoalDays   int

	TotalStudyDays     int
	TotalMinutes       int
	TotalCardsReviewed int
	TotalPagesRead     int
}

// NewActivityState returns an empty aggregate with default goals.
func NewActivityState() ActivityState {
	return ActivityState{
		DailyGoalMinutes: DefaultDailyGoalMinutes,
		WeeklyGoalDays:   DefaultWeeklyGoalDays,
	}
}
