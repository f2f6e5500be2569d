// Package engine is the study engine facade: it owns the session queue and
// tracker, orchestrates scheduler/persist/log ordering for each rating, and
// fronts the activity tracker. The presentation layer talks only to this
// package.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/finnvolkel/margin/internal/activity"
	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/deck"
	"github.com/finnvolkel/margin/internal/domain"
	"github.com/finnvolkel/margin/internal/queue"
	"github.com/finnvolkel/margin/internal/sched"
	"github.com/finnvolkel/margin/internal/session"
)

// Repository is the external card store the engine consumes. The sqlite DB
// implements it; tests substitute fakes.
type Repository interface {
	FetchDue(scope domain.Scope, now time.Time) ([]domain.Card, error)
	FindCard(id string) (domain.Card, error)
	InsertCard(card domain.Card, contentHash string) error
	UpdateCardSchedule(card domain.Card) error
	UpdateCardContent(id, front, back, contentHash string) error
	DeleteCard(id string) error
	CountsByStage(scope domain.Scope, now time.Time) (domain.StageCounts, error)
	AppendReviewLog(entry domain.ReviewLogEntry) error
}

// Engine wires the queue, session tracker, scheduler, and activity tracker
// behind one surface. One study session exists at a time; starting a new one
// discards the old.
type Engine struct {
	repo Repository
	act  *activity.Tracker
	clk  clock.Clock
	log  *slog.Logger

	queue *queue.Queue
	sess  *session.Tracker
	scope domain.Scope
}

// New builds an engine. All collaborators are required.
func New(repo Repository, act *activity.Tracker, clk clock.Clock, log *slog.Logger) (*Engine, error) {
	if repo == nil || act == nil || clk == nil {
		return nil, domain.ErrNotConfigured
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		repo:  repo,
		act:   act,
		clk:   clk,
		log:   log,
		queue: queue.New(),
	}, nil
}

// StartSession fetches the due cards for the scope and begins a session with
// them, in repository order. A prior session, finished or not, is discarded.
// Returns the number of cards queued.
func (e *Engine) StartSession(scope domain.Scope) (int, error) {
	e.queue.BeginLoad()
	now := e.clk.Now()
	cards, err := e.repo.FetchDue(scope, now)
	if err != nil {
		e.queue.Start(nil)
		return 0, fmt.Errorf("fetch due cards: %w", err)
	}
	e.scope = scope
	e.queue.Start(cards)
	e.sess = session.New(e.clk)
	e.log.Info("session started", "due_cards", len(cards))
	return len(cards), nil
}

// Phase returns the session queue's lifecycle state.
func (e *Engine) Phase() queue.Phase {
	return e.queue.Phase()
}

// Current returns the card under the cursor.
func (e *Engine) Current() (domain.Card, bool) {
	return e.queue.Current()
}

// Remaining counts unprocessed queue entries.
func (e *Engine) Remaining() int {
	return e.queue.Remaining()
}

// Rate scores the current card. The queue and session always advance once the
// schedule is computed; a failed card persist surfaces as ErrPersistFailed so
// the caller can retry or warn, and a failed review-log append is only
// logged. The returned card carries the new schedule either way.
func (e *Engine) Rate(quality domain.Quality) (domain.Card, error) {
	if !quality.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %d", domain.ErrInvalidQuality, int(quality))
	}
	if e.sess == nil {
		return domain.Card{}, fmt.Errorf("%w: no active session", domain.ErrNotConfigured)
	}
	now := e.clk.Now()
	responseMs := e.sess.CardElapsed().Milliseconds()

	updated, entry, err := e.queue.Rate(quality, now)
	if err != nil {
		return domain.Card{}, err
	}
	entry.ResponseMillis = &responseMs

	e.sess.CardRated()
	e.sess.CardShown()

	var persistErr error
	if err := e.repo.UpdateCardSchedule(updated); err != nil {
		persistErr = fmt.Errorf("%w: card %s: %v", domain.ErrPersistFailed, updated.ID, err)
	}
	if err := e.repo.AppendReviewLog(entry); err != nil {
		// Best effort: the log never blocks or rolls back a rating.
		e.log.Warn("review log append failed", "card", entry.CardID, "error", err)
	}
	return updated, persistErr
}

// Skip defers the current card without scoring it.
func (e *Engine) Skip() error {
	if err := e.queue.Skip(); err != nil {
		return err
	}
	if e.sess != nil {
		e.sess.CardShown()
	}
	return nil
}

// DeleteAt removes the queue entry at index and deletes the card from the
// repository.
func (e *Engine) DeleteAt(index int) error {
	removed, err := e.queue.Delete(index)
	if err != nil {
		return err
	}
	if err := e.repo.DeleteCard(removed.ID); err != nil {
		return fmt.Errorf("%w: card %s: %v", domain.ErrPersistFailed, removed.ID, err)
	}
	return nil
}

// DeleteCard deletes a card from the repository and invalidates any queue
// entry referencing it.
func (e *Engine) DeleteCard(id string) error {
	e.queue.DeleteByID(id) // absent from the queue is fine
	if err := e.repo.DeleteCard(id); err != nil {
		return err
	}
	return nil
}

// EditCard replaces a card's text. Scheduling state is untouched; the content
// hash is recomputed so deck syncs recognize the edited card.
func (e *Engine) EditCard(id, front, back string) error {
	hash := deck.Hash(domain.Card{Front: front, Back: back})
	if err := e.repo.UpdateCardContent(id, front, back, hash); err != nil {
		return err
	}
	return nil
}

// AddCard creates and persists a new, immediately due card.
func (e *Engine) AddCard(front, back string) (domain.Card, error) {
	card := domain.NewCard(front, back, e.clk.Now())
	if err := e.repo.InsertCard(card, deck.Hash(card)); err != nil {
		return domain.Card{}, fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return card, nil
}

// PreviewIntervals returns the would-be interval per quality for a card.
func (e *Engine) PreviewIntervals(card domain.Card) map[domain.Quality]string {
	return sched.PreviewIntervals(card, e.clk.Now())
}

// Counts returns the stage summary for a scope.
func (e *Engine) Counts(scope domain.Scope) (domain.StageCounts, error) {
	return e.repo.CountsByStage(scope, e.clk.Now())
}

// SessionClock returns the running session timer as mm:ss, or 00:00 outside a
// session.
func (e *Engine) SessionClock() string {
	if e.sess == nil {
		return "00:00"
	}
	return e.sess.FormatClock()
}

// SessionStats returns processed-card count and average seconds per card.
func (e *Engine) SessionStats() (processed int, avgSeconds float64) {
	if e.sess == nil {
		return 0, 0
	}
	return e.sess.CardsProcessed(), e.sess.AverageSecondsPerCard()
}

// EndSession snapshots the session and folds it into the activity aggregate,
// with pagesRead supplied by the reading side of the app. Calling it without
// an active session is a no-op.
func (e *Engine) EndSession(pagesRead int) (session.Summary, error) {
	if e.sess == nil {
		return session.Summary{}, nil
	}
	summary := e.sess.Snapshot()
	e.sess = nil
	if err := e.act.RecordStudy(summary.Minutes, summary.CardsProcessed, pagesRead); err != nil {
		return summary, err
	}
	e.log.Info("session ended",
		"cards", summary.CardsProcessed,
		"minutes", summary.Minutes,
	)
	return summary, nil
}

// RecordStudyActivity forwards a study event to the activity tracker.
func (e *Engine) RecordStudyActivity(minutes, cards, pages int) error {
	return e.act.RecordStudy(minutes, cards, pages)
}

// CheckStreakStatus reconciles streak state with the calendar. Call on app
// activation.
func (e *Engine) CheckStreakStatus() error {
	return e.act.CheckStreakStatus()
}

// UpdateDailyGoal sets the daily minutes goal (clamped).
func (e *Engine) UpdateDailyGoal(minutes int) error {
	return e.act.UpdateDailyGoal(minutes)
}

// UpdateWeeklyGoal sets the weekly days goal (clamped).
func (e *Engine) UpdateWeeklyGoal(days int) error {
	return e.act.UpdateWeeklyGoal(days)
}

// Activity returns a copy of the streak/goal aggregate.
func (e *Engine) Activity() domain.ActivityState {
	return e.act.State()
}

// GoalProgress reports today's progress toward the daily goal in [0,1].
func (e *Engine) GoalProgress() float64 {
	return e.act.GoalProgress()
}

// HasMetDailyGoal reports whether today's goal is met.
func (e *Engine) HasMetDailyGoal() bool {
	return e.act.HasMetDailyGoal()
}
