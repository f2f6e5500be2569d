package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/finnvolkel/margin/internal/activity"
	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/domain"
	"github.com/finnvolkel/margin/internal/queue"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type fakeRepo struct {
	cards      map[string]domain.Card
	order      []string
	fetchErr   error
	persistErr error
	logErr     error
	logged     []domain.ReviewLogEntry
}

func newFakeRepo(cards ...domain.Card) *fakeRepo {
	r := &fakeRepo{cards: make(map[string]domain.Card)}
	for _, c := range cards {
		r.cards[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r
}

func (r *fakeRepo) FetchDue(scope domain.Scope, now time.Time) ([]domain.Card, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	var due []domain.Card
	for _, id := range r.order {
		if c := r.cards[id]; c.IsDue(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (r *fakeRepo) FindCard(id string) (domain.Card, error) {
	c, ok := r.cards[id]
	if !ok {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return c, nil
}

func (r *fakeRepo) InsertCard(card domain.Card, contentHash string) error {
	r.cards[card.ID] = card
	r.order = append(r.order, card.ID)
	return nil
}

func (r *fakeRepo) UpdateCardSchedule(card domain.Card) error {
	if r.persistErr != nil {
		return r.persistErr
	}
	if _, ok := r.cards[card.ID]; !ok {
		return domain.ErrCardNotFound
	}
	r.cards[card.ID] = card
	return nil
}

func (r *fakeRepo) UpdateCardContent(id, front, back, contentHash string) error {
	c, ok := r.cards[id]
	if !ok {
		return domain.ErrCardNotFound
	}
	c.Front, c.Back = front, back
	r.cards[id] = c
	return nil
}

func (r *fakeRepo) DeleteCard(id string) error {
	if _, ok := r.cards[id]; !ok {
		return domain.ErrCardNotFound
	}
	delete(r.cards, id)
	return nil
}

func (r *fakeRepo) CountsByStage(scope domain.Scope, now time.Time) (domain.StageCounts, error) {
	var counts domain.StageCounts
	for _, c := range r.cards {
		switch c.Stage() {
		case domain.New:
			counts.New++
		case domain.Learning:
			counts.Learning++
		}
		if c.IsDue(now) {
			counts.Due++
		}
	}
	return counts, nil
}

func (r *fakeRepo) AppendReviewLog(entry domain.ReviewLogEntry) error {
	if r.logErr != nil {
		return r.logErr
	}
	r.logged = append(r.logged, entry)
	return nil
}

type memActivityStore struct {
	state domain.ActivityState
}

func (m *memActivityStore) LoadActivity() (domain.ActivityState, error) { return m.state, nil }
func (m *memActivityStore) SaveActivity(s domain.ActivityState) error   { m.state = s; return nil }

func newEngine(t *testing.T, repo Repository, clk clock.Clock) *Engine {
	t.Helper()
	act, err := activity.NewTracker(&memActivityStore{state: domain.NewActivityState()}, clk)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	e, err := New(repo, act, clk, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("err=%v, want ErrNotConfigured", err)
	}
}

func TestSessionFlow(t *testing.T) {
	repo := newFakeRepo(
		domain.NewCard("a", "1", t0),
		domain.NewCard("b", "2", t0),
	)
	clk := clock.NewFake(t0)
	e := newEngine(t, repo, clk)

	n, err := e.StartSession(domain.AllCards())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if n != 2 || e.Phase() != queue.Active {
		t.Fatalf("n=%d phase=%v, want 2, Active", n, e.Phase())
	}

	cur, ok := e.Current()
	if !ok || cur.Front != "a" {
		t.Fatalf("Current=%v ok=%v, want card a", cur.Front, ok)
	}

	clk.Advance(10 * time.Second)
	updated, err := e.Rate(domain.Good)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if updated.Repetitions != 1 || updated.Interval != 1 {
		t.Errorf("updated=%d/%d, want reps 1 interval 1", updated.Repetitions, updated.Interval)
	}

	// Persisted and logged.
	stored, _ := repo.FindCard(updated.ID)
	if stored.Repetitions != 1 {
		t.Errorf("stored repetitions=%d, want 1", stored.Repetitions)
	}
	if len(repo.logged) != 1 {
		t.Fatalf("logged=%d entries, want 1", len(repo.logged))
	}
	if repo.logged[0].ResponseMillis == nil || *repo.logged[0].ResponseMillis != 10000 {
		t.Errorf("ResponseMillis=%v, want 10000", repo.logged[0].ResponseMillis)
	}

	if _, err := e.Rate(domain.Easy); err != nil {
		t.Fatalf("Rate second: %v", err)
	}
	if e.Phase() != queue.Complete {
		t.Errorf("Phase=%v, want Complete", e.Phase())
	}

	summary, err := e.EndSession(3)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if summary.CardsProcessed != 2 {
		t.Errorf("CardsProcessed=%d, want 2", summary.CardsProcessed)
	}

	act := e.Activity()
	if act.CurrentStreak != 1 || act.TotalCardsReviewed != 2 || act.TotalPagesRead != 3 {
		t.Errorf("activity=%+v", act)
	}

	// Ending again is a no-op.
	summary2, err := e.EndSession(0)
	if err != nil || summary2.CardsProcessed != 0 {
		t.Errorf("second EndSession=%+v err=%v, want zero summary, nil", summary2, err)
	}
}

func TestRatePersistFailureStillAdvances(t *testing.T) {
	repo := newFakeRepo(domain.NewCard("a", "1", t0))
	clk := clock.NewFake(t0)
	e := newEngine(t, repo, clk)
	e.StartSession(domain.AllCards())

	repo.persistErr = errors.New("disk full")
	updated, err := e.Rate(domain.Good)
	if !errors.Is(err, domain.ErrPersistFailed) {
		t.Fatalf("err=%v, want ErrPersistFailed", err)
	}
	// The computed schedule is returned despite the failure.
	if updated.Repetitions != 1 {
		t.Errorf("updated repetitions=%d, want 1", updated.Repetitions)
	}
	// And the session still advanced: the rating was captured.
	if e.Remaining() != 0 || e.Phase() != queue.Complete {
		t.Errorf("remaining=%d phase=%v, want 0, Complete", e.Remaining(), e.Phase())
	}
	processed, _ := e.SessionStats()
	if processed != 1 {
		t.Errorf("processed=%d, want 1", processed)
	}
}

func TestRateLogFailureDoesNotSurface(t *testing.T) {
	repo := newFakeRepo(domain.NewCard("a", "1", t0))
	clk := clock.NewFake(t0)
	e := newEngine(t, repo, clk)
	e.StartSession(domain.AllCards())

	repo.logErr = errors.New("log sink down")
	if _, err := e.Rate(domain.Good); err != nil {
		t.Errorf("Rate err=%v, want nil (log is best effort)", err)
	}
	stored := repo.cards[repo.order[0]]
	if stored.Repetitions != 1 {
		t.Errorf("stored repetitions=%d, want schedule persisted", stored.Repetitions)
	}
}

func TestRateWithoutSession(t *testing.T) {
	repo := newFakeRepo()
	e := newEngine(t, repo, clock.NewFake(t0))
	if _, err := e.Rate(domain.Good); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("err=%v, want ErrNotConfigured", err)
	}
}

func TestRateInvalidQuality(t *testing.T) {
	repo := newFakeRepo(domain.NewCard("a", "1", t0))
	e := newEngine(t, repo, clock.NewFake(t0))
	e.StartSession(domain.AllCards())
	if _, err := e.Rate(domain.Quality(9)); !errors.Is(err, domain.ErrInvalidQuality) {
		t.Errorf("err=%v, want ErrInvalidQuality", err)
	}
}

func TestStartSessionFetchError(t *testing.T) {
	repo := newFakeRepo()
	repo.fetchErr = errors.New("db locked")
	e := newEngine(t, repo, clock.NewFake(t0))

	if _, err := e.StartSession(domain.AllCards()); err == nil {
		t.Fatal("expected fetch error")
	}
	if e.Phase() != queue.Complete {
		t.Errorf("Phase=%v, want Complete (nothing to study)", e.Phase())
	}
}

func TestStartSessionDiscardsPrevious(t *testing.T) {
	repo := newFakeRepo(
		domain.NewCard("a", "1", t0),
		domain.NewCard("b", "2", t0),
	)
	clk := clock.NewFake(t0)
	e := newEngine(t, repo, clk)

	e.StartSession(domain.AllCards())
	e.Rate(domain.Good)

	n, err := e.StartSession(domain.AllCards())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	// Card "a" is scheduled out a day now; only "b" is still due.
	if n != 1 {
		t.Errorf("n=%d, want 1", n)
	}
	processed, _ := e.SessionStats()
	if processed != 0 {
		t.Errorf("processed=%d, want fresh session", processed)
	}
}

func TestSkipDoesNotScore(t *testing.T) {
	repo := newFakeRepo(domain.NewCard("a", "1", t0), domain.NewCard("b", "2", t0))
	e := newEngine(t, repo, clock.NewFake(t0))
	e.StartSession(domain.AllCards())

	if err := e.Skip(); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	processed, _ := e.SessionStats()
	if processed != 0 {
		t.Errorf("processed=%d, want 0", processed)
	}
	if len(repo.logged) != 0 {
		t.Errorf("logged=%d, want 0 (skip writes no review log)", len(repo.logged))
	}
	if e.Remaining() != 2 {
		t.Errorf("Remaining=%d, want 2", e.Remaining())
	}
}

func TestDeleteCardInvalidatesQueueEntry(t *testing.T) {
	cardA := domain.NewCard("a", "1", t0)
	cardB := domain.NewCard("b", "2", t0)
	repo := newFakeRepo(cardA, cardB)
	e := newEngine(t, repo, clock.NewFake(t0))
	e.StartSession(domain.AllCards())

	if err := e.DeleteCard(cardA.ID); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if _, err := repo.FindCard(cardA.ID); !errors.Is(err, domain.ErrCardNotFound) {
		t.Error("card should be gone from the repository")
	}
	cur, ok := e.Current()
	if !ok || cur.ID != cardB.ID {
		t.Errorf("Current=%v, want card b", cur.ID)
	}
	if e.Remaining() != 1 {
		t.Errorf("Remaining=%d, want 1", e.Remaining())
	}
}

func TestEditCardKeepsSchedule(t *testing.T) {
	card := domain.NewCard("old", "old", t0)
	card.Repetitions = 3
	repo := newFakeRepo(card)
	e := newEngine(t, repo, clock.NewFake(t0))

	if err := e.EditCard(card.ID, "new front", "new back"); err != nil {
		t.Fatalf("EditCard: %v", err)
	}
	stored, _ := repo.FindCard(card.ID)
	if stored.Front != "new front" || stored.Back != "new back" {
		t.Errorf("content=%q/%q", stored.Front, stored.Back)
	}
	if stored.Repetitions != 3 {
		t.Errorf("repetitions=%d, want untouched", stored.Repetitions)
	}
	if err := e.EditCard("missing", "f", "b"); !errors.Is(err, domain.ErrCardNotFound) {
		t.Errorf("err=%v, want ErrCardNotFound", err)
	}
}

func TestPreviewIntervals(t *testing.T) {
	card := domain.NewCard("a", "1", t0)
	card.Repetitions = 2
	card.Interval = 6
	e := newEngine(t, newFakeRepo(), clock.NewFake(t0))

	previews := e.PreviewIntervals(card)
	if previews[domain.Easy] != "15 days" {
		t.Errorf("Easy preview=%q, want 15 days", previews[domain.Easy])
	}
	if previews[domain.Again] != "1 day" {
		t.Errorf("Again preview=%q, want 1 day", previews[domain.Again])
	}
}

func TestGoalPassthrough(t *testing.T) {
	e := newEngine(t, newFakeRepo(), clock.NewFake(t0))

	if err := e.UpdateDailyGoal(60); err != nil {
		t.Fatalf("UpdateDailyGoal: %v", err)
	}
	if err := e.RecordStudyActivity(30, 10, 0); err != nil {
		t.Fatalf("RecordStudyActivity: %v", err)
	}
	if got := e.GoalProgress(); got != 0.5 {
		t.Errorf("GoalProgress=%f, want 0.5", got)
	}
	if e.HasMetDailyGoal() {
		t.Error("goal should not be met at 30/60")
	}
	if err := e.CheckStreakStatus(); err != nil {
		t.Fatalf("CheckStreakStatus: %v", err)
	}
	if got := e.Activity().CurrentStreak; got != 1 {
		t.Errorf("CurrentStreak=%d, want 1", got)
	}
}
