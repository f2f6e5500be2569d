// Package web serves the HTMX study UI: deck overview, the review loop,
// streak/goal panel, and deck source management.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/domain"
	"github.com/finnvolkel/margin/internal/engine"
	"github.com/finnvolkel/margin/internal/queue"
	"github.com/finnvolkel/margin/internal/storage"
	"github.com/finnvolkel/margin/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	eng       *engine.Engine
	db        *storage.DB
	clk       clock.Clock
	reposDir  string
	log       *slog.Logger
	router    *http.ServeMux
	templates *template.Template
}

// ratingOption is one grading button on the answer view.
type ratingOption struct {
	Value   int
	Label   string
	Preview string
}

// NewServer creates and configures a new server.
func NewServer(eng *engine.Engine, db *storage.DB, clk clock.Clock, reposDir string, log *slog.Logger) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		eng:       eng,
		db:        db,
		clk:       clk,
		reposDir:  reposDir,
		log:       log,
		router:    http.NewServeMux(),
		templates: tpl,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-filesystem: %v", err))
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/", fileServer)

	// HTMX-based routes
	s.router.HandleFunc("/deck", s.handleGetDeck())
	s.router.HandleFunc("/session/start", s.handleStartSession())
	s.router.HandleFunc("/session/answer", s.handleShowAnswer())
	s.router.HandleFunc("/session/rate", s.handleRate())
	s.router.HandleFunc("/session/skip", s.handleSkip())
	s.router.HandleFunc("/session/delete", s.handleDeleteCurrent())
	s.router.HandleFunc("/session/end", s.handleEndSession())
	s.router.HandleFunc("/cards", s.handleAddCard())
	s.router.HandleFunc("/goals", s.handleUpdateGoals())

	// Source management routes
	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
}

// handleGetDeck renders the deck overview with stage counts and the
// streak/goal panel.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.eng.CheckStreakStatus(); err != nil {
			s.log.Warn("streak check failed", "error", err)
		}
		counts, err := s.eng.Counts(domain.AllCards())
		if err != nil {
			s.log.Error("stage counts", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.templates.ExecuteTemplate(w, "deck", s.deckData(counts))
	}
}

func (s *Server) deckData(counts domain.StageCounts) map[string]interface{} {
	state := s.eng.Activity()
	return map[string]interface{}{
		"New":           counts.New,
		"Learning":      counts.Learning,
		"Due":           counts.Due,
		"HasDueCards":   counts.Due > 0,
		"Streak":        state.CurrentStreak,
		"LongestStreak": state.LongestStreak,
		"TodayMinutes":  state.TodayMinutes,
		"DailyGoal":     state.DailyGoalMinutes,
		"WeeklyGoal":    state.WeeklyGoalDays,
		"GoalPercent":   int(s.eng.GoalProgress() * 100),
		"GoalMet":       s.eng.HasMetDailyGoal(),
	}
}

// handleStartSession begins a study session over all due cards, or over one
// source when a source ID is posted.
func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		scope := domain.AllCards()
		if v := r.PostFormValue("source"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				http.Error(w, "Invalid source ID", http.StatusBadRequest)
				return
			}
			scope = domain.SourceScope(id)
		}
		if _, err := s.eng.StartSession(scope); err != nil {
			s.log.Error("start session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.renderSessionState(w)
	}
}

// handleShowAnswer renders the back of the current card with grading buttons.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		card, ok := s.eng.Current()
		if !ok {
			s.renderSessionState(w)
			return
		}
		previews := s.eng.PreviewIntervals(card)
		ratings := make([]ratingOption, 0, 4)
		for q := domain.Again; q <= domain.Easy; q++ {
			ratings = append(ratings, ratingOption{
				Value:   int(q),
				Label:   q.String(),
				Preview: previews[q],
			})
		}
		s.templates.ExecuteTemplate(w, "card_back", map[string]interface{}{
			"Card":      card,
			"Ratings":   ratings,
			"Clock":     s.eng.SessionClock(),
			"Remaining": s.eng.Remaining(),
		})
	}
}

// handleRate grades the current card and renders whatever comes next.
func (s *Server) handleRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v, err := strconv.Atoi(r.PostFormValue("quality"))
		if err != nil {
			http.Error(w, "Invalid quality", http.StatusBadRequest)
			return
		}
		if _, err := s.eng.Rate(domain.Quality(v)); err != nil {
			if errors.Is(err, domain.ErrInvalidQuality) {
				http.Error(w, "Invalid quality", http.StatusBadRequest)
				return
			}
			if !errors.Is(err, domain.ErrPersistFailed) {
				s.log.Error("rate card", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			// The rating was applied in memory; keep the session moving.
			s.log.Warn("card persist failed", "error", err)
		}
		s.renderSessionState(w)
	}
}

// handleSkip defers the current card to the end of the queue.
func (s *Server) handleSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.eng.Skip(); err != nil {
			s.log.Error("skip card", "error", err)
		}
		s.renderSessionState(w)
	}
}

// handleDeleteCurrent deletes the card under the cursor from the session and
// the store.
func (s *Server) handleDeleteCurrent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		card, ok := s.eng.Current()
		if !ok {
			s.renderSessionState(w)
			return
		}
		if err := s.eng.DeleteCard(card.ID); err != nil {
			s.log.Error("delete card", "card", card.ID, "error", err)
			http.Error(w, "Failed to delete card", http.StatusInternalServerError)
			return
		}
		s.renderSessionState(w)
	}
}

// handleEndSession records the finished session against the activity streak
// and returns to the deck.
func (s *Server) handleEndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		pages := 0
		if v := r.PostFormValue("pages"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				pages = n
			}
		}
		summary, err := s.eng.EndSession(pages)
		if err != nil {
			s.log.Warn("record session activity", "error", err)
		}
		state := s.eng.Activity()
		s.templates.ExecuteTemplate(w, "session_summary", map[string]interface{}{
			"Cards":   summary.CardsProcessed,
			"Minutes": summary.Minutes,
			"Streak":  state.CurrentStreak,
			"GoalMet": s.eng.HasMetDailyGoal(),
		})
	}
}

// handleAddCard creates a manual card and re-renders the deck overview.
func (s *Server) handleAddCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		front := strings.TrimSpace(r.PostFormValue("front"))
		back := strings.TrimSpace(r.PostFormValue("back"))
		if front == "" || back == "" {
			http.Error(w, "Front and back cannot be empty", http.StatusBadRequest)
			return
		}
		if _, err := s.eng.AddCard(front, back); err != nil {
			s.log.Error("add card", "error", err)
			http.Error(w, "Failed to add card", http.StatusInternalServerError)
			return
		}
		counts, err := s.eng.Counts(domain.AllCards())
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.templates.ExecuteTemplate(w, "deck", s.deckData(counts))
	}
}

// handleUpdateGoals applies daily/weekly goal edits and re-renders the deck.
func (s *Server) handleUpdateGoals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if v := r.PostFormValue("daily"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "Invalid daily goal", http.StatusBadRequest)
				return
			}
			if err := s.eng.UpdateDailyGoal(n); err != nil {
				s.log.Warn("update daily goal", "error", err)
			}
		}
		if v := r.PostFormValue("weekly"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "Invalid weekly goal", http.StatusBadRequest)
				return
			}
			if err := s.eng.UpdateWeeklyGoal(n); err != nil {
				s.log.Warn("update weekly goal", "error", err)
			}
		}
		counts, err := s.eng.Counts(domain.AllCards())
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.templates.ExecuteTemplate(w, "deck", s.deckData(counts))
	}
}

// renderSessionState renders the view matching the queue's current phase:
// the next card front while active, the wrap-up form once complete, and the
// deck overview otherwise.
func (s *Server) renderSessionState(w http.ResponseWriter) {
	switch s.eng.Phase() {
	case queue.Active:
		card, ok := s.eng.Current()
		if !ok {
			break
		}
		s.templates.ExecuteTemplate(w, "card_front", map[string]interface{}{
			"Card":      card,
			"Clock":     s.eng.SessionClock(),
			"Remaining": s.eng.Remaining(),
		})
		return
	case queue.Complete:
		processed, avg := s.eng.SessionStats()
		s.templates.ExecuteTemplate(w, "session_done", map[string]interface{}{
			"Cards":      processed,
			"Clock":      s.eng.SessionClock(),
			"AvgSeconds": fmt.Sprintf("%.1f", avg),
		})
		return
	}
	counts, err := s.eng.Counts(domain.AllCards())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.templates.ExecuteTemplate(w, "deck", s.deckData(counts))
}

// handlePostSync triggers a manual sync and re-renders the source list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := sync.Run(r.Context(), s.db, s.clk, s.reposDir); err != nil {
			s.log.Error("sync failed", "error", err)
			http.Error(w, "Sync failed", http.StatusInternalServerError)
			return
		}

		sources, err := s.db.GetAllSources()
		if err != nil {
			s.log.Error("list sources after sync", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.templates.ExecuteTemplate(w, "sync_success", nil)
		s.templates.ExecuteTemplate(w, "source_list", map[string]interface{}{"Sources": sources})
	}
}

// handleSources handles both GET and POST for the sources page.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSources(w, r)
		case http.MethodPost:
			s.handlePostSource(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleGetSources renders the sources management page.
func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.log.Error("list sources", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.templates.ExecuteTemplate(w, "sources", map[string]interface{}{"Sources": sources})
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.PostFormValue("path"))
	if path == "" {
		http.Error(w, "Path cannot be empty", http.StatusBadRequest)
		return
	}

	sourceType := "local"
	if sync.IsGitURL(path) {
		sourceType = "git"
	}

	if _, err := s.db.InsertSource(path, sourceType); err != nil {
		s.log.Error("insert source", "path", path, "error", err)
		http.Error(w, "Failed to add source", http.StatusInternalServerError)
		return
	}

	sources, err := s.db.GetAllSources()
	if err != nil {
		s.log.Error("list sources after add", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.templates.ExecuteTemplate(w, "source_list", map[string]interface{}{"Sources": sources})
}

// handleDeleteSource deletes a source and its cards, then re-renders the
// source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/sources/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}

		if err := s.db.DeleteSource(id); err != nil {
			s.log.Error("delete source", "id", id, "error", err)
			http.Error(w, "Failed to delete source", http.StatusInternalServerError)
			return
		}

		sources, err := s.db.GetAllSources()
		if err != nil {
			s.log.Error("list sources after delete", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.templates.ExecuteTemplate(w, "source_list", map[string]interface{}{"Sources": sources})
	}
}
