package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/finnvolkel/margin/internal/activity"
	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/config"
	"github.com/finnvolkel/margin/internal/engine"
	"github.com/finnvolkel/margin/internal/storage"
	"github.com/finnvolkel/margin/internal/sync"
	"github.com/finnvolkel/margin/internal/web"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("Failed to load timezone %s: %v", cfg.Timezone, err)
		}
	}
	clk := clock.System{Loc: loc}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB)

	// One-shot mode: register a source and exit.
	if path, _ := flags.GetString("add-source"); path != "" {
		if err := addNewSource(db, path); err != nil {
			log.Fatalf("Failed to add source: %v", err)
		}
		return
	}

	tracker, err := activity.NewTracker(db, clk)
	if err != nil {
		log.Fatalf("Failed to load activity state: %v", err)
	}
	if err := tracker.CheckStreakStatus(); err != nil {
		slog.Warn("streak check failed", "error", err)
	}

	eng, err := engine.New(db, tracker, clk, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	if runSync, _ := flags.GetBool("sync"); runSync {
		if err := sync.Run(context.Background(), db, clk, cfg.Repos); err != nil {
			slog.Error("initial sync failed", "error", err)
		}
	}

	server, err := web.NewServer(eng, db, clk, cfg.Repos, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	slog.Info("listening", "addr", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, server); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// addNewSource registers a deck source unless it is already known.
func addNewSource(db *storage.DB, path string) error {
	existing, err := db.FindSourceByPath(path)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Printf("Source already registered: %s\n", path)
		return nil
	}
	sourceType := "local"
	if sync.IsGitURL(path) {
		sourceType = "git"
	}
	id, err := db.InsertSource(path, sourceType)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s source %s (id %d). Run with --sync to import its cards.\n", sourceType, path, id)
	return nil
}
