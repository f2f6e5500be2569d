// Package sync reconciles configured deck sources with the card store: new
// cards are inserted immediately due, cards whose markdown disappeared are
// removed. Scheduling state of existing cards is never touched by a sync.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/finnvolkel/margin/internal/clock"
	"github.com/finnvolkel/margin/internal/deck"
	"github.com/finnvolkel/margin/internal/domain"
	"github.com/finnvolkel/margin/internal/gitsource"
	"github.com/finnvolkel/margin/internal/storage"
)

// IsGitURL reports whether a source path names a git remote rather than a
// local directory.
func IsGitURL(path string) bool {
	return strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://")
}

// Run iterates over all sources and reconciles each one. reposDir is where
// git sources are mirrored locally.
func Run(ctx context.Context, db *storage.DB, clk clock.Clock, reposDir string) error {
	slog.Info("starting sync for all sources")
	sources, err := db.GetAllSources()
	if err != nil {
		return fmt.Errorf("get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return fmt.Errorf("create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		scanPath := source.Path
		if source.Type == "git" {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("cannot map git url to local path", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath); err != nil {
				slog.Error("git sync failed", "url", source.Path, "error", err)
				continue
			}
			scanPath = localRepoPath
		}

		reconcileSource(db, clk, source.ID, scanPath)
	}
	slog.Info("sync complete")
	return nil
}

// reconcileSource walks one source directory, inserting unknown cards and
// deleting orphans whose markdown no longer exists.
func reconcileSource(db *storage.DB, clk clock.Clock, sourceID int64, root string) {
	var parsed, inserted int
	var errs []error
	foundHashes := make(map[string]bool)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, parseErr := deck.ParseFile(path)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range fileCards {
			parsed++
			hash := deck.Hash(card)
			foundHashes[hash] = true

			_, findErr := db.FindCardByHash(hash)
			if findErr == nil {
				continue // already imported
			}
			if !errors.Is(findErr, domain.ErrCardNotFound) {
				errs = append(errs, fmt.Errorf("db check for %s: %w", hash, findErr))
				continue
			}

			fresh := domain.NewCard(card.Front, card.Back, clk.Now())
			fresh.SourceID = &sourceID
			fresh.SourcePage = card.SourcePage
			fresh.Excerpt = card.Excerpt
			if insertErr := db.InsertCard(fresh, hash); insertErr != nil {
				errs = append(errs, fmt.Errorf("inserting %s: %w", hash, insertErr))
				continue
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		slog.Error("error walking source directory", "path", root, "error", walkErr)
		return
	}

	dbCards, err := db.GetCardsBySourceID(sourceID)
	if err != nil {
		slog.Error("error listing cards for source", "source_id", sourceID, "error", err)
		return
	}

	var orphaned int
	for _, dbCard := range dbCards {
		hash, err := db.CardContentHash(dbCard.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading hash for %s: %w", dbCard.ID, err))
			continue
		}
		if hash == "" || foundHashes[hash] {
			continue
		}
		slog.Info("orphaned card, deleting", "card", dbCard.ID)
		orphaned++
		if err := db.DeleteCard(dbCard.ID); err != nil {
			slog.Warn("failed to delete orphaned card", "card", dbCard.ID, "error", err)
		}
	}

	if err := db.UpdateSourceLastScanned(sourceID, clk.Now()); err != nil {
		slog.Warn("failed to stamp source", "source_id", sourceID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", root,
		"parsed_cards", parsed,
		"inserted", inserted,
		"orphaned_deleted", orphaned,
		"errors", len(errs),
	)
}

// gitURLToLocalPath maps a git URL onto a stable cache path under baseDir.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitized := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitized), nil
}
