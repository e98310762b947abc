// Package sync reconciles deck sources into the local database.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/flipdeck/internal/cardhash"
	"github.com/conorfennell/flipdeck/internal/gitsource"
	"github.com/conorfennell/flipdeck/internal/parser"
	"github.com/conorfennell/flipdeck/internal/storage"
)

const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Result summarizes the reconciliation of one source.
type Result struct {
	SourceID int64
	Path     string
	Parsed   int
	Orphaned int
	Errors   []error
}

// Syncer walks every configured source and mirrors its cards into the deck.
type Syncer struct {
	DB       *storage.DB
	ReposDir string
	Progress io.Writer
	Now      func() time.Time
}

// SourceType guesses whether path names a git remote or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return SourceGit
	}
	return SourceLocal
}

// AddSource registers a deck source unless it is already known.
func AddSource(db *storage.DB, path string) (int64, error) {
	if existing, err := db.FindSourceByPath(path); err != nil {
		return 0, err
	} else if existing != nil {
		return existing.ID, nil
	}
	return db.InsertSource(path, SourceType(path))
}

// Run reconciles all sources. A failing source is logged and reported in
// its Result; the others still sync.
func (s *Syncer) Run(ctx context.Context) ([]Result, error) {
	slog.Info("starting sync of all deck sources")
	sources, err := s.DB.GetAllSources()
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no sources configured, add one with: flipdeck add-source <path/or/url.git>")
		return nil, nil
	}

	if err := os.MkdirAll(s.ReposDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repos directory: %w", err)
	}

	var results []Result
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		results = append(results, s.syncSource(ctx, source))
	}
	slog.Info("sync complete", "sources", len(results))
	return results, nil
}

func (s *Syncer) syncSource(ctx context.Context, source storage.Source) Result {
	dir := source.Path
	if source.Type == SourceGit {
		localPath, err := gitURLToLocalPath(s.ReposDir, source.Path)
		if err != nil {
			slog.Error("failed to determine local path for git repo", "url", source.Path, "error", err)
			return Result{SourceID: source.ID, Path: source.Path, Errors: []error{err}}
		}
		if err := gitsource.Sync(ctx, source.Path, localPath, s.Progress); err != nil {
			slog.Error("failed to sync git repo", "url", source.Path, "error", err)
			return Result{SourceID: source.ID, Path: source.Path, Errors: []error{err}}
		}
		dir = localPath
	}
	return s.Reconcile(source.ID, dir)
}

// Reconcile imports every *.md deck under dir for the given source and
// detaches cards the source no longer lists. Cards no source lists are
// deleted. Nothing is detached when any file failed to parse.
func (s *Syncer) Reconcile(sourceID int64, dir string) Result {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	res := Result{SourceID: sourceID, Path: dir}
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			res.Errors = append(res.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range cards {
			card.ID = cardhash.Hash(card)
			res.Parsed++
			if found[card.ID] {
				continue
			}
			found[card.ID] = true
			if err := s.DB.UpsertCard(card, sourceID, now()); err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("db upsert for %s: %w", card.ID, err))
			}
		}
		return nil
	})
	if walkErr != nil {
		slog.Error("failed to walk directory", "path", dir, "error", walkErr)
		res.Errors = append(res.Errors, walkErr)
		return res
	}

	// A file that failed to parse contributed nothing to found.
	if len(res.Errors) > 0 {
		slog.Warn("skipping orphan removal after errors", "source_id", sourceID, "errors", len(res.Errors))
		return res
	}

	ids, err := s.DB.GetCardIDsBySourceID(sourceID)
	if err != nil {
		slog.Error("failed to get cards for source", "source_id", sourceID, "error", err)
		res.Errors = append(res.Errors, err)
		return res
	}
	for _, id := range ids {
		if found[id] {
			continue
		}
		res.Orphaned++
		deleted, err := s.DB.DetachCard(id, sourceID)
		if err != nil {
			slog.Warn("failed to detach orphaned card", "card_id", id, "error", err)
			res.Errors = append(res.Errors, err)
			continue
		}
		slog.Info("orphaned card detached", "card_id", id, "source_id", sourceID, "deleted", deleted)
	}

	if err := s.DB.UpdateSourceLastScanned(sourceID, now()); err != nil {
		slog.Warn("failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", res.Parsed,
		"orphaned", res.Orphaned,
		"errors", len(res.Errors),
	)
	return res
}

// Err joins the errors of a result, nil if there were none.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:owner/repo.git
		if user, rest, ok := strings.Cut(repoURL, "@"); ok && user != "" {
			if host, repoPath, ok := strings.Cut(rest, ":"); ok && host != "" && repoPath != "" {
				return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
