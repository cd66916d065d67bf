package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/gitsource"
	"github.com/ankichat/ankichat/internal/parser"
	"github.com/ankichat/ankichat/internal/storage"
)

// Importer reconciles card files on disk (or in git repositories) with the
// database. Each card file becomes a deck; cards are matched by content hash
// so edits replace the old card and removals prune it.
type Importer struct {
	db       *storage.DB
	userID   string
	reposDir string
	onDelete func(cardID string)
}

// New creates an Importer for the given user. onDelete is invoked for every
// card removed during reconciliation; it may be nil.
func New(db *storage.DB, userID, reposDir string, onDelete func(cardID string)) *Importer {
	if onDelete == nil {
		onDelete = func(string) {}
	}
	return &Importer{db: db, userID: userID, reposDir: reposDir, onDelete: onDelete}
}

// Run iterates over all sources and reconciles them. A source is either a
// local directory or a git URL; git sources are cloned or pulled first.
func (im *Importer) Run(ctx context.Context, sources []string) error {
	if len(sources) == 0 {
		slog.Info("no card sources configured")
		return nil
	}

	if err := os.MkdirAll(im.reposDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("importing source", "source", source)

		dir := source
		if isGitSource(source) {
			localPath, err := gitURLToLocalPath(im.reposDir, source)
			if err != nil {
				slog.Error("error determining local path for git repo", "url", source, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source, localPath); err != nil {
				slog.Error("error syncing git repo", "url", source, "error", err)
				continue
			}
			dir = localPath
		}

		if err := im.reconcileDir(ctx, dir); err != nil {
			slog.Error("error reconciling source", "source", source, "error", err)
		}
	}
	return nil
}

func (im *Importer) reconcileDir(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if err := im.reconcileFile(ctx, root, path); err != nil {
			slog.Warn("failed to reconcile card file", "path", path, "error", err)
		}
		return nil
	})
}

// reconcileFile upserts one card file into its deck. The deck is named by
// the file's path relative to the source root.
func (im *Importer) reconcileFile(ctx context.Context, root, path string) error {
	parsed, err := parser.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	deck, err := im.deckForFile(ctx, root, path)
	if err != nil {
		return err
	}

	existing, err := im.db.GetCardsByDeck(ctx, deck.ID)
	if err != nil {
		return fmt.Errorf("loading deck %s: %w", deck.Name, err)
	}

	existingByHash := make(map[string]domain.Flashcard, len(existing))
	for _, card := range existing {
		existingByHash[ContentHash(card.Front, card.Back, card.Language)] = card
	}

	seen := make(map[string]bool, len(parsed))
	var inserted int
	for _, pc := range parsed {
		hash := ContentHash(pc.Front, pc.Back, pc.Language)
		if seen[hash] {
			continue
		}
		seen[hash] = true
		if _, ok := existingByHash[hash]; ok {
			continue
		}

		card := domain.NewFlashcard(pc.Front, pc.Back, pc.Language)
		card.DeckID = deck.ID
		card.Tags = pc.Tags
		if err := im.db.InsertCard(ctx, card); err != nil {
			slog.Warn("failed to insert card", "deck", deck.Name, "error", err)
			continue
		}
		inserted++
	}

	var pruned int
	for hash, card := range existingByHash {
		if seen[hash] {
			continue
		}
		if err := im.db.DeleteCard(ctx, card.ID); err != nil {
			slog.Warn("failed to delete orphaned card", "card", card.ID, "error", err)
			continue
		}
		im.onDelete(card.ID)
		pruned++
	}

	slog.Info("reconciled card file",
		"path", path,
		"deck", deck.Name,
		"parsed", len(parsed),
		"inserted", inserted,
		"pruned", pruned,
	)
	return nil
}

func (im *Importer) deckForFile(ctx context.Context, root, path string) (domain.Deck, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	name := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))

	deck, err := im.db.GetDeckByName(ctx, im.userID, name)
	if err == nil {
		return deck, nil
	}
	if err != storage.ErrNotFound {
		return domain.Deck{}, fmt.Errorf("looking up deck %s: %w", name, err)
	}

	deck = domain.NewDeck(name, "imported from "+path, im.userID)
	if err := im.db.CreateDeck(ctx, deck); err != nil {
		return domain.Deck{}, fmt.Errorf("creating deck %s: %w", name, err)
	}
	return deck, nil
}

func isGitSource(source string) bool {
	if strings.HasSuffix(source, ".git") {
		return true
	}
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "ssh")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http" && parsedURL.Scheme != "ssh") {
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

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
