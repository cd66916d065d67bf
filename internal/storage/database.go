package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// ErrNotFound is returned when a deck or card does not exist. Callers must
// be able to tell it apart from a failed write.
var ErrNotFound = errors.New("not found")

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateDeck stores a new deck.
func (db *DB) CreateDeck(ctx context.Context, deck domain.Deck) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO decks (id, name, description, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, deck.ID, deck.Name, deck.Description, deck.UserID, deck.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deck %s: %w", deck.ID, err)
	}
	return nil
}

// GetDeck retrieves a deck by ID.
func (db *DB) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	var d domain.Deck
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, description, user_id, created_at
		FROM decks WHERE id = ?
	`, deckID)

	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.UserID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Deck{}, ErrNotFound
		}
		return domain.Deck{}, fmt.Errorf("failed to get deck %s: %w", deckID, err)
	}
	return d, nil
}

// GetDeckByName retrieves a user's deck by its name.
func (db *DB) GetDeckByName(ctx context.Context, userID, name string) (domain.Deck, error) {
	var d domain.Deck
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, description, user_id, created_at
		FROM decks WHERE user_id = ? AND name = ?
	`, userID, name)

	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.UserID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Deck{}, ErrNotFound
		}
		return domain.Deck{}, fmt.Errorf("failed to get deck %q: %w", name, err)
	}
	return d, nil
}

// ListDecks retrieves all decks owned by a user.
func (db *DB) ListDecks(ctx context.Context, userID string) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, description, user_id, created_at
		FROM decks WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks for user %s: %w", userID, err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.UserID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// RenameDeck changes a deck's name.
func (db *DB) RenameDeck(ctx context.Context, deckID, newName string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE decks SET name = ? WHERE id = ?
	`, newName, deckID)
	if err != nil {
		return fmt.Errorf("failed to rename deck %s: %w", deckID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename deck %s: %w", deckID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDeck removes a deck, its cards, and their difficulty markers.
func (db *DB) DeleteDeck(ctx context.Context, deckID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of deck %s: %w", deckID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM difficult_cards
		WHERE card_id IN (SELECT id FROM cards WHERE deck_id = ?)
	`, deckID); err != nil {
		return fmt.Errorf("failed to delete markers for deck %s: %w", deckID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE deck_id = ?`, deckID); err != nil {
		return fmt.Errorf("failed to delete cards for deck %s: %w", deckID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, deckID)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deckID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deckID, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// InsertCard stores a new card.
func (db *DB) InsertCard(ctx context.Context, card domain.Flashcard) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, deck_id, front, back, language, tags, created_at,
			interval, ease_factor, review_count, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.DeckID,
		card.Front,
		card.Back,
		card.Language,
		joinTags(card.Tags),
		card.CreatedAt,
		card.Interval,
		card.EaseFactor,
		card.ReviewCount,
		card.DueDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card by ID.
func (db *DB) GetCard(ctx context.Context, cardID string) (domain.Flashcard, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, deck_id, front, back, language, tags, created_at,
			interval, ease_factor, review_count, due_date
		FROM cards WHERE id = ?
	`, cardID)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Flashcard{}, ErrNotFound
		}
		return domain.Flashcard{}, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}
	return card, nil
}

// SaveCard persists a card's current state. Fields not touched by the caller
// round-trip unchanged because the whole row is written.
func (db *DB) SaveCard(ctx context.Context, card domain.Flashcard) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET deck_id = ?, front = ?, back = ?, language = ?, tags = ?,
			interval = ?, ease_factor = ?, review_count = ?, due_date = ?
		WHERE id = ?
	`,
		card.DeckID,
		card.Front,
		card.Back,
		card.Language,
		joinTags(card.Tags),
		card.Interval,
		card.EaseFactor,
		card.ReviewCount,
		card.DueDate,
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCard removes a card and its difficulty markers.
func (db *DB) DeleteCard(ctx context.Context, cardID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM difficult_cards WHERE card_id = ?`, cardID); err != nil {
		return fmt.Errorf("failed to delete markers for card %s: %w", cardID, err)
	}
	_, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", cardID, err)
	}
	return nil
}

// GetCardsByDeck retrieves all cards in a deck.
func (db *DB) GetCardsByDeck(ctx context.Context, deckID string) ([]domain.Flashcard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, deck_id, front, back, language, tags, created_at,
			interval, ease_factor, review_count, due_date
		FROM cards WHERE deck_id = ?
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// GetDueCards retrieves all of a user's cards due at the given time, oldest
// due date first.
func (db *DB) GetDueCards(ctx context.Context, userID string, now time.Time) ([]domain.Flashcard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.deck_id, c.front, c.back, c.language, c.tags, c.created_at,
			c.interval, c.ease_factor, c.review_count, c.due_date
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE d.user_id = ? AND c.due_date <= ?
		ORDER BY c.due_date, c.id
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// MarkDifficult records a per-user difficulty marker for a card.
func (db *DB) MarkDifficult(ctx context.Context, userID, cardID string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO difficult_cards (user_id, card_id, marked_at)
		VALUES (?, ?, ?)
	`, userID, cardID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark card %s difficult: %w", cardID, err)
	}
	return nil
}

// ClearDifficult removes a card's difficulty marker for a user.
func (db *DB) ClearDifficult(ctx context.Context, userID, cardID string) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM difficult_cards WHERE user_id = ? AND card_id = ?
	`, userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to clear difficulty for card %s: %w", cardID, err)
	}
	return nil
}

// DifficultCardIDs returns the set of cards a user has marked difficult.
func (db *DB) DifficultCardIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id FROM difficult_cards WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get difficult cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan difficult card row: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Flashcard, error) {
	var card domain.Flashcard
	var tags string
	err := row.Scan(
		&card.ID,
		&card.DeckID,
		&card.Front,
		&card.Back,
		&card.Language,
		&tags,
		&card.CreatedAt,
		&card.Interval,
		&card.EaseFactor,
		&card.ReviewCount,
		&card.DueDate,
	)
	if err != nil {
		return domain.Flashcard{}, err
	}
	card.Tags = splitTags(tags)
	return card, nil
}

func collectCards(rows *sql.Rows) ([]domain.Flashcard, error) {
	var cards []domain.Flashcard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
