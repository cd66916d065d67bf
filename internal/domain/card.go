package domain

import (
	"time"

	"github.com/google/uuid"
)

// Default scheduling metadata for a freshly created card.
const (
	InitialInterval   = 1.0
	InitialEaseFactor = 2.5
)

// Flashcard is a single front/back card with its scheduling metadata.
// Content fields are only changed by explicit edits; the scheduling fields
// (Interval, EaseFactor, ReviewCount, DueDate) are owned by the srs package.
type Flashcard struct {
	ID        string
	Front     string
	Back      string
	Language  string
	DeckID    string
	Tags      []string
	CreatedAt time.Time

	Interval    float64 // days until the next review
	EaseFactor  float64
	ReviewCount int
	DueDate     time.Time
}

// NewFlashcard creates a card with default scheduling metadata, due immediately.
func NewFlashcard(front, back, language string) Flashcard {
	now := time.Now()
	return Flashcard{
		ID:          uuid.NewString(),
		Front:       front,
		Back:        back,
		Language:    language,
		CreatedAt:   now,
		Interval:    InitialInterval,
		EaseFactor:  InitialEaseFactor,
		ReviewCount: 0,
		DueDate:     now,
	}
}

// Deck groups cards for one user. Card membership lives on the card's DeckID.
type Deck struct {
	ID          string
	Name        string
	Description string
	UserID      string
	CreatedAt   time.Time
}

// NewDeck creates an empty deck owned by the given user.
func NewDeck(name, description, userID string) Deck {
	return Deck{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		UserID:      userID,
		CreatedAt:   time.Now(),
	}
}

// ReviewResult records the outcome of reviewing one card, including the
// scheduling state after the review was applied. It is not persisted.
type ReviewResult struct {
	CardID    string
	Submitted string
	Correct   bool
	Score     int

	Interval    float64
	EaseFactor  float64
	ReviewCount int
	DueDate     time.Time
}
