package srs

import (
	"fmt"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
)

// RecallScore is the user's recall quality on the SM-2 0-5 scale.
type RecallScore int

const (
	CompleteBlackout    RecallScore = 0 // no recall at all
	IncorrectRecognized RecallScore = 1 // wrong, recognized the answer when shown
	IncorrectFamiliar   RecallScore = 2 // wrong, answer felt familiar
	CorrectDifficult    RecallScore = 3 // correct with significant difficulty
	CorrectHesitation   RecallScore = 4 // correct after some hesitation
	PerfectRecall       RecallScore = 5
)

// Valid reports whether the score is within the SM-2 scale.
func (s RecallScore) Valid() bool {
	return s >= CompleteBlackout && s <= PerfectRecall
}

// Correct reports whether the score counts as a successful recall.
func (s RecallScore) Correct() bool {
	return s >= CorrectDifficult
}

// ErrInvalidScore is returned when a score outside 0-5 is passed to Schedule.
// Out-of-range scores are rejected rather than clamped.
type ErrInvalidScore struct {
	Score RecallScore
}

func (e ErrInvalidScore) Error() string {
	return fmt.Sprintf("invalid recall score %d: must be between 0 and 5", e.Score)
}

// Engine implements the SuperMemo SM-2 scheduling algorithm.
type Engine struct {
	MinEaseFactor float64
	MaxEaseFactor float64

	// AgainModifier shrinks the interval after a failed recall. The resulting
	// interval is clamped to [MinAgainInterval, MaxAgainInterval] days so a
	// failed card always comes back within a day.
	AgainModifier    float64
	MinAgainInterval float64
	MaxAgainInterval float64
}

// NewEngine returns an engine with the standard SM-2 constants.
func NewEngine() *Engine {
	return &Engine{
		MinEaseFactor:    1.3,
		MaxEaseFactor:    5.0,
		AgainModifier:    0.2,
		MinAgainInterval: 0.2,
		MaxAgainInterval: 1.0,
	}
}

// Schedule applies one review outcome to the card's scheduling metadata.
//
// The ease factor is adjusted on every review using the SM-2 formula
// EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02)), clamped to the engine bounds.
// A failed recall shrinks the interval to at most a day; a successful one
// follows the 1 day, 6 days, then interval*ease progression. The new interval
// is always computed from the pre-review interval and ease.
func (e *Engine) Schedule(card *domain.Flashcard, score RecallScore, now time.Time) error {
	if !score.Valid() {
		return ErrInvalidScore{Score: score}
	}

	card.ReviewCount++

	q := float64(score)
	oldEase := card.EaseFactor
	oldInterval := card.Interval

	ease := oldEase + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	card.EaseFactor = clamp(ease, e.MinEaseFactor, e.MaxEaseFactor)

	var interval float64
	if score.Correct() {
		switch card.ReviewCount {
		case 1:
			interval = 1.0
		case 2:
			interval = 6.0
		default:
			interval = oldInterval * oldEase
		}
	} else {
		interval = clamp(oldInterval*e.AgainModifier, e.MinAgainInterval, e.MaxAgainInterval)
		if interval > oldInterval {
			interval = oldInterval
		}
	}

	card.Interval = interval
	card.DueDate = now.Add(days(interval))
	return nil
}

// Reset restores a card's scheduling metadata to its initial values,
// due again tomorrow.
func (e *Engine) Reset(card *domain.Flashcard, now time.Time) {
	card.Interval = domain.InitialInterval
	card.EaseFactor = domain.InitialEaseFactor
	card.ReviewCount = 0
	card.DueDate = now.Add(days(domain.InitialInterval))
}

// IsDue reports whether the card is due for review at the given time.
func IsDue(card domain.Flashcard, now time.Time) bool {
	if card.DueDate.IsZero() {
		return true
	}
	return !now.Before(card.DueDate)
}

func days(d float64) time.Duration {
	return time.Duration(d * 24 * float64(time.Hour))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
