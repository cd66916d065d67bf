package srs

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
)

func newCard() domain.Flashcard {
	return domain.Flashcard{
		ID:          "card-1",
		Front:       "bonjour",
		Back:        "hello",
		Interval:    domain.InitialInterval,
		EaseFactor:  domain.InitialEaseFactor,
		ReviewCount: 0,
	}
}

func TestScheduleRejectsInvalidScore(t *testing.T) {
	engine := NewEngine()
	now := time.Now()

	for _, score := range []RecallScore{-1, 6, 42} {
		card := newCard()
		before := card

		err := engine.Schedule(&card, score, now)
		if err == nil {
			t.Fatalf("Expected an error for score %d, got none", score)
		}
		var invalid ErrInvalidScore
		if !errors.As(err, &invalid) {
			t.Errorf("Expected ErrInvalidScore for score %d, got %v", score, err)
		}
		if !reflect.DeepEqual(card, before) {
			t.Errorf("Card was mutated by a rejected score %d", score)
		}
	}
}

func TestScheduleSuccessfulProgression(t *testing.T) {
	engine := NewEngine()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	card := newCard()

	// First perfect review: fixed 1 day interval, ease 2.5 + 0.1.
	if err := engine.Schedule(&card, PerfectRecall, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if card.ReviewCount != 1 {
		t.Errorf("Expected review count 1, got %d", card.ReviewCount)
	}
	if card.Interval != 1.0 {
		t.Errorf("Expected interval 1 after first review, got %.2f", card.Interval)
	}
	if math.Abs(card.EaseFactor-2.6) > 1e-9 {
		t.Errorf("Expected ease 2.6 after first review, got %.4f", card.EaseFactor)
	}
	if !card.DueDate.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("Expected due date one day out, got %v", card.DueDate)
	}

	// Second perfect review: fixed 6 day interval.
	if err := engine.Schedule(&card, PerfectRecall, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if card.Interval != 6.0 {
		t.Errorf("Expected interval 6 after second review, got %.2f", card.Interval)
	}

	// Third perfect review: previous interval times the pre-review ease (2.7).
	if err := engine.Schedule(&card, PerfectRecall, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if math.Abs(card.Interval-6.0*2.7) > 1e-9 {
		t.Errorf("Expected interval %.2f after third review, got %.2f", 6.0*2.7, card.Interval)
	}
	if card.ReviewCount != 3 {
		t.Errorf("Expected review count 3, got %d", card.ReviewCount)
	}
}

func TestScheduleIncorrectShrinksInterval(t *testing.T) {
	engine := NewEngine()
	now := time.Now()

	testCases := []struct {
		name     string
		interval float64
	}{
		{name: "new card", interval: 1.0},
		{name: "young card", interval: 4.0},
		{name: "mature card", interval: 120.0},
		{name: "sub-day card", interval: 0.2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			card := newCard()
			card.Interval = tc.interval
			card.ReviewCount = 5

			if err := engine.Schedule(&card, CompleteBlackout, now); err != nil {
				t.Fatalf("Schedule returned error: %v", err)
			}
			if card.Interval > tc.interval {
				t.Errorf("Interval grew after a failed review: %.2f > %.2f", card.Interval, tc.interval)
			}
			if card.Interval > engine.MaxAgainInterval {
				t.Errorf("Interval %.2f exceeds the failed-review cap %.2f", card.Interval, engine.MaxAgainInterval)
			}
			if card.DueDate.After(now.Add(24 * time.Hour)) {
				t.Errorf("Failed card due more than a day out: %v", card.DueDate)
			}
		})
	}
}

func TestScheduleIncorrectSoonerThanCorrect(t *testing.T) {
	engine := NewEngine()
	now := time.Now()

	failed := newCard()
	failed.Interval = 10
	failed.ReviewCount = 4
	passed := failed

	if err := engine.Schedule(&failed, IncorrectFamiliar, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if err := engine.Schedule(&passed, CorrectHesitation, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	if !failed.DueDate.Before(passed.DueDate) {
		t.Errorf("Failed review due %v should be before passed review due %v", failed.DueDate, passed.DueDate)
	}
}

func TestEaseFactorNeverBelowFloor(t *testing.T) {
	engine := NewEngine()
	now := time.Now()
	card := newCard()

	for i := 0; i < 50; i++ {
		if err := engine.Schedule(&card, CompleteBlackout, now); err != nil {
			t.Fatalf("Schedule returned error: %v", err)
		}
		if card.EaseFactor < engine.MinEaseFactor {
			t.Fatalf("Ease factor %.4f dropped below floor %.2f on review %d", card.EaseFactor, engine.MinEaseFactor, i+1)
		}
	}
}

func TestScheduleIsDeterministic(t *testing.T) {
	engine := NewEngine()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := newCard()
	b := newCard()
	a.Interval, b.Interval = 13.5, 13.5
	a.EaseFactor, b.EaseFactor = 2.1, 2.1
	a.ReviewCount, b.ReviewCount = 7, 7

	if err := engine.Schedule(&a, CorrectDifficult, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if err := engine.Schedule(&b, CorrectDifficult, now); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("Two schedules of identical state diverged: %+v vs %+v", a, b)
	}
}

func TestReset(t *testing.T) {
	engine := NewEngine()
	now := time.Now()
	card := newCard()
	card.Interval = 42
	card.EaseFactor = 1.3
	card.ReviewCount = 12

	engine.Reset(&card, now)

	if card.Interval != domain.InitialInterval {
		t.Errorf("Expected interval %v after reset, got %.2f", domain.InitialInterval, card.Interval)
	}
	if card.EaseFactor != domain.InitialEaseFactor {
		t.Errorf("Expected ease %v after reset, got %.2f", domain.InitialEaseFactor, card.EaseFactor)
	}
	if card.ReviewCount != 0 {
		t.Errorf("Expected review count 0 after reset, got %d", card.ReviewCount)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()

	card := newCard()
	card.DueDate = now.Add(-time.Hour)
	if !IsDue(card, now) {
		t.Error("Card due an hour ago should be due")
	}

	card.DueDate = now.Add(time.Hour)
	if IsDue(card, now) {
		t.Error("Card due in an hour should not be due")
	}

	card.DueDate = time.Time{}
	if !IsDue(card, now) {
		t.Error("Card with no due date should be due")
	}
}
