// Package training implements the card presentation modes. Each trainer turns
// a card into a prompt and grades the submitted answer into a recall score;
// applying that score to the card's schedule is the review session's job.
package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/llm"
	"github.com/ankichat/ankichat/internal/srs"
)

// Mode selects how cards are presented and graded during a session.
type Mode string

const (
	ModeStandard       Mode = "standard"
	ModeFillInBlank    Mode = "fill_in_blank"
	ModeMultipleChoice Mode = "multiple_choice"
)

// ParseMode converts a user-supplied mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStandard:
		return ModeStandard, nil
	case ModeFillInBlank:
		return ModeFillInBlank, nil
	case ModeMultipleChoice:
		return ModeMultipleChoice, nil
	}
	return "", fmt.Errorf("unknown training mode %q", s)
}

// Generator is the content-generation collaborator used by the fill-in-blank
// and multiple-choice trainers. llm.ErrUnavailable from either method is an
// expected outcome and triggers degradation, never a session failure.
type Generator interface {
	GenerateBlank(ctx context.Context, card domain.Flashcard) (llm.Blank, error)
	GenerateDistractors(ctx context.Context, card domain.Flashcard, n int) ([]string, error)
}

// Prompt is one presentable exercise for a card.
type Prompt struct {
	Mode     Mode
	Front    string
	Text     string
	Choices  []string // multiple choice only
	Expected string   // the answer the grader compares against
	Degraded bool     // true when a richer mode fell back to standard
}

// Result is the graded outcome of a submitted answer.
type Result struct {
	Correct       bool
	Score         srs.RecallScore
	CorrectAnswer string
	Submitted     string
	Similarity    float64
}

// ErrInvalidAnswer reports a malformed answer, such as a multiple-choice
// selection that matches no option. The session stays where it was.
type ErrInvalidAnswer struct {
	Answer string
	Reason string
}

func (e ErrInvalidAnswer) Error() string {
	return fmt.Sprintf("invalid answer %q: %s", e.Answer, e.Reason)
}

// Trainer prepares prompts and grades answers for one training mode.
// Prepare is safe to call repeatedly for the same card; Grade is pure given
// (prompt, answer) and never touches the card's scheduling metadata.
type Trainer interface {
	Prepare(ctx context.Context, card domain.Flashcard) (Prompt, error)
	Grade(card domain.Flashcard, prompt Prompt, answer string) (Result, error)
}

// New builds the trainer for a mode. The generator may be nil for ModeStandard.
func New(mode Mode, gen Generator) (Trainer, error) {
	switch mode {
	case ModeStandard:
		return &StandardTrainer{}, nil
	case ModeFillInBlank:
		return &FillInBlankTrainer{gen: gen}, nil
	case ModeMultipleChoice:
		return &MultipleChoiceTrainer{gen: gen}, nil
	}
	return nil, fmt.Errorf("unknown training mode %q", mode)
}

// normalize lowercases and collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// similarity is a character-set Jaccard index between 0 and 1.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	setA := make(map[rune]bool)
	for _, r := range a {
		setA[r] = true
	}
	setB := make(map[rune]bool)
	for _, r := range b {
		setB[r] = true
	}

	var intersection int
	for r := range setA {
		if setB[r] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
