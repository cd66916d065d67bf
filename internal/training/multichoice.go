package training

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/srs"
)

// DistractorCount is how many wrong options accompany the correct answer.
const DistractorCount = 3

// MultipleChoiceTrainer presents the card front with the correct back mixed
// into generator-produced distractors. Without usable distractors the card
// is served in standard form.
type MultipleChoiceTrainer struct {
	gen Generator
}

func (t *MultipleChoiceTrainer) Prepare(ctx context.Context, card domain.Flashcard) (Prompt, error) {
	if t.gen == nil {
		return degraded(card), nil
	}

	distractors, err := t.gen.GenerateDistractors(ctx, card, DistractorCount)
	if err != nil {
		slog.Info("Distractor generation unavailable, serving card in standard mode",
			"card_id", card.ID, "error", err)
		return degraded(card), nil
	}
	if len(distractors) == 0 {
		slog.Info("No usable distractors, serving card in standard mode", "card_id", card.ID)
		return degraded(card), nil
	}

	choices := make([]string, 0, len(distractors)+1)
	choices = append(choices, card.Back)
	choices = append(choices, distractors...)
	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	return Prompt{
		Mode:     ModeMultipleChoice,
		Front:    card.Front,
		Text:     "Choose the correct answer.",
		Choices:  choices,
		Expected: card.Back,
	}, nil
}

// Grade accepts either a 1-based choice number or the exact choice text.
// An answer matching no choice is a validation error, not an incorrect
// review: the caller should re-prompt without advancing.
func (t *MultipleChoiceTrainer) Grade(_ domain.Flashcard, prompt Prompt, answer string) (Result, error) {
	if prompt.Mode == ModeStandard {
		return gradeStandard(prompt, answer), nil
	}

	selected, ok := selectChoice(prompt.Choices, answer)
	if !ok {
		return Result{}, ErrInvalidAnswer{Answer: answer, Reason: "matches no choice"}
	}

	correct := selected == prompt.Expected
	score := srs.IncorrectRecognized
	if correct {
		score = srs.PerfectRecall
	}

	return Result{
		Correct:       correct,
		Score:         score,
		CorrectAnswer: prompt.Expected,
		Submitted:     answer,
	}, nil
}

func selectChoice(choices []string, answer string) (string, bool) {
	trimmed := strings.TrimSpace(answer)

	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
		return "", false
	}

	for _, choice := range choices {
		if strings.EqualFold(trimmed, strings.TrimSpace(choice)) {
			return choice, true
		}
	}
	return "", false
}
