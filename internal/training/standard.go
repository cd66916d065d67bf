package training

import (
	"context"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/srs"
)

// nearMatchThreshold is the Jaccard similarity above which a normalized
// answer that is not an exact match still counts as correct.
const nearMatchThreshold = 0.8

// StandardTrainer shows the card front and expects the back. It never uses
// the content generator, so it is also the degradation target for the
// richer modes.
type StandardTrainer struct{}

func (t *StandardTrainer) Prepare(_ context.Context, card domain.Flashcard) (Prompt, error) {
	return standardPrompt(card), nil
}

func standardPrompt(card domain.Flashcard) Prompt {
	return Prompt{
		Mode:     ModeStandard,
		Front:    card.Front,
		Text:     "Recall the answer to this flashcard.",
		Expected: card.Back,
	}
}

func (t *StandardTrainer) Grade(_ domain.Flashcard, prompt Prompt, answer string) (Result, error) {
	return gradeStandard(prompt, answer), nil
}

// gradeStandard compares the normalized answer against the card back.
// Standard mode only distinguishes correct from incorrect.
func gradeStandard(prompt Prompt, answer string) Result {
	got := normalize(answer)
	want := normalize(prompt.Expected)
	sim := similarity(got, want)
	correct := got == want || sim > nearMatchThreshold

	score := srs.IncorrectRecognized
	if correct {
		score = srs.PerfectRecall
	}

	return Result{
		Correct:       correct,
		Score:         score,
		CorrectAnswer: prompt.Expected,
		Submitted:     answer,
		Similarity:    sim,
	}
}
