package training

import (
	"context"
	"log/slog"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/srs"
)

// FillInBlankTrainer asks the generator to hide a key term inside a sentence
// and grades the submitted text against the hidden term by similarity.
// When the generator cannot deliver, the card is served in standard form.
type FillInBlankTrainer struct {
	gen Generator
}

func (t *FillInBlankTrainer) Prepare(ctx context.Context, card domain.Flashcard) (Prompt, error) {
	if t.gen == nil {
		return degraded(card), nil
	}

	blank, err := t.gen.GenerateBlank(ctx, card)
	if err != nil {
		slog.Info("Blank generation unavailable, serving card in standard mode",
			"card_id", card.ID, "error", err)
		return degraded(card), nil
	}

	return Prompt{
		Mode:     ModeFillInBlank,
		Front:    card.Front,
		Text:     blank.Text,
		Expected: blank.Term,
	}, nil
}

func (t *FillInBlankTrainer) Grade(_ domain.Flashcard, prompt Prompt, answer string) (Result, error) {
	if prompt.Mode == ModeStandard {
		return gradeStandard(prompt, answer), nil
	}

	got := normalize(answer)
	want := normalize(prompt.Expected)
	sim := similarity(got, want)

	// Similarity bands map onto the 0-5 recall scale.
	var score srs.RecallScore
	switch {
	case sim > 0.8:
		score = srs.PerfectRecall
	case sim > 0.6:
		score = srs.CorrectHesitation
	case sim > 0.4:
		score = srs.CorrectDifficult
	case sim > 0.2:
		score = srs.IncorrectFamiliar
	default:
		score = srs.IncorrectRecognized
	}

	return Result{
		Correct:       score.Correct(),
		Score:         score,
		CorrectAnswer: prompt.Expected,
		Submitted:     answer,
		Similarity:    sim,
	}, nil
}

// degraded is the standard-mode prompt served when a generator-backed mode
// cannot prepare its exercise.
func degraded(card domain.Flashcard) Prompt {
	p := standardPrompt(card)
	p.Degraded = true
	return p
}
