// Package review drives flashcard review sessions: it freezes a queue of due
// cards, serves them through a training mode, and applies graded answers to
// the cards' schedules.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/srs"
	"github.com/ankichat/ankichat/internal/training"
)

// State is the lifecycle phase of a session. Completed and EndedEarly are
// terminal: only reads are valid afterwards.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateEndedEarly State = "ended_early"
)

// ErrSessionFinished is returned for card operations on a terminal session.
var ErrSessionFinished = errors.New("review session is finished")

// PersistenceError wraps a failed card save. The session has not advanced;
// submitting the same answer again is safe.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist card review: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Repository is the persistence collaborator the session depends on.
// *storage.DB satisfies it.
type Repository interface {
	GetDueCards(ctx context.Context, userID string, now time.Time) ([]domain.Flashcard, error)
	SaveCard(ctx context.Context, card domain.Flashcard) error
	DifficultCardIDs(ctx context.Context, userID string) (map[string]bool, error)
	MarkDifficult(ctx context.Context, userID, cardID string) error
	ClearDifficult(ctx context.Context, userID, cardID string) error
}

// CardView is one card as served to the presentation layer.
type CardView struct {
	Card     domain.Flashcard
	Prompt   training.Prompt
	Position int // 1-based position in the session
	Total    int
}

// Summary reports how a session went.
type Summary struct {
	UserID    string
	Mode      training.Mode
	State     State
	Total     int
	Reviewed  int
	Correct   int
	Incorrect int
	Accuracy  float64
	StartedAt time.Time
	Duration  time.Duration
}

// Session reviews one frozen queue of cards for one user in one mode.
// The queue is fixed at construction: cards becoming due mid-session are not
// added, deleted cards are dropped only via DropCard. All methods are safe
// for concurrent use; card operations are serialized by the mutex.
type Session struct {
	mu sync.Mutex

	userID  string
	mode    training.Mode
	trainer training.Trainer
	engine  *srs.Engine
	repo    Repository
	now     func() time.Time

	queue   []domain.Flashcard
	pos     int
	results []domain.ReviewResult
	state   State

	// prompt prepared for the card at pos, nil until NextCard runs.
	current *training.Prompt

	startedAt time.Time
	correct   int
	incorrect int
}

func newSession(userID string, mode training.Mode, trainer training.Trainer, engine *srs.Engine, repo Repository, queue []domain.Flashcard, now func() time.Time) *Session {
	s := &Session{
		userID:    userID,
		mode:      mode,
		trainer:   trainer,
		engine:    engine,
		repo:      repo,
		now:       now,
		queue:     queue,
		state:     StateInProgress,
		startedAt: now(),
	}
	if len(queue) == 0 {
		// An empty session is not an error; it just has nothing to do.
		s.state = StateCompleted
	}
	return s
}

// NextCard returns the card at the current queue position with its prepared
// prompt. Calling it again before SubmitAnswer re-serves the same prompt.
func (s *Session) NextCard(ctx context.Context) (CardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return CardView{}, ErrSessionFinished
	}

	if s.current == nil {
		prompt, err := s.trainer.Prepare(ctx, s.queue[s.pos])
		if err != nil {
			return CardView{}, fmt.Errorf("prepare card %s: %w", s.queue[s.pos].ID, err)
		}
		s.current = &prompt
	}

	return CardView{
		Card:     s.queue[s.pos],
		Prompt:   *s.current,
		Position: s.pos + 1,
		Total:    len(s.queue),
	}, nil
}

// SubmitAnswer grades the answer for the current card, applies the score to
// the card's schedule, persists it, and advances the queue. On a persistence
// failure the session does not advance and the returned error wraps
// PersistenceError, so the same answer can be submitted again. A malformed
// answer (training.ErrInvalidAnswer) also leaves the session untouched.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (domain.ReviewResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return domain.ReviewResult{}, ErrSessionFinished
	}

	card := s.queue[s.pos]

	if s.current == nil {
		prompt, err := s.trainer.Prepare(ctx, card)
		if err != nil {
			return domain.ReviewResult{}, fmt.Errorf("prepare card %s: %w", card.ID, err)
		}
		s.current = &prompt
	}

	graded, err := s.trainer.Grade(card, *s.current, answer)
	if err != nil {
		return domain.ReviewResult{}, err
	}

	updated := card
	if err := s.engine.Schedule(&updated, graded.Score, s.now()); err != nil {
		return domain.ReviewResult{}, fmt.Errorf("schedule card %s: %w", card.ID, err)
	}

	if err := s.repo.SaveCard(ctx, updated); err != nil {
		return domain.ReviewResult{}, &PersistenceError{Err: err}
	}

	// The difficulty marker orders future queues; losing an update is
	// tolerable, so failures are only logged.
	if graded.Correct {
		if err := s.repo.ClearDifficult(ctx, s.userID, card.ID); err != nil {
			slog.Warn("Failed to clear difficulty marker", "card_id", card.ID, "error", err)
		}
	} else {
		if err := s.repo.MarkDifficult(ctx, s.userID, card.ID); err != nil {
			slog.Warn("Failed to set difficulty marker", "card_id", card.ID, "error", err)
		}
	}

	result := domain.ReviewResult{
		CardID:      card.ID,
		Submitted:   answer,
		Correct:     graded.Correct,
		Score:       int(graded.Score),
		Interval:    updated.Interval,
		EaseFactor:  updated.EaseFactor,
		ReviewCount: updated.ReviewCount,
		DueDate:     updated.DueDate,
	}

	s.queue[s.pos] = updated
	s.results = append(s.results, result)
	if graded.Correct {
		s.correct++
	} else {
		s.incorrect++
	}
	s.pos++
	s.current = nil

	if s.pos == len(s.queue) {
		s.state = StateCompleted
		slog.Info("Review session completed", "user_id", s.userID, "mode", s.mode, "reviewed", len(s.results))
	}

	return result, nil
}

// DropCard removes a card that was deleted elsewhere from the not-yet-reviewed
// part of the queue. Already reviewed positions are untouched.
func (s *Session) DropCard(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return
	}

	for i := s.pos; i < len(s.queue); i++ {
		if s.queue[i].ID != cardID {
			continue
		}
		if i == s.pos {
			s.current = nil
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		break
	}

	if s.pos == len(s.queue) {
		s.state = StateCompleted
	}
}

// End terminates the session early. Cards not yet reviewed keep their prior
// schedule. Ending an already terminal session is a no-op.
func (s *Session) End() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateInProgress {
		s.state = StateEndedEarly
		slog.Info("Review session ended early", "user_id", s.userID, "mode", s.mode,
			"reviewed", len(s.results), "remaining", len(s.queue)-s.pos)
	}
	return s.summaryLocked()
}

// Summary reports the session's progress so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() Summary {
	accuracy := 0.0
	if len(s.results) > 0 {
		accuracy = float64(s.correct) / float64(len(s.results))
	}
	return Summary{
		UserID:    s.userID,
		Mode:      s.mode,
		State:     s.state,
		Total:     len(s.queue),
		Reviewed:  len(s.results),
		Correct:   s.correct,
		Incorrect: s.incorrect,
		Accuracy:  accuracy,
		StartedAt: s.startedAt,
		Duration:  s.now().Sub(s.startedAt),
	}
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Results returns a copy of the results accumulated so far, in queue order.
func (s *Session) Results() []domain.ReviewResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReviewResult, len(s.results))
	copy(out, s.results)
	return out
}

// Remaining returns how many cards are still queued.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) - s.pos
}
