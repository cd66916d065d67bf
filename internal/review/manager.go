package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/srs"
	"github.com/ankichat/ankichat/internal/training"
)

// DefaultMaxCards caps the queue length of a session unless configured.
const DefaultMaxCards = 20

// ErrSessionActive is returned by Start when the user already has a live
// session in that mode. It must be ended before a new one can begin.
var ErrSessionActive = errors.New("a review session is already in progress")

// ErrNoSession is returned when no session exists for a (user, mode) pair.
var ErrNoSession = errors.New("no review session")

type sessionKey struct {
	userID string
	mode   training.Mode
}

// ManagerConfig tunes session construction.
type ManagerConfig struct {
	// MaxCards caps how many due cards a session takes. Zero means
	// DefaultMaxCards.
	MaxCards int
}

// Manager owns at most one session per (user, mode). Sessions for different
// keys are fully independent and may run in parallel.
type Manager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session

	repo     Repository
	gen      training.Generator
	engine   *srs.Engine
	maxCards int
	now      func() time.Time
}

func NewManager(repo Repository, gen training.Generator, cfg ManagerConfig) *Manager {
	maxCards := cfg.MaxCards
	if maxCards <= 0 {
		maxCards = DefaultMaxCards
	}
	return &Manager{
		sessions: make(map[sessionKey]*Session),
		repo:     repo,
		gen:      gen,
		engine:   srs.NewEngine(),
		maxCards: maxCards,
		now:      time.Now,
	}
}

// Start creates a session over the user's currently due cards. The queue is
// frozen here: difficulty-marked cards first, then by due date, then by ID,
// capped at the configured maximum. Zero due cards yields a session that is
// already completed.
func (m *Manager) Start(ctx context.Context, userID string, mode training.Mode) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID: userID, mode: mode}
	if existing, ok := m.sessions[key]; ok && existing.State() == StateInProgress {
		return nil, ErrSessionActive
	}

	trainer, err := training.New(mode, m.gen)
	if err != nil {
		return nil, err
	}

	now := m.now()
	due, err := m.repo.GetDueCards(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load due cards: %w", err)
	}

	difficult, err := m.repo.DifficultCardIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load difficulty markers: %w", err)
	}

	queue := orderQueue(due, difficult)
	if len(queue) > m.maxCards {
		queue = queue[:m.maxCards]
	}

	session := newSession(userID, mode, trainer, m.engine, m.repo, queue, m.now)
	m.sessions[key] = session

	slog.Info("Started review session", "user_id", userID, "mode", mode,
		"due", len(due), "queued", len(queue))
	return session, nil
}

// Get returns the user's session for a mode, if any.
func (m *Manager) Get(userID string, mode training.Mode) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{userID: userID, mode: mode}]
	return s, ok
}

// End terminates and discards the user's session for a mode, returning its
// summary.
func (m *Manager) End(userID string, mode training.Mode) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID: userID, mode: mode}
	s, ok := m.sessions[key]
	if !ok {
		return Summary{}, ErrNoSession
	}
	delete(m.sessions, key)
	return s.End(), nil
}

// DropCard removes a deleted card from every in-flight session queue.
func (m *Manager) DropCard(cardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.DropCard(cardID)
	}
}

// orderQueue sorts due cards for review: difficulty-marked cards first, then
// oldest due date, then ID for determinism.
func orderQueue(cards []domain.Flashcard, difficult map[string]bool) []domain.Flashcard {
	queue := make([]domain.Flashcard, len(cards))
	copy(queue, cards)

	sort.Slice(queue, func(i, j int) bool {
		di, dj := difficult[queue[i].ID], difficult[queue[j].ID]
		if di != dj {
			return di
		}
		if !queue[i].DueDate.Equal(queue[j].DueDate) {
			return queue[i].DueDate.Before(queue[j].DueDate)
		}
		return queue[i].ID < queue[j].ID
	})

	return queue
}
