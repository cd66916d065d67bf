package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testCard() domain.Flashcard {
	return domain.Flashcard{
		ID:    "card-1",
		Front: "Paris",
		Back:  "The capital of France. Known for the Eiffel Tower.",
	}
}

func TestGenerateBlank(t *testing.T) {
	srv := completionServer(t, "Every spring, tourists flock to Paris to see the Eiffel Tower.")
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})

	blank, err := c.GenerateBlank(context.Background(), testCard())
	require.NoError(t, err)
	assert.Equal(t, "Paris", blank.Term)
	assert.Equal(t, "Every spring, tourists flock to "+BlankToken+" to see the Eiffel Tower.", blank.Text)
}

func TestGenerateBlankPreservesMatchedCase(t *testing.T) {
	srv := completionServer(t, "The city of PARIS hosts millions of visitors.")
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})

	blank, err := c.GenerateBlank(context.Background(), testCard())
	require.NoError(t, err)
	assert.Equal(t, "PARIS", blank.Term)
	assert.Contains(t, blank.Text, BlankToken)
}

func TestGenerateBlankFallsBackToTemplate(t *testing.T) {
	srv := completionServer(t, "A sentence that never mentions the term at all.")
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})

	blank, err := c.GenerateBlank(context.Background(), testCard())
	require.NoError(t, err)
	assert.Equal(t, "Paris", blank.Term)
	assert.Equal(t, "The term "+BlankToken+" refers to The capital of France.", blank.Text)
}

func TestGenerateBlankWithoutAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:1", Model: "test-model"})

	_, err := c.GenerateBlank(context.Background(), testCard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGenerateBlankTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model", Timeout: 20 * time.Millisecond})

	_, err := c.GenerateBlank(context.Background(), testCard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGenerateDistractors(t *testing.T) {
	srv := completionServer(t, `{"distractors": ["London", "Berlin", "london", "  ", "The capital of France. Known for the Eiffel Tower.", "Madrid", "Rome"]}`)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})

	got, err := c.GenerateDistractors(context.Background(), testCard(), 3)
	require.NoError(t, err)
	// Duplicates, blanks, and the correct answer are filtered out.
	assert.Equal(t, []string{"London", "Berlin", "Madrid"}, got)
}

func TestGenerateDistractorsBadJSON(t *testing.T) {
	srv := completionServer(t, "not json at all")
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})

	_, err := c.GenerateDistractors(context.Background(), testCard(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGenerateDistractorsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})

	_, err := c.GenerateDistractors(context.Background(), testCard(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGenerateExplanationFallsBack(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:1", Model: "test-model"})

	text, err := c.GenerateExplanation(context.Background(), testCard(), "Lyon")
	require.NoError(t, err)
	assert.Contains(t, text, "The capital of France")
	assert.Contains(t, text, "Lyon")
}
