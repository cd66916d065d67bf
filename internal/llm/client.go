// Package llm talks to an OpenAI-compatible chat-completions API to generate
// training content for cards. The generator being unreachable, slow, or
// misconfigured is an expected outcome: every failure surfaces as
// ErrUnavailable so callers can fall back to simpler training modes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ankichat/ankichat/internal/domain"
)

// ErrUnavailable means the generator could not produce content. Timeouts,
// transport failures, a missing API key and unusable replies all map to it.
var ErrUnavailable = errors.New("content generator unavailable")

// BlankToken is the placeholder substituted for the hidden term.
const BlankToken = "____________"

const maxSentenceLen = 250

// Blank is a fill-in-the-blank exercise: a sentence with one term hidden,
// and the term that belongs in the gap.
type Blank struct {
	Text string
	Term string
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client generates card training content via a chat-completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
}

// GenerateBlank asks the model for one natural sentence using the card's
// front term, then blanks the term out locally. The matched term is returned
// with the casing it had in the sentence. If the model's sentence does not
// contain the term, a template sentence built from the card back is used.
func (c *Client) GenerateBlank(ctx context.Context, card domain.Flashcard) (Blank, error) {
	system := "You are an educational content creator specializing in fill-in-the-blank exercises. " +
		"Create a single, natural-sounding sentence that uses a given term in context."
	user := fmt.Sprintf(
		"Create one sentence that naturally uses the term %q, drawing context from this definition: %s\n"+
			"Reply with only the sentence. Do not blank the term out yourself and do not add formatting.",
		card.Front, card.Back,
	)

	reply, err := c.complete(ctx, system, user, false)
	if err != nil {
		return Blank{}, err
	}

	sentence := strings.TrimSpace(reply)
	if len(sentence) > maxSentenceLen {
		sentence = sentence[:maxSentenceLen]
	}

	return blankOut(sentence, card.Front, card.Back), nil
}

// GenerateDistractors asks the model for n plausible but wrong answers for
// the card. The result is deduplicated case-insensitively and never contains
// the correct answer; it may be shorter than n.
func (c *Client) GenerateDistractors(ctx context.Context, card domain.Flashcard, n int) ([]string, error) {
	system := "You create multiple-choice quiz options. " +
		"Given a flashcard, produce plausible but incorrect answer options."
	user := fmt.Sprintf(
		"The flashcard front is %q and the correct answer is %q. "+
			"Produce %d plausible but incorrect alternative answers as a JSON object: "+
			`{"distractors": ["...", "..."]}`,
		card.Front, card.Back, n,
	)

	reply, err := c.complete(ctx, system, user, true)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Distractors []string `json:"distractors"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		slog.Warn("Discarding unparseable distractor reply", "error", err)
		return nil, fmt.Errorf("%w: decode distractors: %v", ErrUnavailable, err)
	}

	return filterDistractors(parsed.Distractors, card.Back, n), nil
}

// GenerateExplanation produces a short tutor explanation for a wrong answer.
// A static comparison of the two answers is returned when the generator is
// unavailable, so callers never need a fallback of their own.
func (c *Client) GenerateExplanation(ctx context.Context, card domain.Flashcard, submitted string) (string, error) {
	system := "You are a helpful tutor explaining flashcard answers. " +
		"Be concise, encouraging, and point out what the user missed."
	user := fmt.Sprintf(
		"Front of flashcard: %s\nCorrect answer: %s\nUser's answer: %s\n"+
			"Explain briefly why the correct answer is correct.",
		card.Front, card.Back, submitted,
	)

	reply, err := c.complete(ctx, system, user, false)
	if err != nil {
		return fallbackExplanation(card, submitted), nil
	}
	return strings.TrimSpace(reply), nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string, jsonReply bool) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	}
	if jsonReply {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	return parsed.Choices[0].Message.Content, nil
}

// blankOut hides the first case-insensitive occurrence of term in sentence.
func blankOut(sentence, term, back string) Blank {
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
	if err == nil {
		if match := pattern.FindString(sentence); match != "" {
			blanked := strings.Replace(sentence, match, BlankToken, 1)
			return Blank{Text: blanked, Term: match}
		}
	}

	slog.Warn("Term not found in generated sentence, using template", "term", term)
	return Blank{
		Text: fmt.Sprintf("The term %s refers to %s.", BlankToken, firstSentence(back)),
		Term: term,
	}
}

func filterDistractors(options []string, correct string, n int) []string {
	seen := make(map[string]bool)
	seen[strings.ToLower(strings.TrimSpace(correct))] = true

	var out []string
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key := strings.ToLower(opt)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, opt)
		if len(out) == n {
			break
		}
	}
	return out
}

func firstSentence(text string) string {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return text[:i]
	}
	return text
}

func fallbackExplanation(card domain.Flashcard, submitted string) string {
	return fmt.Sprintf(
		"The correct answer is: %s\n\nYour answer was: %s\n\nTry to remember the key details from the flashcard.",
		card.Back, submitted,
	)
}
