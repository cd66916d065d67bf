package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	frontPrefix    = "F:"
	backPrefix     = "B:"
	languagePrefix = "L:"
	tagsPrefix     = "T:"
)

// Card is one parsed flashcard entry. Scheduling state is assigned by the
// importer, not the file format.
type Card struct {
	Front    string
	Back     string
	Language string
	Tags     []string
}

type state int

const (
	seeking state = iota
	readingFront
	readingBack
	readingLanguage
	readingTags
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards.
func Parse(r io.Reader) ([]Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []Card
	var currentCard Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.Join(currentBlock, "\n")
		switch currentState {
		case readingFront:
			currentCard.Front = content
		case readingBack:
			currentCard.Back = content
		case readingLanguage:
			currentCard.Language = strings.TrimSpace(content)
		case readingTags:
			currentCard.Tags = splitTags(content)
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Front != "" {
			cards = append(cards, currentCard)
		}
		currentCard = Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishCard()
			continue
		}

		next := seeking
		var prefix string
		switch {
		case strings.HasPrefix(line, frontPrefix):
			next, prefix = readingFront, frontPrefix
		case strings.HasPrefix(line, backPrefix):
			next, prefix = readingBack, backPrefix
		case strings.HasPrefix(line, languagePrefix):
			next, prefix = readingLanguage, languagePrefix
		case strings.HasPrefix(line, tagsPrefix):
			next, prefix = readingTags, tagsPrefix
		}

		if next == seeking {
			if currentState != seeking {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		flushBlock()
		if next == readingFront && currentState != seeking {
			// A new front always starts a new card.
			finishCard()
		}
		currentState = next
		currentBlock = append(currentBlock, strings.TrimPrefix(line[len(prefix):], " "))
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
