package importer

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// normalize cleans each content field before joining. It trims whitespace,
// lowercases, and normalizes line endings so formatting edits don't change
// a card's identity.
func normalize(front, back, language string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Fields are joined with a newline to keep them separated; "front" and
	// "back" must not collapse into "frontback".
	return strings.Join([]string{
		normalizePart(front),
		normalizePart(back),
		normalizePart(language),
	}, "\n")
}

// ContentHash normalizes a card's content and returns its SHA-256 hash as a
// hex string. Two cards with the same hash are the same card.
func ContentHash(front, back, language string) string {
	normalized := normalize(front, back, language)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
