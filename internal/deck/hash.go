// Package deck parses card decks authored as markdown files and gives each
// card a normalized content hash for import deduplication.
package deck

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/finnvolkel/margin/internal/domain"
)

// Normalize concatenates the card's text after cleaning each part: trimmed,
// lowercased, line endings normalized. Fields are joined with a newline so
// adjacent words from different fields cannot collide.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	return strings.Join([]string{
		normalizePart(card.Front),
		normalizePart(card.Back),
		normalizePart(card.Excerpt),
	}, "\n")
}

// Hash returns the SHA-256 of the normalized card content as a hex string.
// Two cards with the same hash are the same card as far as deck sync is
// concerned.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}
