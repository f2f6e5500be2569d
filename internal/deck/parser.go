package deck

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/finnvolkel/margin/internal/domain"
)

// Deck files are markdown with labeled blocks:
//
//	Q: What does WAL stand for?
//	A: Write-ahead logging.
//	C: optional excerpt carried as provenance
//	P: 42
//	---
//
// Q starts a card, --- separates cards, and any unlabeled line continues the
// current block.
const (
	frontPrefix   = "Q:"
	backPrefix    = "A:"
	excerptPrefix = "C:"
	pagePrefix    = "P:"
)

type state int

const (
	seeking state = iota
	readingFront
	readingBack
	readingExcerpt
)

// ParseFile reads a deck file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Returned cards carry
// content only; the caller assigns identity and scheduling state.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var current domain.Card
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingFront:
			current.Front = content
		case readingBack:
			current.Back = content
		case readingExcerpt:
			current.Excerpt = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Front != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishCard()
			continue
		}

		switch {
		case strings.HasPrefix(line, frontPrefix):
			if currentState != seeking { // a new question always starts a new card
				finishCard()
			}
			flushBlock()
			currentState = readingFront
			block = append(block, stripPrefix(line, frontPrefix))
		case strings.HasPrefix(line, backPrefix):
			flushBlock()
			currentState = readingBack
			block = append(block, stripPrefix(line, backPrefix))
		case strings.HasPrefix(line, excerptPrefix):
			flushBlock()
			currentState = readingExcerpt
			block = append(block, stripPrefix(line, excerptPrefix))
		case strings.HasPrefix(line, pagePrefix):
			// The page is stored directly; the open block stays open so
			// continuation lines keep extending the field they belong to.
			if page, err := strconv.Atoi(strings.TrimSpace(stripPrefix(line, pagePrefix))); err == nil {
				current.SourcePage = &page
			}
		default:
			if currentState != seeking {
				block = append(block, line)
			}
		}
	}

	finishCard() // the last card has no trailing separator

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func stripPrefix(line, prefix string) string {
	content := line[len(prefix):]
	if strings.HasPrefix(content, " ") {
		content = content[1:]
	}
	return content
}
