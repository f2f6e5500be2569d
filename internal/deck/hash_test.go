package deck

import (
	"testing"

	"github.com/finnvolkel/margin/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Front:   "  What is WAL? \r\n",
		Back:    "Write-ahead logging.",
		Excerpt: "Storage Internals",
	}
	expected := "what is wal?\nwrite-ahead logging.\nstorage internals"
	if got := Normalize(card); got != expected {
		t.Errorf("Normalize=%q, want %q", got, expected)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.Card{Front: "Q", Back: "A", Excerpt: "C"}
		// sha256("q\na\nc")
		expected := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		if got := Hash(card); got != expected {
			t.Errorf("Hash=%q, want %q", got, expected)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		if Hash(domain.Card{Front: "Test"}) != Hash(domain.Card{Front: "Test"}) {
			t.Error("identical cards should hash the same")
		}
	})

	t.Run("normalization folds case and whitespace", func(t *testing.T) {
		a := domain.Card{Front: "  what is go? ", Back: "A programming language."}
		b := domain.Card{Front: "What Is Go?", Back: "A programming language."}
		if Hash(a) != Hash(b) {
			t.Error("normalized-equal cards should hash the same")
		}
	})

	t.Run("different content differs", func(t *testing.T) {
		if Hash(domain.Card{Front: "Card 1"}) == Hash(domain.Card{Front: "Card 2"}) {
			t.Error("different cards should hash differently")
		}
	})

	t.Run("identity and schedule do not affect the hash", func(t *testing.T) {
		a := domain.Card{ID: "x", Front: "f", Back: "b", Repetitions: 4}
		b := domain.Card{ID: "y", Front: "f", Back: "b"}
		if Hash(a) != Hash(b) {
			t.Error("hash must depend on content only")
		}
	})
}
