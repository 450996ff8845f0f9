package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_SplitsOnWordBudget(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."

	chunks := Chunk(text, 6)

	assert.Equal(t, []string{"One two three. Four five six.", "Seven eight nine."}, chunks)
}

func TestChunk_ReconstructsInput(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxTokens int
	}{
		{"short text", "Hello world. How are you?", 3},
		{"single sentence", "Just one sentence here.", 50},
		{"no terminator", "trailing text without punctuation", 2},
		{"questions and exclamations", "Really! Are you sure? Yes. Absolutely!", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(tt.text, tt.maxTokens)

			got := strings.Join(strings.Fields(strings.Join(chunks, " ")), " ")
			want := strings.Join(strings.Fields(tt.text), " ")
			assert.Equal(t, want, got)
		})
	}
}

func TestChunk_OversizedSentenceKeptWhole(t *testing.T) {
	// A single sentence over the budget must not be split mid-sentence.
	long := "this sentence has seven words in it."
	chunks := Chunk("Short one. "+long+" Short two.", 3)

	assert.Contains(t, chunks, long)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestChunk_FragmentsWithinBudget(t *testing.T) {
	text := "a b c. d e f. g h i. j k l. m n o."
	chunks := Chunk(text, 7)

	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c)), 7)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	assert.Empty(t, Chunk("", 100))
	assert.Empty(t, Chunk("   \n\t ", 100))
}

func TestChunk_Idempotent(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one closes."

	first := Chunk(text, 6)
	for _, fragment := range first {
		again := Chunk(fragment, 6)
		assert.Equal(t, []string{fragment}, again)
	}
}
