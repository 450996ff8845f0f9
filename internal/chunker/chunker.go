package chunker

import (
	"regexp"
	"strings"
)

const defaultMaxTokens = 500

// Sentences end at . ! or ? and keep their terminator. Text after the last
// terminator is treated as a trailing sentence.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Chunk splits text into sentence-aligned fragments. Sentences are greedily
// accumulated while the running word count stays within maxTokens; a sentence
// that alone exceeds the bound still becomes its own fragment rather than
// being split mid-sentence. Fragments are non-empty and in reading order;
// joined back together they reproduce the input modulo whitespace.
func Chunk(text string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var chunks []string
	var current []string
	words := 0

	for _, raw := range sentencePattern.FindAllString(text, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		n := len(strings.Fields(sentence))
		if words+n > maxTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{sentence}
			words = n
			continue
		}
		current = append(current, sentence)
		words += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
