package speech

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one bounded slice of text sent to the speech provider.
type Chunk struct {
	Index int
	Text  string
}

// SplitIntoChunks splits text into chunks of at most maxLen runes. Whole
// sentences are packed greedily; a sentence longer than maxLen is packed
// word by word. Words are never split, so a single word longer than maxLen
// becomes its own chunk. Joining the chunk texts with single spaces yields
// the input with whitespace normalized.
func SplitIntoChunks(text string, maxLen int) []Chunk {
	if maxLen <= 0 {
		maxLen = 1
	}
	var chunks []Chunk
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: strings.Join(current, " ")})
		current = current[:0]
		currentLen = 0
	}
	add := func(piece string, n int) {
		if len(current) > 0 && currentLen+1+n > maxLen {
			flush()
		}
		if len(current) > 0 {
			currentLen++
		}
		current = append(current, piece)
		currentLen += n
	}

	for _, sentence := range splitSentences(text) {
		joined := strings.Join(sentence, " ")
		n := utf8.RuneCountInString(joined)
		if n <= maxLen {
			add(joined, n)
			continue
		}
		for _, word := range sentence {
			add(word, utf8.RuneCountInString(word))
		}
	}
	flush()
	return chunks
}

// splitSentences groups the words of text into sentences. A sentence ends at
// a word carrying a terminator or at a line break.
func splitSentences(text string) [][]string {
	var sentences [][]string
	for _, line := range strings.Split(text, "\n") {
		var sentence []string
		for _, word := range strings.Fields(line) {
			sentence = append(sentence, word)
			if endsSentence(word) {
				sentences = append(sentences, sentence)
				sentence = nil
			}
		}
		if len(sentence) > 0 {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]`)
	r, _ := utf8.DecodeLastRuneInString(word)
	switch r {
	case '.', '!', '?', '।', '॥':
		return true
	}
	return false
}
