package textutil

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the maximum text length of a single Telegram message.
const DefaultChunkSize = 4096

// Chunk splits text into pieces of at most maxLength runes, breaking only on
// newlines. Joining the result with "\n" gives back the original text.
// A single line longer than maxLength is kept whole as its own chunk.
func Chunk(text string, maxLength int) []string {
	if text == "" {
		return nil
	}
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
		started bool
	)

	for _, line := range strings.Split(text, "\n") {
		lineSize := utf8.RuneCountInString(line)

		if started && size+1+lineSize > maxLength {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
			started = false
		}

		if started {
			current.WriteByte('\n')
			size++
		}

		current.WriteString(line)
		size += lineSize
		started = true
	}

	if started {
		chunks = append(chunks, current.String())
	}

	return chunks
}
