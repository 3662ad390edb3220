package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "00000000-0000-0000-0000-000000000000"},
		{"a", "00000000-0000-0000-0000-000000000061"},
		{"ab", "00000000-0000-0000-0000-000000000c21"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StableID(tt.input))
		})
	}
}

func TestStableIDDeterministic(t *testing.T) {
	inputs := []string{
		"12345-agent",
		"привет мир",
		"emoji 🤖 in text",
		strings.Repeat("long input ", 500),
	}

	for _, in := range inputs {
		first := StableID(in)
		assert.Equal(t, first, StableID(in))
		assert.Len(t, first, 36)
		assert.Equal(t, strings.ToLower(first), first)
		assert.Equal(t, []int{8, 4, 4, 4, 12}, groupLengths(first))
	}
}

func TestStableIDLowBitsOnly(t *testing.T) {
	id := StableID("this string is long enough to overflow")
	assert.Len(t, id, 36)
	assert.True(t, strings.HasPrefix(id, "00000000-0000-0000-0000-0000"))
}

func groupLengths(id string) []int {
	var lengths []int
	for _, part := range strings.Split(id, "-") {
		lengths = append(lengths, len(part))
	}

	return lengths
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLength int
		want      []string
	}{
		{
			name:      "empty",
			text:      "",
			maxLength: 10,
			want:      nil,
		},
		{
			name:      "fits",
			text:      "hello\nworld",
			maxLength: 100,
			want:      []string{"hello\nworld"},
		},
		{
			name:      "split on lines",
			text:      "aaaa\nbbbb\ncccc",
			maxLength: 9,
			want:      []string{"aaaa\nbbbb", "cccc"},
		},
		{
			name:      "exact limit",
			text:      "aaaa\nbbbb",
			maxLength: 9,
			want:      []string{"aaaa\nbbbb"},
		},
		{
			name:      "oversized line kept whole",
			text:      "a\n" + strings.Repeat("b", 20) + "\nc",
			maxLength: 10,
			want:      []string{"a", strings.Repeat("b", 20), "c"},
		},
		{
			name:      "leading and trailing newlines",
			text:      "\nabc\n",
			maxLength: 100,
			want:      []string{"\nabc\n"},
		},
		{
			name:      "blank lines preserved across boundary",
			text:      "abc\n\n\ndef",
			maxLength: 4,
			want:      []string{"abc\n", "\ndef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.maxLength))
		})
	}
}

func TestChunkTransportBoundary(t *testing.T) {
	long := strings.Repeat("b", 4096)

	chunks := Chunk("a\n"+long, DefaultChunkSize)

	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0])
	assert.Equal(t, long, chunks[1])
}

func TestChunkReconstructs(t *testing.T) {
	texts := []string{
		"single",
		"one\ntwo\nthree\nfour\nfive",
		strings.Repeat("line of text\n", 1000),
		"мульти\nбайтовый\nтекст\n" + strings.Repeat("я", 50),
		"\n\n\n",
	}

	for _, text := range texts {
		for _, maxLength := range []int{1, 5, 13, 64, 4096} {
			chunks := Chunk(text, maxLength)
			assert.Equal(t, text, strings.Join(chunks, "\n"))

			for _, c := range chunks {
				if utf8.RuneCountInString(c) > maxLength {
					assert.NotContains(t, c, "\n", "only single lines may exceed the limit")
				}
			}
		}
	}
}

func TestLexicalSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, LexicalSimilarity("the cat sat", "the cat sat"), 1e-9)
	assert.InDelta(t, 0.5, LexicalSimilarity("hello world", "hello there"), 1e-9)
	assert.InDelta(t, 0.0, LexicalSimilarity("hello world", "goodbye moon"), 1e-9)
	assert.InDelta(t, 1.0, LexicalSimilarity("Hello, World!", "hello world"), 1e-9)
}

func TestLexicalSimilarityThreeWay(t *testing.T) {
	assert.InDelta(t, 1.0, LexicalSimilarity("the cat sat", "the cat sat", "the cat sat"), 1e-9)
	assert.Equal(t, 0.0, LexicalSimilarity("the cat sat", "the cat sat", "!!"))

	score := LexicalSimilarity("the cat sat", "the dog sat", "a bird flew")
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestLexicalSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"deploy the new build today", "the build is broken"},
		{"what's up everyone", "not much, what's up with you"},
		{"snake_case and kebab-case", "kebab-case only"},
	}

	for _, p := range pairs {
		ab := LexicalSimilarity(p[0], p[1])
		ba := LexicalSimilarity(p[1], p[0])
		assert.InDelta(t, ab, ba, 1e-12)
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
	}
}

func TestLexicalSimilarityNoEligibleTokens(t *testing.T) {
	assert.Equal(t, 0.0, LexicalSimilarity("a b c", "a b c"))
	assert.Equal(t, 0.0, LexicalSimilarity("?!...", "hello world"))
	assert.Equal(t, 0.0, LexicalSimilarity("", ""))
}
