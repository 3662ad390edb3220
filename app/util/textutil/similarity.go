package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexicalSimilarity scores how similar texts are by the cosine of their term
// frequency vectors. With a third text it computes a relaxed 3-way score:
// each term contributes its largest pairwise product and the sum is divided
// by the largest pairwise magnitude product. The relaxed form is kept as is,
// it is not a true 3-vector cosine.
func LexicalSimilarity(a, b string, c ...string) float64 {
	v1 := termFrequencies(a)
	v2 := termFrequencies(b)

	if len(c) == 0 {
		return cosine(v1, v2)
	}

	v3 := termFrequencies(c[0])

	return cosine3(v1, v2, v3)
}

func normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'', r == '_', r == '-':
			return r
		default:
			return ' '
		}
	}, text)

	return strings.Join(strings.Fields(mapped), " ")
}

func termFrequencies(text string) map[string]float64 {
	freq := make(map[string]float64)

	for _, token := range strings.Split(normalize(text), " ") {
		if utf8.RuneCountInString(token) > 1 {
			freq[token]++
		}
	}

	return freq
}

func magnitude(v map[string]float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}

	return math.Sqrt(sum)
}

func cosine(v1, v2 map[string]float64) float64 {
	m1, m2 := magnitude(v1), magnitude(v2)
	if m1 == 0 || m2 == 0 {
		return 0
	}

	var dot float64
	for term, f := range v1 {
		dot += f * v2[term]
	}

	return clamp(dot / (m1 * m2))
}

func cosine3(v1, v2, v3 map[string]float64) float64 {
	m1, m2, m3 := magnitude(v1), magnitude(v2), magnitude(v3)
	if m1 == 0 || m2 == 0 || m3 == 0 {
		return 0
	}

	terms := make(map[string]struct{}, len(v1)+len(v2)+len(v3))
	for _, v := range []map[string]float64{v1, v2, v3} {
		for term := range v {
			terms[term] = struct{}{}
		}
	}

	var dot float64
	for term := range terms {
		f1, f2, f3 := v1[term], v2[term], v3[term]
		dot += max(f1*f2, f2*f3, f1*f3)
	}

	norm := max(m1*m2, m2*m3, m1*m3)

	return clamp(dot / norm)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
