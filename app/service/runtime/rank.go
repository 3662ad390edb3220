package runtime

import (
	"math"

	"tgbridge/app/util/textutil"

	"github.com/elliotchance/pie/v2"
)

// RankMemories scores candidates against params and returns the best
// matches. Embeddings are compared when both sides have them, text otherwise.
func RankMemories(candidates []*Memory, params SearchParams) []*Memory {
	scored := make([]*Memory, 0, len(candidates))

	for _, m := range candidates {
		if params.RoomID != "" && m.RoomID != params.RoomID {
			continue
		}

		var score float64
		switch {
		case len(params.Embedding) > 0 && len(m.Embedding) == len(params.Embedding):
			score = CosineSimilarity(params.Embedding, m.Embedding)
		case params.Query != "":
			score = textutil.LexicalSimilarity(params.Query, m.Content.Text)
		default:
			continue
		}

		if score < params.Threshold {
			continue
		}

		copied := *m
		copied.Similarity = score
		scored = append(scored, &copied)
	}

	scored = pie.SortStableUsing(scored, func(a, b *Memory) bool {
		return a.Similarity > b.Similarity
	})

	if params.Unique {
		seen := make(map[string]struct{}, len(scored))
		scored = pie.Filter(scored, func(m *Memory) bool {
			if _, ok := seen[m.Content.Text]; ok {
				return false
			}
			seen[m.Content.Text] = struct{}{}
			return true
		})
	}

	if params.Count > 0 && len(scored) > params.Count {
		scored = scored[:params.Count]
	}

	return scored
}

// CosineSimilarity of two equally sized vectors, 0 when either is empty.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
