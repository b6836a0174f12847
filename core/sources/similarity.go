package sources

import (
	"math"
	"sort"

	"github.com/siherrmann/loregraph/model"
)

// Cosine returns the cosine similarity of two equally sized vectors, or 0
// when the sizes differ or either vector is zero.
func Cosine(a, b []float32) float64 {
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

// rankBySimilarity scores candidates against query and keeps the best topK,
// ties broken by name then id
func rankBySimilarity(candidates []*model.Entity, query []float32, topK int) []*model.SearchHit {
	hits := make([]*model.SearchHit, 0, len(candidates))
	for _, e := range candidates {
		if !e.HasEmbedding() || len(e.Embedding) != len(query) {
			continue
		}
		hits = append(hits, &model.SearchHit{Entity: e, Similarity: Cosine(query, e.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Entity.Name != hits[j].Entity.Name {
			return hits[i].Entity.Name < hits[j].Entity.Name
		}
		return hits[i].Entity.ID.String() < hits[j].Entity.ID.String()
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func sortEntities(entities []*model.Entity, rank func(*model.Entity) int) {
	sort.SliceStable(entities, func(i, j int) bool {
		ri, rj := rank(entities[i]), rank(entities[j])
		if ri != rj {
			return ri < rj
		}
		if entities[i].Name != entities[j].Name {
			return entities[i].Name < entities[j].Name
		}
		return entities[i].ID.String() < entities[j].ID.String()
	})
}
