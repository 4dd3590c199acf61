package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an exact in-process index: a map of entries scanned with
// cosine similarity on every query. Suits single-node deployments and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]Entry),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range entries {
		vec := make([]float32, len(entry.Vector))
		copy(vec, entry.Vector)
		entry.Vector = vec
		m.entries[entry.ID] = entry
	}
	return nil
}

func (m *MemoryIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, withMetadata bool) ([]Match, error) {
	if topK < 1 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make([]Match, 0, len(m.entries))
	for id, entry := range m.entries {
		match := Match{
			ID:    id,
			Score: CosineSimilarity(vector, entry.Vector),
		}
		if withMetadata {
			match.Metadata = entry.Metadata
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// CosineSimilarity is dot(a,b) / (||a|| * ||b||); zero when either vector is
// empty, zero-length or of mismatched dimensionality.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
