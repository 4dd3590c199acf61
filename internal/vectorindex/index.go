package vectorindex

import (
	"context"
	"fmt"
	"strings"
)

// Metadata travels with every entry so that callers can re-check scope after
// a query. Index-side metadata filters are not assumed reliable; the search
// layer always requests metadata and filters in memory.
type Metadata struct {
	OwnerID string `json:"owner_id"`
	Table   string `json:"table"`
	Type    string `json:"type"`
}

// Entry is one (id, vector, metadata) triple. The id must equal the record id
// in the relational store; it is the join key back to the full row.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a query hit. Score is a similarity, higher is more similar.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Index is a nearest-neighbor store. Upsert is idempotent per id (last write
// wins), Query returns matches sorted by score descending.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	DeleteByIDs(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, topK int, withMetadata bool) ([]Match, error)
}

type Config struct {
	Type       string
	Location   string
	APIKey     string
	Collection string
	VectorSize int
}

// New builds an index from config. An empty type yields (nil, nil): the
// caller runs without an index and search falls back to the legacy scan.
func New(cfg Config) (Index, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryIndex(), nil
	case "qdrant":
		return NewQdrantIndex(cfg)
	default:
		return nil, fmt.Errorf("unsupported vector index type: %s", cfg.Type)
	}
}
