package model

const (
	TableMemories = "memories"
	TablePosts    = "posts"
)

const (
	TagMemory = "memory"
	TagLink   = "link"
	TagVideo  = "video"
	TagTweet  = "tweet"
)

// Record is a saved memory or post. The two collections share one schema and
// differ only in which table they live in.
type Record struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Text            string    `json:"text"`
	Context         Context   `json:"context,omitempty"`
	Tag             string    `json:"tag"`
	EmbeddingVector []float32 `json:"-"`
	EmbeddingModel  string    `json:"embedding_model,omitempty"`
	SearchKeywords  string    `json:"search_keywords,omitempty"`
	ContentHash     int64     `json:"-"`
	Enriched        bool      `json:"enriched"`
	Ctime           int64     `json:"ctime"`
	Mtime           int64     `json:"mtime"`
}

// ScoredRecord is a Record joined with its similarity score from a search.
type ScoredRecord struct {
	Record
	Similarity float32 `json:"similarity"`
}

// Migrated reports whether the record's embedding was produced by the given
// model. Records with a null vector or a stale model tag are pending.
func (r *Record) Migrated(targetModel string) bool {
	return len(r.EmbeddingVector) > 0 && r.EmbeddingModel == targetModel
}
