package service

import (
	"context"
	"strings"
	"sync"

	"github.com/xxxsen/recall/internal/enrich"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/internal/vectorindex"
)

// fakeStore is an in-memory RecordStore ordered newest-first like the real
// repo's list queries.
type fakeStore struct {
	mu      sync.Mutex
	table   string
	records []*model.Record
	updates map[string]map[string]interface{}
}

func newFakeStore(table string) *fakeStore {
	return &fakeStore{
		table:   table,
		updates: make(map[string]map[string]interface{}),
	}
}

func (f *fakeStore) Table() string { return f.table }

func (f *fakeStore) Create(ctx context.Context, rec *model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *rec
	f.records = append([]*model.Record{&clone}, f.records...)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, ownerID, id string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeStore) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]model.Record, 0, len(ids))
	for _, rec := range f.records {
		if _, ok := wanted[rec.ID]; ok && rec.OwnerID == ownerID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) List(ctx context.Context, ownerID string, limit, offset uint) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.records))
	for _, rec := range f.records {
		if rec.OwnerID == ownerID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateFields(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			f.updates[id] = fields
			if v, ok := fields["text"].(string); ok {
				rec.Text = v
			}
			if v, ok := fields["enriched"].(bool); ok {
				rec.Enriched = v
			}
			if v, ok := fields["tag"].(string); ok {
				rec.Tag = v
			}
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (f *fakeStore) GetByExactText(ctx context.Context, ownerID, text string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.Text == text {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeStore) FindByContentHash(ctx context.Context, ownerID string, hash int64, sinceMillis int64) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.ContentHash == hash && rec.Ctime >= sinceMillis {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeStore) ListRecentWithEmbedding(ctx context.Context, ownerID string, limit uint) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.records))
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && len(rec.EmbeddingVector) > 0 {
			out = append(out, *rec)
		}
		if uint(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit uint) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.records))
	for _, rec := range f.records {
		if rec.OwnerID != ownerID {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(strings.ToLower(rec.Text), kw) {
				out = append(out, *rec)
				break
			}
		}
		if uint(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ListPendingEmbedding(ctx context.Context, targetModel string, limit uint) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.records))
	for _, rec := range f.records {
		if rec.Text != "" && !rec.Migrated(targetModel) {
			out = append(out, *rec)
		}
		if uint(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ListUnenrichedLinks(ctx context.Context, limit uint) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.records))
	for _, rec := range f.records {
		if !rec.Enriched && strings.HasPrefix(rec.Text, "http") {
			out = append(out, *rec)
		}
		if uint(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ListWithEmbedding(ctx context.Context, limit, offset uint) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	withVec := make([]model.Record, 0, len(f.records))
	for i := len(f.records) - 1; i >= 0; i-- {
		if len(f.records[i].EmbeddingVector) > 0 {
			withVec = append(withVec, *f.records[i])
		}
	}
	if offset >= uint(len(withVec)) {
		return []model.Record{}, nil
	}
	withVec = withVec[offset:]
	if uint(len(withVec)) > limit {
		withVec = withVec[:limit]
	}
	return withVec, nil
}

func (f *fakeStore) MigrationStatusFor(ctx context.Context, targetModel string) (*repo.MigrationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := &repo.MigrationStatus{Table: f.table}
	for _, rec := range f.records {
		status.Total++
		switch {
		case rec.Text == "":
			status.NoText++
		case rec.Migrated(targetModel):
			status.Migrated++
		default:
			status.Pending++
		}
	}
	return status, nil
}

// fakeEmbedder returns a fixed vector per known input and nil otherwise.
type fakeEmbedder struct {
	model   string
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) ModelName() string {
	if f.model == "" {
		return "fake-embed-001"
	}
	return f.model
}

// failingIndex errors on every call, standing in for an unreachable backend.
type failingIndex struct {
	err error
}

func (f *failingIndex) Upsert(ctx context.Context, entries []vectorindex.Entry) error { return f.err }
func (f *failingIndex) DeleteByIDs(ctx context.Context, ids []string) error           { return f.err }
func (f *failingIndex) Query(ctx context.Context, vector []float32, topK int, withMetadata bool) ([]vectorindex.Match, error) {
	return nil, f.err
}

// fakeEnricher returns a canned result or error.
type fakeEnricher struct {
	result *enrich.Result
	err    error
	calls  int
}

func (f *fakeEnricher) Enrich(ctx context.Context, rawURL string) (*enrich.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
