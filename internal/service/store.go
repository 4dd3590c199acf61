package service

import (
	"context"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/repo"
)

// RecordStore is the slice of the relational repo the services depend on.
// *repo.RecordRepo satisfies it.
type RecordStore interface {
	Table() string
	Create(ctx context.Context, rec *model.Record) error
	GetByID(ctx context.Context, ownerID, id string) (*model.Record, error)
	ListByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Record, error)
	List(ctx context.Context, ownerID string, limit, offset uint) ([]model.Record, error)
	UpdateFields(ctx context.Context, ownerID, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, ownerID, id string) error
	GetByExactText(ctx context.Context, ownerID, text string) (*model.Record, error)
	FindByContentHash(ctx context.Context, ownerID string, hash int64, sinceMillis int64) (*model.Record, error)
	ListRecentWithEmbedding(ctx context.Context, ownerID string, limit uint) ([]model.Record, error)
	SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit uint) ([]model.Record, error)
	ListPendingEmbedding(ctx context.Context, targetModel string, limit uint) ([]model.Record, error)
	ListUnenrichedLinks(ctx context.Context, limit uint) ([]model.Record, error)
	ListWithEmbedding(ctx context.Context, limit, offset uint) ([]model.Record, error)
	MigrationStatusFor(ctx context.Context, targetModel string) (*repo.MigrationStatus, error)
}

// Stores maps a collection name to its record store.
type Stores map[string]RecordStore

func (s Stores) pick(table string) (RecordStore, bool) {
	if table == "" {
		table = model.TableMemories
	}
	store, ok := s[table]
	return store, ok
}
