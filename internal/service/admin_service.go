package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/internal/vectorindex"
)

const resyncPageSize = 200

type AdminService struct {
	manager *ai.Manager
	index   vectorindex.Index
	stores  Stores
}

func NewAdminService(manager *ai.Manager, index vectorindex.Index, stores Stores) *AdminService {
	return &AdminService{manager: manager, index: index, stores: stores}
}

type ResyncResult struct {
	Table    string `json:"table"`
	Scanned  int    `json:"scanned"`
	Upserted int    `json:"upserted"`
}

// Resync rebuilds the vector index for one table from the relational rows,
// which are the source of truth. Rows without a stored embedding are skipped;
// the backfill job owns those.
func (s *AdminService) Resync(ctx context.Context, table string) (*ResyncResult, error) {
	if s.index == nil {
		return nil, appErr.ErrIndexUnavailable
	}
	store, ok := s.stores.pick(table)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("table", store.Table()))
	result := &ResyncResult{Table: store.Table()}
	var offset uint
	for {
		recs, err := store.ListWithEmbedding(ctx, resyncPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			break
		}
		entries := make([]vectorindex.Entry, 0, len(recs))
		for _, rec := range recs {
			entries = append(entries, vectorindex.Entry{
				ID:     rec.ID,
				Vector: rec.EmbeddingVector,
				Metadata: vectorindex.Metadata{
					OwnerID: rec.OwnerID,
					Table:   store.Table(),
					Type:    rec.Tag,
				},
			})
		}
		if err := s.index.Upsert(ctx, entries); err != nil {
			return nil, err
		}
		result.Scanned += len(recs)
		result.Upserted += len(entries)
		offset += uint(len(recs))
		if len(recs) < resyncPageSize {
			break
		}
	}
	logger.Info("index resync finished", zap.Int("upserted", result.Upserted))
	return result, nil
}

// BackfillEmbeddings re-embeds records whose stored vector was produced by a
// different model than the one currently configured. Runs from the cron job
// after an embedding model change.
func (s *AdminService) BackfillEmbeddings(ctx context.Context, batch uint) error {
	target := s.manager.EmbeddingModelName()
	if target == "" {
		return nil
	}
	for _, store := range s.stores {
		recs, err := store.ListPendingEmbedding(ctx, target, batch)
		if err != nil {
			return err
		}
		for i := range recs {
			rec := recs[i]
			if rec.Migrated(target) {
				continue
			}
			if err := s.reembed(ctx, store, &rec, target); err != nil {
				logutil.GetLogger(ctx).Warn("backfill re-embed failed",
					zap.String("table", store.Table()), zap.String("id", rec.ID), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *AdminService) reembed(ctx context.Context, store RecordStore, rec *model.Record, target string) error {
	vec, err := s.manager.Embed(ctx, embedTextFor(rec), ai.TaskTypeDocument)
	if err != nil {
		return err
	}
	if vec == nil {
		return nil
	}
	fields := map[string]interface{}{
		"embedding":       repo.EmbeddingValue(vec),
		"embedding_model": target,
	}
	if err := store.UpdateFields(ctx, rec.OwnerID, rec.ID, fields); err != nil {
		return err
	}
	if s.index == nil {
		return nil
	}
	entry := vectorindex.Entry{
		ID:     rec.ID,
		Vector: vec,
		Metadata: vectorindex.Metadata{
			OwnerID: rec.OwnerID,
			Table:   store.Table(),
			Type:    rec.Tag,
		},
	}
	return s.index.Upsert(ctx, []vectorindex.Entry{entry})
}

// MigrationStatus reports per-table embedding migration progress against the
// currently configured embedding model.
func (s *AdminService) MigrationStatus(ctx context.Context) ([]repo.MigrationStatus, error) {
	target := s.manager.EmbeddingModelName()
	out := make([]repo.MigrationStatus, 0, len(s.stores))
	for _, store := range s.stores {
		status, err := store.MigrationStatusFor(ctx, target)
		if err != nil {
			return nil, err
		}
		out = append(out, *status)
	}
	return out, nil
}
