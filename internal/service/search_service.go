package service

import (
	"context"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/vectorindex"
)

const (
	// overFetchMultiplier compensates for the shrinkage the in-memory
	// filters cause: index-side metadata predicates are not trusted, so the
	// index is asked for more candidates than the caller wants.
	overFetchMultiplier = 3
	overFetchCap        = 50

	// legacyScanLimit bounds the brute-force path to the newest rows. This
	// trades completeness for independence from the vector index.
	legacyScanLimit = 100
)

type SearchService struct {
	manager  *ai.Manager
	index    vectorindex.Index
	stores   Stores
	minScore float32
}

func NewSearchService(manager *ai.Manager, index vectorindex.Index, stores Stores, minScore float32) *SearchService {
	return &SearchService{
		manager:  manager,
		index:    index,
		stores:   stores,
		minScore: minScore,
	}
}

type SearchInput struct {
	Query     string
	Table     string
	TopK      int
	MinScore  *float32
	UseLegacy bool
}

// Search embeds the query and ranks the owner's records by similarity. The
// vector index is the primary path; when it is missing or failing, or when
// the caller asks for it, the legacy in-process scan takes over.
func (s *SearchService) Search(ctx context.Context, ownerID string, in SearchInput) ([]model.ScoredRecord, error) {
	store, ok := s.stores.pick(in.Table)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	topK := in.TopK
	if topK <= 0 {
		topK = 10
	}
	minScore := s.minScore
	if in.MinScore != nil {
		minScore = *in.MinScore
	}

	queryVec, err := s.manager.Embed(ctx, in.Query, ai.TaskTypeQuery)
	if err != nil || queryVec == nil {
		if err != nil {
			logutil.GetLogger(ctx).Error("query embedding failed", zap.Error(err))
		}
		return nil, appErr.ErrEmbeddingUnavailable
	}

	if s.index == nil || in.UseLegacy {
		return s.legacySearch(ctx, store, ownerID, queryVec, topK, minScore)
	}
	results, err := s.indexSearch(ctx, store, ownerID, queryVec, topK, minScore)
	if err != nil {
		// The index is a collaborator that may be down; the caller never
		// sees that, only the legacy results.
		logutil.GetLogger(ctx).Warn("vector index query failed, falling back to legacy scan", zap.Error(err))
		return s.legacySearch(ctx, store, ownerID, queryVec, topK, minScore)
	}
	return results, nil
}

func (s *SearchService) indexSearch(ctx context.Context, store RecordStore, ownerID string, queryVec []float32, topK int, minScore float32) ([]model.ScoredRecord, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID), zap.String("table", store.Table()))

	fetchK := topK * overFetchMultiplier
	if fetchK > overFetchCap {
		fetchK = overFetchCap
	}
	matches, err := s.index.Query(ctx, queryVec, fetchK, true)
	if err != nil {
		return nil, err
	}

	// Filter order matters: table, then owner, then score. The input is
	// already score-descending, a stable pass keeps it that way.
	filtered := make([]vectorindex.Match, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Table != store.Table() {
			continue
		}
		if ownerID != "" && m.Metadata.OwnerID != ownerID {
			continue
		}
		if m.Score < minScore {
			continue
		}
		filtered = append(filtered, m)
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	if len(filtered) == 0 {
		return []model.ScoredRecord{}, nil
	}

	ids := make([]string, 0, len(filtered))
	for _, m := range filtered {
		ids = append(ids, m.ID)
	}
	recs, err := store.ListByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}

	results := make([]model.ScoredRecord, 0, len(filtered))
	for _, m := range filtered {
		rec, ok := byID[m.ID]
		if !ok {
			// Stale index data: the id points at nothing. Dropped here,
			// repaired only by an explicit resync.
			logger.Warn("dropping drifted index hit", zap.String("id", m.ID))
			continue
		}
		results = append(results, model.ScoredRecord{Record: rec, Similarity: m.Score})
	}
	return results, nil
}

// legacySearch computes cosine similarity in-process over the stored vectors
// of the newest rows.
func (s *SearchService) legacySearch(ctx context.Context, store RecordStore, ownerID string, queryVec []float32, topK int, minScore float32) ([]model.ScoredRecord, error) {
	recs, err := store.ListRecentWithEmbedding(ctx, ownerID, legacyScanLimit)
	if err != nil {
		return nil, err
	}
	results := make([]model.ScoredRecord, 0, len(recs))
	for _, rec := range recs {
		score := vectorindex.CosineSimilarity(queryVec, rec.EmbeddingVector)
		if score < minScore {
			continue
		}
		results = append(results, model.ScoredRecord{Record: rec, Similarity: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// KeywordSearch is the degraded path when no embedding can be produced at
// all: substring matches scoped to the owner, newest first, unranked.
func (s *SearchService) KeywordSearch(ctx context.Context, ownerID string, in SearchInput) ([]model.Record, error) {
	store, ok := s.stores.pick(in.Table)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	limit := uint(in.TopK)
	if limit == 0 {
		limit = 10
	}
	keywords := extractKeywords(in.Query)
	if len(keywords) == 0 {
		return []model.Record{}, nil
	}
	return store.SearchKeywords(ctx, ownerID, keywords, limit)
}
