package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/enrich"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/internal/vectorindex"
)

// hashDedupWindow is how far back the content-hash dedup looks. A resubmission
// after the window is accepted again; that is documented behavior, not a bug.
const hashDedupWindow = 24 * time.Hour

// backgroundEnrichTimeout bounds a deferred enrichment pass.
const backgroundEnrichTimeout = 60 * time.Second

var idPrefixByTable = map[string]string{
	model.TableMemories: "mem_",
	model.TablePosts:    "post_",
}

// Enricher is the slice of the enrichment pipeline the capture path uses.
type Enricher interface {
	Enrich(ctx context.Context, rawURL string) (*enrich.Result, error)
}

type CaptureService struct {
	manager  *ai.Manager
	index    vectorindex.Index
	stores   Stores
	enricher Enricher
	// asyncEnrich defers save-triggered enrichment so the caller is not
	// blocked on third-party fetches.
	asyncEnrich bool

	background sync.WaitGroup
}

func NewCaptureService(manager *ai.Manager, index vectorindex.Index, stores Stores, enricher Enricher, asyncEnrich bool) *CaptureService {
	return &CaptureService{
		manager:     manager,
		index:       index,
		stores:      stores,
		enricher:    enricher,
		asyncEnrich: asyncEnrich,
	}
}

type SaveInput struct {
	Text      string
	Tag       string
	Table     string
	Context   model.Context
	SkipDedup bool
}

type SaveResult struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
	Enriched  bool   `json:"enriched"`
	Type      string `json:"type"`
}

// Save captures one piece of content: dedup, optional enrichment, embedding,
// relational write, then best-effort vector index write.
func (s *CaptureService) Save(ctx context.Context, ownerID string, in SaveInput) (*SaveResult, error) {
	text := strings.TrimSpace(in.Text)
	if ownerID == "" || text == "" {
		return nil, appErr.ErrInvalid
	}
	store, ok := s.stores.pick(in.Table)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID), zap.String("table", store.Table()))

	isURL := enrich.IsBareURL(text)
	if !in.SkipDedup {
		if existing := s.findDuplicate(ctx, store, ownerID, text, isURL); existing != nil {
			logger.Info("duplicate save rejected", zap.String("existing_id", existing.ID))
			return &SaveResult{ID: existing.ID, Duplicate: true, Type: existing.Tag}, nil
		}
	}

	now := time.Now().UnixMilli()
	rec := &model.Record{
		ID:      newID(idPrefixByTable[store.Table()]),
		OwnerID: ownerID,
		Text:    text,
		Context: in.Context,
		Tag:     in.Tag,
		Ctime:   now,
		Mtime:   now,
	}
	if !isURL && len(text) > hashDedupMinLen {
		rec.ContentHash = contentHash(text)
	}

	embedText := text
	if isURL {
		if rec.Tag == "" {
			rec.Tag = model.TagLink
		}
		rec.Context = rec.Context.Merge(model.Context{"subtype": enrich.Classify(text)})
	} else {
		if rec.Tag == "" {
			rec.Tag = model.TagMemory
		}
		embedText = ai.PlainText(text)
		rec.SearchKeywords = strings.Join(extractKeywords(embedText), " ")
	}

	// The embedding is best-effort: a provider outage must not block capture.
	if vec, err := s.manager.Embed(ctx, embedText, ai.TaskTypeDocument); err != nil {
		logger.Warn("save embedding failed, record kept without vector", zap.Error(err))
	} else if vec != nil {
		rec.EmbeddingVector = vec
		rec.EmbeddingModel = s.manager.EmbeddingModelName()
	}

	if err := store.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.upsertIndex(ctx, store.Table(), rec)

	result := &SaveResult{ID: rec.ID, Type: rec.Tag}
	if isURL && s.enricher != nil {
		if s.asyncEnrich {
			s.background.Add(1)
			go func() {
				defer s.background.Done()
				bgCtx, cancel := context.WithTimeout(context.Background(), backgroundEnrichTimeout)
				defer cancel()
				s.EnrichRecord(bgCtx, store, rec)
			}()
		} else {
			result.Enriched = s.EnrichRecord(ctx, store, rec)
		}
	}
	return result, nil
}

// EnrichRecord runs one enrichment pass over a saved URL record and reports
// whether it succeeded. Failure leaves the record as captured: raw URL text,
// embedding over the URL string.
func (s *CaptureService) EnrichRecord(ctx context.Context, store RecordStore, rec *model.Record) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("id", rec.ID), zap.String("url", rec.Text))
	result, err := s.enricher.Enrich(ctx, rec.Text)
	if err != nil {
		logger.Warn("enrichment failed, keeping raw url", zap.Error(err))
		return false
	}

	merged := rec.Context.Merge(result.Context).Merge(model.Context{"subtype": result.Subtype})
	fields := map[string]interface{}{
		"context":  repo.ContextValue(merged),
		"tag":      model.TagLink,
		"enriched": true,
		"mtime":    time.Now().UnixMilli(),
	}
	if vec, err := s.manager.Embed(ctx, result.EmbedText, ai.TaskTypeDocument); err != nil {
		logger.Warn("enrichment embedding failed", zap.Error(err))
	} else if vec != nil {
		rec.EmbeddingVector = vec
		rec.EmbeddingModel = s.manager.EmbeddingModelName()
		fields["embedding"] = repo.EmbeddingValue(vec)
		fields["embedding_model"] = rec.EmbeddingModel
	}
	if err := store.UpdateFields(ctx, rec.OwnerID, rec.ID, fields); err != nil {
		logger.Error("enrichment update failed", zap.Error(err))
		return false
	}
	rec.Context = merged
	rec.Tag = model.TagLink
	rec.Enriched = true
	// Same id, new vector: the index upsert replaces the prior entry.
	s.upsertIndex(ctx, store.Table(), rec)
	logger.Info("record enriched", zap.String("subtype", result.Subtype))
	return true
}

// Update replaces a record's text and re-embeds it.
func (s *CaptureService) Update(ctx context.Context, ownerID, table, id, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return appErr.ErrInvalid
	}
	store, ok := s.stores.pick(table)
	if !ok {
		return appErr.ErrInvalid
	}
	rec, err := store.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	fields := map[string]interface{}{
		"text":  newText,
		"mtime": time.Now().UnixMilli(),
	}
	if !enrich.IsBareURL(newText) && len(newText) > hashDedupMinLen {
		fields["content_hash"] = contentHash(newText)
	} else {
		fields["content_hash"] = int64(0)
	}
	embedText := ai.PlainText(newText)
	fields["search_keywords"] = strings.Join(extractKeywords(embedText), " ")
	if vec, err := s.manager.Embed(ctx, embedText, ai.TaskTypeDocument); err != nil {
		logutil.GetLogger(ctx).Warn("update embedding failed", zap.String("id", id), zap.Error(err))
	} else if vec != nil {
		rec.EmbeddingVector = vec
		rec.EmbeddingModel = s.manager.EmbeddingModelName()
		fields["embedding"] = repo.EmbeddingValue(vec)
		fields["embedding_model"] = rec.EmbeddingModel
	}
	if err := store.UpdateFields(ctx, ownerID, id, fields); err != nil {
		return err
	}
	rec.Text = newText
	s.upsertIndex(ctx, store.Table(), rec)
	return nil
}

// Delete removes the relational row, then best-effort the index entry. An
// index failure is logged, never rolled back; the drift is repaired by an
// explicit resync.
func (s *CaptureService) Delete(ctx context.Context, ownerID, table, id string) error {
	store, ok := s.stores.pick(table)
	if !ok {
		return appErr.ErrInvalid
	}
	if err := store.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteByIDs(ctx, []string{id}); err != nil {
			logutil.GetLogger(ctx).Warn("vector index delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *CaptureService) Get(ctx context.Context, ownerID, table, id string) (*model.Record, error) {
	store, ok := s.stores.pick(table)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	return store.GetByID(ctx, ownerID, id)
}

func (s *CaptureService) List(ctx context.Context, ownerID, table string, limit, offset uint) ([]model.Record, error) {
	store, ok := s.stores.pick(table)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	return store.List(ctx, ownerID, limit, offset)
}

// EnrichPending retries enrichment for link records an earlier pass failed
// on. Called from the cron job.
func (s *CaptureService) EnrichPending(ctx context.Context, batch uint) error {
	if s.enricher == nil {
		return nil
	}
	for _, store := range s.stores {
		recs, err := store.ListUnenrichedLinks(ctx, batch)
		if err != nil {
			return err
		}
		for i := range recs {
			rec := recs[i]
			if !enrich.IsBareURL(rec.Text) {
				continue
			}
			s.EnrichRecord(ctx, store, &rec)
		}
	}
	return nil
}

// Wait drains deferred enrichment work; called on shutdown so background
// tasks finish before the process exits.
func (s *CaptureService) Wait() {
	s.background.Wait()
}

func (s *CaptureService) findDuplicate(ctx context.Context, store RecordStore, ownerID, text string, isURL bool) *model.Record {
	logger := logutil.GetLogger(ctx)
	if isURL {
		existing, err := store.GetByExactText(ctx, ownerID, text)
		if err == nil {
			return existing
		}
		if !appErr.IsNotFound(err) {
			logger.Warn("url dedup lookup failed", zap.Error(err))
		}
		return nil
	}
	if len(text) <= hashDedupMinLen {
		return nil
	}
	since := time.Now().Add(-hashDedupWindow).UnixMilli()
	existing, err := store.FindByContentHash(ctx, ownerID, contentHash(text), since)
	if err == nil {
		return existing
	}
	if !appErr.IsNotFound(err) {
		logger.Warn("hash dedup lookup failed", zap.Error(err))
	}
	return nil
}

// upsertIndex mirrors the record into the vector index. This is the second
// step of the two-step write and is allowed to fail independently.
func (s *CaptureService) upsertIndex(ctx context.Context, table string, rec *model.Record) {
	if s.index == nil || len(rec.EmbeddingVector) == 0 {
		return
	}
	entry := vectorindex.Entry{
		ID:     rec.ID,
		Vector: rec.EmbeddingVector,
		Metadata: vectorindex.Metadata{
			OwnerID: rec.OwnerID,
			Table:   table,
			Type:    rec.Tag,
		},
	}
	if err := s.index.Upsert(ctx, []vectorindex.Entry{entry}); err != nil {
		logutil.GetLogger(ctx).Warn("vector index upsert failed", zap.String("id", rec.ID), zap.Error(err))
	}
}
