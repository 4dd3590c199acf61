package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/enrich"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/vectorindex"
)

func newCaptureFixture(t *testing.T, enricher Enricher) (*CaptureService, *fakeStore, *vectorindex.MemoryIndex) {
	t.Helper()
	store := newFakeStore(model.TableMemories)
	index := vectorindex.NewMemoryIndex()
	stores := Stores{model.TableMemories: store}
	svc := NewCaptureService(newTestManager(&fakeEmbedder{}), index, stores, enricher, false)
	return svc, store, index
}

func TestSaveNoteSetsTagAndIndexEntry(t *testing.T) {
	svc, store, index := newCaptureFixture(t, nil)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "remember to water the plants"})
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Equal(t, model.TagMemory, result.Type)
	require.True(t, strings.HasPrefix(result.ID, "mem_"))

	rec, err := store.GetByID(context.Background(), "u1", result.ID)
	require.NoError(t, err)
	require.Equal(t, "fake-embed-001", rec.EmbeddingModel)
	require.NotEmpty(t, rec.SearchKeywords)
	require.Equal(t, 1, index.Len())
}

func TestSaveDuplicateURLRejected(t *testing.T) {
	svc, _, _ := newCaptureFixture(t, nil)

	first, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/article"})
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/article"})
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.ID, second.ID)
}

func TestSaveDuplicateTextByContentHash(t *testing.T) {
	svc, _, _ := newCaptureFixture(t, nil)
	long := strings.Repeat("the same long note about something worth keeping ", 3)

	first, err := svc.Save(context.Background(), "u1", SaveInput{Text: long})
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := svc.Save(context.Background(), "u1", SaveInput{Text: long})
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.ID, second.ID)
}

func TestSaveShortTextSkipsHashDedup(t *testing.T) {
	svc, _, _ := newCaptureFixture(t, nil)

	first, err := svc.Save(context.Background(), "u1", SaveInput{Text: "short note"})
	require.NoError(t, err)
	second, err := svc.Save(context.Background(), "u1", SaveInput{Text: "short note"})
	require.NoError(t, err)
	require.False(t, second.Duplicate)
	require.NotEqual(t, first.ID, second.ID)
}

func TestSaveSkipDedupBypassesCheck(t *testing.T) {
	svc, _, _ := newCaptureFixture(t, nil)

	_, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/a"})
	require.NoError(t, err)
	second, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/a", SkipDedup: true})
	require.NoError(t, err)
	require.False(t, second.Duplicate)
}

func TestSaveURLEnrichmentSuccess(t *testing.T) {
	enricher := &fakeEnricher{result: &enrich.Result{
		Subtype:   enrich.SubtypeWebpage,
		Context:   model.Context{"title": "An Article"},
		EmbedText: "An Article\nlong extracted body",
	}}
	svc, store, _ := newCaptureFixture(t, enricher)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/post"})
	require.NoError(t, err)
	require.True(t, result.Enriched)
	require.Equal(t, 1, enricher.calls)

	rec, err := store.GetByID(context.Background(), "u1", result.ID)
	require.NoError(t, err)
	require.True(t, rec.Enriched)
	require.Equal(t, model.TagLink, rec.Tag)
	// Text stays the raw URL even after enrichment.
	require.Equal(t, "https://example.com/post", rec.Text)
}

func TestSaveURLEnrichmentFailureKeepsRecord(t *testing.T) {
	enricher := &fakeEnricher{err: errors.New("fetch timeout")}
	svc, store, index := newCaptureFixture(t, enricher)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/broken"})
	require.NoError(t, err)
	require.False(t, result.Enriched)

	rec, err := store.GetByID(context.Background(), "u1", result.ID)
	require.NoError(t, err)
	require.False(t, rec.Enriched)
	require.Equal(t, "https://example.com/broken", rec.Text)
	require.Equal(t, 1, index.Len())
}

func TestSaveProceedsWhenEmbeddingFails(t *testing.T) {
	store := newFakeStore(model.TableMemories)
	index := vectorindex.NewMemoryIndex()
	stores := Stores{model.TableMemories: store}
	svc := NewCaptureService(newTestManager(&fakeEmbedder{err: errors.New("quota")}), index, stores, nil, false)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "still captured"})
	require.NoError(t, err)

	rec, err := store.GetByID(context.Background(), "u1", result.ID)
	require.NoError(t, err)
	require.Empty(t, rec.EmbeddingVector)
	require.Equal(t, 0, index.Len())
}

func TestDeleteRemovesIndexEntry(t *testing.T) {
	svc, _, index := newCaptureFixture(t, nil)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "to be deleted"})
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())

	require.NoError(t, svc.Delete(context.Background(), "u1", "", result.ID))
	require.Equal(t, 0, index.Len())
	_, err = svc.Get(context.Background(), "u1", "", result.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDeleteSurvivesIndexFailure(t *testing.T) {
	store := newFakeStore(model.TableMemories)
	stores := Stores{model.TableMemories: store}
	svc := NewCaptureService(newTestManager(&fakeEmbedder{}), &failingIndex{err: errors.New("down")}, stores, nil, false)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "note"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), "u1", "", result.ID))
	_, err = store.GetByID(context.Background(), "u1", result.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestEnrichPendingRetriesFailedLinks(t *testing.T) {
	enricher := &fakeEnricher{err: errors.New("down")}
	svc, store, _ := newCaptureFixture(t, enricher)

	_, err := svc.Save(context.Background(), "u1", SaveInput{Text: "https://example.com/retry"})
	require.NoError(t, err)
	require.Equal(t, 1, enricher.calls)

	enricher.err = nil
	enricher.result = &enrich.Result{Subtype: enrich.SubtypeWebpage, Context: model.Context{"title": "ok"}, EmbedText: "ok"}
	require.NoError(t, svc.EnrichPending(context.Background(), 10))
	require.Equal(t, 2, enricher.calls)

	recs, err := store.ListUnenrichedLinks(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestUpdateReplacesTextAndReindexes(t *testing.T) {
	svc, store, index := newCaptureFixture(t, nil)

	result, err := svc.Save(context.Background(), "u1", SaveInput{Text: "old text"})
	require.NoError(t, err)
	require.NoError(t, svc.Update(context.Background(), "u1", "", result.ID, "new text"))

	rec, err := store.GetByID(context.Background(), "u1", result.ID)
	require.NoError(t, err)
	require.Equal(t, "new text", rec.Text)
	require.Equal(t, 1, index.Len())
}

func TestSaveRejectsEmptyInput(t *testing.T) {
	svc, _, _ := newCaptureFixture(t, nil)
	_, err := svc.Save(context.Background(), "u1", SaveInput{Text: "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Save(context.Background(), "", SaveInput{Text: "x"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
