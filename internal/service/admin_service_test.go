package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/vectorindex"
)

func TestResyncRebuildsIndexFromStore(t *testing.T) {
	store := newFakeStore(model.TableMemories)
	index := vectorindex.NewMemoryIndex()
	stores := Stores{model.TableMemories: store}

	for i := 0; i < 5; i++ {
		seedRecord(t, store, fmt.Sprintf("m%d", i), "u1", "text", []float32{1, 0, 0})
	}
	// Records without vectors are skipped.
	seedRecord(t, store, "novec", "u1", "text", nil)

	svc := NewAdminService(newTestManager(&fakeEmbedder{}), index, stores)
	result, err := svc.Resync(context.Background(), model.TableMemories)
	require.NoError(t, err)
	require.Equal(t, 5, result.Upserted)
	require.Equal(t, 5, index.Len())
}

func TestResyncWithoutIndexRejected(t *testing.T) {
	stores := Stores{model.TableMemories: newFakeStore(model.TableMemories)}
	svc := NewAdminService(newTestManager(&fakeEmbedder{}), nil, stores)
	_, err := svc.Resync(context.Background(), model.TableMemories)
	require.ErrorIs(t, err, appErr.ErrIndexUnavailable)
}

func TestBackfillEmbeddingsMigratesStaleModels(t *testing.T) {
	store := newFakeStore(model.TableMemories)
	index := vectorindex.NewMemoryIndex()
	stores := Stores{model.TableMemories: store}

	require.NoError(t, store.Create(context.Background(), &model.Record{
		ID:              "stale",
		OwnerID:         "u1",
		Text:            "needs a new vector",
		EmbeddingVector: []float32{1},
		EmbeddingModel:  "old-model",
	}))
	require.NoError(t, store.Create(context.Background(), &model.Record{
		ID:              "fresh",
		OwnerID:         "u1",
		Text:            "already current",
		EmbeddingVector: []float32{1},
		EmbeddingModel:  "fake-embed-001",
	}))

	svc := NewAdminService(newTestManager(&fakeEmbedder{}), index, stores)
	require.NoError(t, svc.BackfillEmbeddings(context.Background(), 10))

	fields, ok := store.updates["stale"]
	require.True(t, ok)
	require.Equal(t, "fake-embed-001", fields["embedding_model"])
	require.NotContains(t, store.updates, "fresh")
	require.Equal(t, 1, index.Len())
}

func TestMigrationStatusCountsPerTable(t *testing.T) {
	store := newFakeStore(model.TableMemories)
	stores := Stores{model.TableMemories: store}

	seedRecord(t, store, "done", "u1", "migrated", []float32{1})
	require.NoError(t, store.Create(context.Background(), &model.Record{
		ID: "pending", OwnerID: "u1", Text: "no vector yet",
	}))

	svc := NewAdminService(newTestManager(&fakeEmbedder{}), nil, stores)
	statuses, err := svc.MigrationStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, 2, statuses[0].Total)
	require.Equal(t, 1, statuses[0].Migrated)
	require.Equal(t, 1, statuses[0].Pending)
}
