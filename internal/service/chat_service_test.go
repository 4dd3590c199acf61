package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/vectorindex"
)

type genFunc func(ctx context.Context, prompt string) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestChatGroundsAnswerOnRetrievedSources(t *testing.T) {
	store := newFakeStore(model.TableMemories)
	index := vectorindex.NewMemoryIndex()
	stores := Stores{model.TableMemories: store}
	seedRecord(t, store, "m1", "u1", "espresso ratio is 1:2", []float32{1, 0, 0})
	require.NoError(t, index.Upsert(context.Background(), []vectorindex.Entry{{
		ID:     "m1",
		Vector: []float32{1, 0, 0},
		Metadata: vectorindex.Metadata{
			OwnerID: "u1",
			Table:   model.TableMemories,
		},
	}}))

	var seenPrompt string
	gen := genFunc(func(ctx context.Context, prompt string) (string, error) {
		seenPrompt = prompt
		return "Use a 1:2 ratio [1].", nil
	})
	manager := ai.NewManager(gen, &fakeEmbedder{}, ai.ManagerConfig{})
	searcher := NewSearchService(manager, index, stores, 0.5)
	svc := NewChatService(manager, searcher)

	out, err := svc.Chat(context.Background(), "u1", ChatInput{Question: "what espresso ratio"})
	require.NoError(t, err)
	require.Equal(t, "Use a 1:2 ratio [1].", out.Answer)
	require.Len(t, out.Sources, 1)
	require.Equal(t, "m1", out.Sources[0].ID)
	require.True(t, strings.Contains(seenPrompt, "espresso ratio is 1:2"))
}

func TestChatAnswersWithoutSourcesWhenRetrievalFails(t *testing.T) {
	stores := Stores{model.TableMemories: newFakeStore(model.TableMemories)}
	gen := genFunc(func(ctx context.Context, prompt string) (string, error) {
		return "I have nothing saved about that.", nil
	})
	// Embedding fails, so retrieval yields no sources at all.
	manager := ai.NewManager(gen, &fakeEmbedder{err: errors.New("quota")}, ai.ManagerConfig{})
	searcher := NewSearchService(manager, nil, stores, 0.5)
	svc := NewChatService(manager, searcher)

	out, err := svc.Chat(context.Background(), "u1", ChatInput{Question: "anything"})
	require.NoError(t, err)
	require.Empty(t, out.Sources)
	require.NotEmpty(t, out.Answer)
}

func TestChatGeneratorFailureSurfaces(t *testing.T) {
	stores := Stores{model.TableMemories: newFakeStore(model.TableMemories)}
	gen := genFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model down")
	})
	manager := ai.NewManager(gen, &fakeEmbedder{}, ai.ManagerConfig{})
	searcher := NewSearchService(manager, nil, stores, 0.5)
	svc := NewChatService(manager, searcher)

	_, err := svc.Chat(context.Background(), "u1", ChatInput{Question: "anything"})
	require.ErrorIs(t, err, appErr.ErrAIUnavailable)
}

func TestChatEmptyQuestionRejected(t *testing.T) {
	svc := NewChatService(ai.NewManager(nil, nil, ai.ManagerConfig{}), nil)
	_, err := svc.Chat(context.Background(), "u1", ChatInput{Question: "  "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
