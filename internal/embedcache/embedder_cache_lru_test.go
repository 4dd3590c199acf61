package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) ModelName() string { return "counting-embed" }

func TestLruEmbedderCachesRepeatedInput(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(inner, 4, time.Minute)

	first, err := cached.Embed(context.Background(), "same text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "same text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestLruEmbedderKeysOnTaskType(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(inner, 4, time.Minute)

	_, err := cached.Embed(context.Background(), "same text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "same text", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestLruEmbedderReturnsCopies(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(inner, 4, time.Minute)

	first, err := cached.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	first[0] = -1
	second, err := cached.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.NotEqual(t, float32(-1), second[0])
}

func TestWrapDisabledPassesThrough(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, inner, WrapLruCacheToEmbedder(inner, 0, time.Minute))
	require.Nil(t, WrapLruCacheToEmbedder(nil, 4, time.Minute))
}
