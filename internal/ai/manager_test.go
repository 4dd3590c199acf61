package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	lastInput string
	vec       []float32
	err       error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.lastInput = text
	return s.vec, s.err
}

func (s *stubEmbedder) ModelName() string { return "stub-embed" }

func TestManagerEmbedEmptyInputSkipsProvider(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{1}}
	m := NewManager(nil, stub, ManagerConfig{})

	vec, err := m.Embed(context.Background(), "   \n\t ", TaskTypeDocument)
	require.NoError(t, err)
	require.Nil(t, vec)
	require.Empty(t, stub.lastInput)
}

func TestManagerEmbedTruncatesLongInput(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{1}}
	m := NewManager(nil, stub, ManagerConfig{})

	_, err := m.Embed(context.Background(), strings.Repeat("x", EmbedInputCap+500), TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, stub.lastInput, EmbedInputCap)
}

func TestManagerEmbedBatchKeepsLength(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{1}}
	m := NewManager(nil, stub, ManagerConfig{})

	out := m.EmbedBatch(context.Background(), []string{"a", "", "c"}, TaskTypeDocument)
	require.Len(t, out, 3)
	require.NotNil(t, out[0])
	require.Nil(t, out[1])
	require.NotNil(t, out[2])
}

func TestManagerEmbedBatchProviderFailureYieldsAllNil(t *testing.T) {
	stub := &stubEmbedder{err: errors.New("quota exceeded")}
	m := NewManager(nil, stub, ManagerConfig{})

	out := m.EmbedBatch(context.Background(), []string{"a", "b"}, TaskTypeDocument)
	require.Len(t, out, 2)
	require.Nil(t, out[0])
	require.Nil(t, out[1])
}

func TestTruncateIsRuneSafe(t *testing.T) {
	require.Equal(t, "héllo", Truncate("héllo", 10))
	require.Equal(t, "hél", Truncate("héllo", 3))
	require.Equal(t, "anything", Truncate("anything", 0))
	require.Equal(t, "日本", Truncate("日本語のテキスト", 2))
}

func TestPlainTextStripsMarkdown(t *testing.T) {
	got := PlainText("# Title\n\nSome **bold** text with [a link](https://example.com).\n\n- item one\n- item two")
	require.NotContains(t, got, "#")
	require.NotContains(t, got, "**")
	require.NotContains(t, got, "](")
	require.Contains(t, got, "Title")
	require.Contains(t, got, "bold")
	require.Contains(t, got, "a link")
	require.Contains(t, got, "item one")
}

func TestManagerChatCitesSources(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		require.Contains(t, prompt, "[1] saved note about coffee")
		require.Contains(t, prompt, "how do I brew")
		return "Use a pour-over [1].", nil
	})
	m := NewManager(gen, nil, ManagerConfig{})

	answer, err := m.Chat(context.Background(), []ChatSource{{ID: "m1", Text: "saved note about coffee"}}, nil, "how do I brew")
	require.NoError(t, err)
	require.Equal(t, "Use a pour-over [1].", answer)
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
