package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// EmbedInputCap is the character budget handed to the embedding model. Longer
// input is truncated before the call, so callers must not assume the full
// text was encoded.
const EmbedInputCap = 8000

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
	}
}

// Embed turns text into a dense vector. Empty or whitespace-only input yields
// (nil, nil) without touching the provider; provider failures return an error
// so that callers can decide to soft-fail.
func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	trimmed = Truncate(trimmed, EmbedInputCap)
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	return m.embedder.Embed(ctx, trimmed, taskType)
}

// EmbedBatch embeds each text in order. The result always has the same length
// as the input: nil for texts that were empty after truncation, and all-nil
// when the provider fails outright. It never returns an error.
func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text, taskType)
		if err != nil {
			logutil.GetLogger(ctx).Warn("batch embed failed, nulling remaining slots", zap.Int("index", i), zap.Error(err))
			return make([][]float32, len(texts))
		}
		out[i] = vec
	}
	return out
}

type ChatSource struct {
	ID   string
	Text string
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat answers a question over the given ranked source snippets, RAG style.
func (m *Manager) Chat(ctx context.Context, sources []ChatSource, history []ChatMessage, question string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	var sb strings.Builder
	sb.WriteString(`You are a helpful assistant answering questions over the user's saved memories.
- Ground every claim in the SOURCES below; cite sources as [n].
- If the sources do not cover the question, say so plainly.
- Use the same language as the question.

SOURCES:
`)
	for i, src := range sources {
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, Truncate(src.Text, 1500)))
	}
	if len(history) > 0 {
		sb.WriteString("\nCONVERSATION:\n")
		for _, msg := range history {
			sb.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
		}
	}
	sb.WriteString("\nQUESTION:\n")
	sb.WriteString(question)
	return m.generateText(ctx, sb.String())
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// Truncate cuts s to at most max runes, never splitting a rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
