package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

// chatSourceLimit caps how many retrieved records feed the prompt.
const chatSourceLimit = 6

// chatSnippetCap bounds each source snippet so a long article does not eat
// the whole context window.
const chatSnippetCap = 1200

type ChatService struct {
	manager  *ai.Manager
	searcher *SearchService
}

func NewChatService(manager *ai.Manager, searcher *SearchService) *ChatService {
	return &ChatService{manager: manager, searcher: searcher}
}

type ChatInput struct {
	Question string
	Table    string
	History  []ai.ChatMessage
}

type ChatSourceRef struct {
	ID         string  `json:"id"`
	Tag        string  `json:"tag"`
	Snippet    string  `json:"snippet"`
	Similarity float32 `json:"similarity"`
}

type ChatOutput struct {
	Answer  string          `json:"answer"`
	Sources []ChatSourceRef `json:"sources"`
}

// Chat retrieves the owner's most relevant records and answers the question
// grounded on them. Retrieval failure degrades to sources-free generation
// rather than failing the chat.
func (s *ChatService) Chat(ctx context.Context, ownerID string, in ChatInput) (*ChatOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	records := s.retrieve(ctx, ownerID, in)
	sources := make([]ai.ChatSource, 0, len(records))
	refs := make([]ChatSourceRef, 0, len(records))
	for _, rec := range records {
		snippet := sourceSnippet(rec.Record)
		sources = append(sources, ai.ChatSource{ID: rec.ID, Text: snippet})
		refs = append(refs, ChatSourceRef{
			ID:         rec.ID,
			Tag:        rec.Tag,
			Snippet:    ai.Truncate(snippet, 200),
			Similarity: rec.Similarity,
		})
	}
	answer, err := s.manager.Chat(ctx, sources, in.History, question)
	if err != nil {
		logutil.GetLogger(ctx).Error("chat generation failed", zap.Error(err))
		return nil, appErr.ErrAIUnavailable
	}
	return &ChatOutput{Answer: answer, Sources: refs}, nil
}

func (s *ChatService) retrieve(ctx context.Context, ownerID string, in ChatInput) []model.ScoredRecord {
	records, err := s.searcher.Search(ctx, ownerID, SearchInput{
		Query: in.Question,
		Table: in.Table,
		TopK:  chatSourceLimit,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("chat retrieval failed, answering without sources", zap.Error(err))
		return nil
	}
	return records
}

// sourceSnippet prefers enriched context text over the stored text, which
// for links is just the URL.
func sourceSnippet(rec model.Record) string {
	parts := make([]string, 0, 3)
	if title := rec.Context.String("title"); title != "" {
		parts = append(parts, title)
	}
	for _, key := range []string{"tweet_text", "description"} {
		if v := rec.Context.String(key); v != "" {
			parts = append(parts, v)
			break
		}
	}
	if len(parts) == 0 || !rec.Enriched {
		parts = append(parts, rec.Text)
	}
	return ai.Truncate(strings.Join(parts, "\n"), chatSnippetCap)
}
