package service

import (
	"strings"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/enrich"
	"github.com/xxxsen/recall/internal/model"
)

const backfillEmbedTextCap = 10000

// embedTextFor rebuilds the embedding input for an already-stored record.
// Enriched links embed their extracted content, not the bare URL.
func embedTextFor(rec *model.Record) string {
	if rec.Enriched {
		// Fetched bodies (transcripts, page content) live in the archive,
		// not the row, so a backfill embeds the stored metadata.
		parts := make([]string, 0, 4)
		for _, key := range []string{"title", "author", "description", "tweet_text"} {
			if v := rec.Context.String(key); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return ai.Truncate(strings.Join(parts, "\n"), backfillEmbedTextCap)
		}
	}
	if enrich.IsBareURL(rec.Text) {
		return rec.Text
	}
	return ai.PlainText(rec.Text)
}
