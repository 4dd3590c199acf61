package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type SearchHandler struct {
	searcher *service.SearchService
}

func NewSearchHandler(searcher *service.SearchService) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		handleError(c, appErr.ErrInvalid)
		return
	}
	in := service.SearchInput{
		Query:     query,
		Table:     c.Query("table"),
		TopK:      int(uintQuery(c, "top_k", 10)),
		UseLegacy: c.Query("legacy") == "1" || c.Query("legacy") == "true",
	}
	if value := c.Query("min_score"); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			score := float32(parsed)
			in.MinScore = &score
		}
	}
	ownerID := getOwnerID(c)
	results, err := h.searcher.Search(c.Request.Context(), ownerID, in)
	if err == nil {
		response.Success(c, gin.H{"results": results, "ranked": true})
		return
	}
	// No query vector means no semantic ranking at all; fall back to the
	// keyword scan and mark the results unranked.
	if errors.Is(err, appErr.ErrEmbeddingUnavailable) {
		logutil.GetLogger(c.Request.Context()).Warn("semantic search unavailable, keyword fallback",
			zap.String("owner_id", ownerID))
		records, kwErr := h.searcher.KeywordSearch(c.Request.Context(), ownerID, in)
		if kwErr != nil {
			handleError(c, kwErr)
			return
		}
		response.Success(c, gin.H{"results": records, "ranked": false})
		return
	}
	handleError(c, err)
}
