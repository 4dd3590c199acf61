package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Question string           `json:"question"`
	Table    string           `json:"table"`
	History  []ai.ChatMessage `json:"history"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Question == "" {
		response.Error(c, errcode.ErrInvalid, "question required")
		return
	}
	out, err := h.chat.Chat(c.Request.Context(), getOwnerID(c), service.ChatInput{
		Question: req.Question,
		Table:    req.Table,
		History:  req.History,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}
