package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type RecordHandler struct {
	capture *service.CaptureService
}

func NewRecordHandler(capture *service.CaptureService) *RecordHandler {
	return &RecordHandler{capture: capture}
}

type saveRequest struct {
	Text      string        `json:"text"`
	Tag       string        `json:"tag"`
	Table     string        `json:"table"`
	Context   model.Context `json:"context"`
	SkipDedup bool          `json:"skip_dedup"`
}

func (h *RecordHandler) Save(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Text == "" {
		response.Error(c, errcode.ErrInvalid, "text required")
		return
	}
	result, err := h.capture.Save(c.Request.Context(), getOwnerID(c), service.SaveInput{
		Text:      req.Text,
		Tag:       req.Tag,
		Table:     req.Table,
		Context:   req.Context,
		SkipDedup: req.SkipDedup,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *RecordHandler) List(c *gin.Context) {
	limit := uintQuery(c, "limit", 20)
	offset := uintQuery(c, "offset", 0)
	records, err := h.capture.List(c.Request.Context(), getOwnerID(c), c.Query("table"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"records": records})
}

func (h *RecordHandler) Get(c *gin.Context) {
	rec, err := h.capture.Get(c.Request.Context(), getOwnerID(c), c.Query("table"), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}

type updateRequest struct {
	Text  string `json:"text"`
	Table string `json:"table"`
}

func (h *RecordHandler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.capture.Update(c.Request.Context(), getOwnerID(c), req.Table, c.Param("id"), req.Text); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.capture.Delete(c.Request.Context(), getOwnerID(c), c.Query("table"), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

func uintQuery(c *gin.Context, key string, fallback uint) uint {
	value := c.Query(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return uint(parsed)
}
