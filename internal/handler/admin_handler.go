package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type resyncRequest struct {
	Table string `json:"table"`
}

func (h *AdminHandler) Resync(c *gin.Context) {
	var req resyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.admin.Resync(c.Request.Context(), req.Table)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AdminHandler) MigrationStatus(c *gin.Context) {
	statuses, err := h.admin.MigrationStatus(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"tables": statuses})
}
