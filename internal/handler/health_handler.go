package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragdex/internal/pkg/response"
	"github.com/xxxsen/ragdex/internal/service"
)

type HealthHandler struct {
	rag *service.RagService
}

func NewHealthHandler(rag *service.RagService) *HealthHandler {
	return &HealthHandler{rag: rag}
}

func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, h.rag.Health(c.Request.Context()))
}
