package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragdex/internal/pkg/errcode"
	"github.com/xxxsen/ragdex/internal/pkg/response"
	"github.com/xxxsen/ragdex/internal/service"
)

type SearchHandler struct {
	rag *service.RagService
}

func NewSearchHandler(rag *service.RagService) *SearchHandler {
	return &SearchHandler{rag: rag}
}

type searchRequest struct {
	Question   string `json:"question"`
	Collection string `json:"collection"`
	TopK       int    `json:"top_k"`
	InitialK   int    `json:"initial_k"`
	WithPrompt bool   `json:"with_prompt"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.rag.Search(c.Request.Context(), &service.SearchRequest{
		Question:   req.Question,
		Collection: req.Collection,
		TopK:       req.TopK,
		InitialK:   req.InitialK,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	resp := gin.H{"result": result}
	if req.WithPrompt {
		resp["prompt"] = h.rag.BuildPrompt(result)
	}
	response.Success(c, resp)
}
