package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragdex/internal/pkg/errcode"
	"github.com/xxxsen/ragdex/internal/pkg/response"
	"github.com/xxxsen/ragdex/internal/vecindex"
)

type CollectionHandler struct {
	store vecindex.Store
}

func NewCollectionHandler(store vecindex.Store) *CollectionHandler {
	return &CollectionHandler{store: store}
}

func (h *CollectionHandler) List(c *gin.Context) {
	infos, err := h.store.ListCollections(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": infos})
}

func (h *CollectionHandler) Get(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		response.Error(c, errcode.ErrInvalid, "collection name required")
		return
	}
	info, err := h.store.GetCollection(c.Request.Context(), name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		response.Error(c, errcode.ErrInvalid, "collection name required")
		return
	}
	if err := h.store.DeleteCollection(c.Request.Context(), name); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": name})
}

func (h *CollectionHandler) Clear(c *gin.Context) {
	removed, err := h.store.ClearAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"collections_removed": removed})
}
