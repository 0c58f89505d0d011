package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragdex/internal/config"
	"github.com/xxxsen/ragdex/internal/docsource"
	"github.com/xxxsen/ragdex/internal/ingest"
	"github.com/xxxsen/ragdex/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
	"github.com/xxxsen/ragdex/internal/pkg/response"
)

type IngestHandler struct {
	pipeline *ingest.Pipeline
	s3       config.S3Config
}

func NewIngestHandler(pipeline *ingest.Pipeline, s3 config.S3Config) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, s3: s3}
}

type ingestRequest struct {
	Collection string `json:"collection"`
	SourceType string `json:"source_type"`
	Path       string `json:"path"`
	Prefix     string `json:"prefix"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Collection) == "" {
		response.Error(c, errcode.ErrInvalid, "collection is required")
		return
	}

	srcCfg, err := h.sourceConfig(&req)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return
	}
	src, err := docsource.New(srcCfg)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), req.Collection, src)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrInvalid),
			errors.Is(err, appErr.ErrDimensionMismatch),
			errors.Is(err, appErr.ErrProviderUnavailable):
			handleError(c, err)
		default:
			logutil.GetLogger(c.Request.Context()).Error("indexing run failed",
				zap.String("request_id", requestID(c)),
				zap.String("collection", req.Collection),
				zap.Error(err),
			)
			response.Error(c, errcode.ErrIngestFailed, "indexing failed")
		}
		return
	}
	response.Success(c, result)
}

func (h *IngestHandler) sourceConfig(req *ingestRequest) (config.DocSourceConfig, error) {
	switch strings.ToLower(strings.TrimSpace(req.SourceType)) {
	case "", "local":
		if req.Path == "" {
			return config.DocSourceConfig{}, errors.New("path is required for local source")
		}
		return config.DocSourceConfig{
			Type: "local",
			Data: map[string]interface{}{"path": req.Path},
		}, nil
	case "s3":
		prefix := req.Prefix
		if prefix == "" {
			prefix = h.s3.Prefix
		}
		return config.DocSourceConfig{
			Type: "s3",
			Data: map[string]interface{}{
				"endpoint":   h.s3.Endpoint,
				"secret_id":  h.s3.SecretID,
				"secret_key": h.s3.SecretKey,
				"bucket":     h.s3.Bucket,
				"region":     h.s3.Region,
				"prefix":     prefix,
				"use_ssl":    h.s3.UseSSL,
			},
		}, nil
	default:
		return config.DocSourceConfig{}, errors.New("source_type must be local or s3")
	}
}
