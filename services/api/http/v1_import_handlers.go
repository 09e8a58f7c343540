package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/pipeline"
	"github.com/JamesSample/icpw2/internal/transform"
)

// handleV1Import runs an uploaded template through the import pipeline.
// Imports are dry runs unless dry_run=false.
// POST /api/v1/imports?duplicates=mean|drop&dry_run=true|false  (multipart field "file")
func (s *Server) handleV1Import(c *gin.Context) {
	policy := transform.PolicyMean
	if v := c.Query("duplicates"); v != "" {
		p, err := transform.ParsePolicy(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errs.Kind(err)})
			return
		}
		policy = p
	}

	dryRun := true
	if v := c.Query("dry_run"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dry_run parameter"})
			return
		}
		dryRun = parsed
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes())
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "template too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ImportTimeout)
	defer cancel()

	res, err := pipeline.RunReader(ctx, s.store, file, pipeline.Options{
		Policy:  policy,
		DryRun:  dryRun,
		Logger:  s.logger.With(zap.String("template", header.Filename)),
		Metrics: s.metrics,
	})
	if err != nil {
		if kind := errs.Kind(err); kind != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": kind})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if res.DryRun {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"data": res,
		"meta": gin.H{
			"template": header.Filename,
		},
	})
}
