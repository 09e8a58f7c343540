package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/methods"
)

// handleV1ListStations returns the reference stations
// GET /api/v1/core/stations
func (s *Server) handleV1ListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stations, err := s.store.ListStations(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stations,
		"meta": gin.H{
			"count": len(stations),
		},
	})
}

// handleV1ListSamples returns water samples, newest first
// GET /api/v1/core/samples?station_id=&limit=
func (s *Server) handleV1ListSamples(c *gin.Context) {
	q := db.SampleQuery{Limit: s.cfg.DefaultLimit}

	if idStr := c.Query("station_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
			return
		}
		q.StationID = &id
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = limit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	samples, err := s.store.ListSamples(ctx, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": samples,
		"meta": gin.H{
			"count": len(samples),
			"limit": q.Limit,
		},
	})
}

// handleV1SampleValues returns the chemistry values of one water sample
// GET /api/v1/core/samples/:id/values
func (s *Server) handleV1SampleValues(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid water sample id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	values, err := s.store.ListValues(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(values) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no values for water sample"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": values,
		"meta": gin.H{
			"water_sample_id": id,
			"count":           len(values),
		},
	})
}

// handleV1ListMethods returns the template column to method id table
// GET /api/v1/core/methods
func (s *Server) handleV1ListMethods(c *gin.Context) {
	type column struct {
		Column string `json:"column"`
		methods.Method
	}
	out := make([]column, 0, len(methods.Methods))
	for _, m := range methods.Methods {
		out = append(out, column{Column: m.Key(), Method: m})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": gin.H{
			"count": len(out),
		},
	})
}

// handleV1Stats returns table row counts
// GET /api/v1/core/stats
func (s *Server) handleV1Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
