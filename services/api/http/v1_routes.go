package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the v1 API structure.
// Groups: /api/v1/core (read-only reference and imported data), /api/v1/imports
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	core := v1.Group("/core")
	{
		core.GET("/stations", s.handleV1ListStations)
		core.GET("/samples", s.handleV1ListSamples)
		core.GET("/samples/:id/values", s.handleV1SampleValues)
		core.GET("/methods", s.handleV1ListMethods)
		core.GET("/stats", s.handleV1Stats)
	}

	v1.POST("/imports", s.handleV1Import)
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
