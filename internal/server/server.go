// Package server exposes the batch engine over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core"
)

type Server struct {
	GenAI  *core.GenAI
	cfg    config.ServerConfig
	logger *zap.Logger
}

func NewServer(g *core.GenAI, cfg config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		GenAI:  g,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.logger), RequestID(), RequestLogger(s.logger), Metrics(), CORS(s.cfg.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/batch-summary", s.BatchSummary)
	api.POST("/batch-summary/items", s.BatchSummaryItems)
	api.POST("/batch-summary/collection/:collectionId", s.BatchSummaryCollection)
	api.POST("/operations/execute", s.ExecuteOperation)
	api.POST("/relationships/scan", s.ScanRelationships)

	api.POST("/items", s.CreateItem)
	api.GET("/items", s.ListItems)
	api.GET("/items/:id", s.GetItem)
	api.PUT("/items/:id/attributes", s.UpdateItemAttributes)

	api.POST("/collections", s.CreateCollection)
	api.POST("/collections/:id/members", s.AddMembers)
	api.GET("/collections/:id/members", s.CollectionMembers)

	api.POST("/model-configurations", s.CreateConfiguration)
	api.GET("/model-configurations", s.ListConfigurations)
	api.GET("/model-configurations/:id", s.GetConfiguration)

	api.GET("/summaries", s.ListSummaries)
	api.GET("/relationships", s.ListRelationships)
	api.GET("/model-calls", s.ListModelCalls)

	return r
}
