package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/core/batch"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/core/operations"
	"github.com/agenthands/genai/internal/store"
)

// respondError maps request-level errors to their HTTP status. Per-item
// failures never reach here; they are reported in the 200 body.
func respondError(c *gin.Context, err error) {
	appErr := apperr.As(err)
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus(), gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  apperr.CodeInvalidArgument,
	})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter.
func queryID(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}

type BatchSummaryRequest struct {
	ModelConfigurationID int64    `json:"modelConfigurationId"`
	Prompt               string   `json:"prompt"`
	ItemTypes            []string `json:"itemTypes"`
}

func (s *Server) BatchSummary(c *gin.Context) {
	var req BatchSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	s.runBatch(c, batch.ByTypes(req.ItemTypes...), req.Prompt, req.ModelConfigurationID)
}

type BatchSummaryItemsRequest struct {
	ItemIDs              []int64 `json:"itemIds"`
	Prompt               string  `json:"prompt"`
	ModelConfigurationID int64   `json:"modelConfigurationId"`
}

func (s *Server) BatchSummaryItems(c *gin.Context) {
	var req BatchSummaryItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	s.runBatch(c, batch.ByIDs(req.ItemIDs...), req.Prompt, req.ModelConfigurationID)
}

type BatchSummaryCollectionRequest struct {
	Prompt               string `json:"prompt"`
	ModelConfigurationID int64  `json:"modelConfigurationId"`
}

func (s *Server) BatchSummaryCollection(c *gin.Context) {
	collectionID, ok := pathID(c, "collectionId")
	if !ok {
		return
	}
	var req BatchSummaryCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	s.runBatch(c, batch.ByCollection(collectionID), req.Prompt, req.ModelConfigurationID)
}

func (s *Server) runBatch(c *gin.Context, sel batch.Selector, prompt string, configID int64) {
	res, err := s.GenAI.SummarizeBatch(c.Request.Context(), sel, prompt, configID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) ExecuteOperation(c *gin.Context) {
	var req operations.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	res, err := s.GenAI.ExecuteOperation(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type ScanRequest struct {
	CollectionID         int64    `json:"collectionId"`
	ModelConfigurationID int64    `json:"modelConfigurationId"`
	RelationshipTypes    []string `json:"relationshipTypes"`
}

func (s *Server) ScanRelationships(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	res, err := s.GenAI.ScanRelationships(c.Request.Context(), req.CollectionID, req.ModelConfigurationID, req.RelationshipTypes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) CreateItem(c *gin.Context) {
	var req model.Entity
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	e, err := s.GenAI.CreateItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ListItems accepts ?type=book&type=film as well as ?type=book,film.
func (s *Server) ListItems(c *gin.Context) {
	var types []string
	for _, raw := range c.QueryArray("type") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	items, err := s.GenAI.ListItems(c.Request.Context(), types)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) GetItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	e, err := s.GenAI.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) UpdateItemAttributes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch model.Attributes
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	e, err := s.GenAI.UpdateItemAttributes(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type CreateCollectionRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ItemIDs     []int64 `json:"itemIds"`
}

func (s *Server) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	coll, err := s.GenAI.CreateCollection(c.Request.Context(), req.Name, req.Description, req.ItemIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coll)
}

type AddMembersRequest struct {
	ItemIDs []int64 `json:"itemIds"`
}

func (s *Server) AddMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	added, err := s.GenAI.AddMembers(c.Request.Context(), id, req.ItemIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collectionId": id, "added": added})
}

func (s *Server) CollectionMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := s.GenAI.CollectionMembers(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collectionId": id, "items": members})
}

func (s *Server) CreateConfiguration(c *gin.Context) {
	var req model.ModelConfiguration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	mc, err := s.GenAI.CreateConfiguration(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mc)
}

func (s *Server) ListConfigurations(c *gin.Context) {
	configs, err := s.GenAI.ListConfigurations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modelConfigurations": configs})
}

// GetConfiguration leaves id validation to the service so that non-positive
// and unknown ids get the same messages as the batch endpoints.
func (s *Server) GetConfiguration(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	mc, err := s.GenAI.GetConfiguration(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mc)
}

func (s *Server) ListSummaries(c *gin.Context) {
	batchID, ok := queryID(c, "batchId")
	if !ok {
		return
	}
	entityID, ok := queryID(c, "entityId")
	if !ok {
		return
	}
	out, err := s.GenAI.Summaries(c.Request.Context(), store.SummaryFilter{
		BatchID:    batchID,
		EntityID:   entityID,
		EntityType: c.Query("entityType"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": out})
}

func (s *Server) ListRelationships(c *gin.Context) {
	entityID, ok := queryID(c, "entityId")
	if !ok {
		return
	}
	if entityID == nil {
		badRequest(c, "entityId is required")
		return
	}
	out, err := s.GenAI.Relationships(c.Request.Context(), *entityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": out})
}

func (s *Server) ListModelCalls(c *gin.Context) {
	batchID, ok := queryID(c, "batchId")
	if !ok {
		return
	}
	out, err := s.GenAI.ModelCalls(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modelCalls": out})
}
