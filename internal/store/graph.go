package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/driver"
)

// GraphStore persists every record type as Memgraph nodes. Ids come from
// per-label :Sequence nodes incremented in the same query that creates the
// row.
type GraphStore struct {
	driver driver.GraphDriver
	now    func() time.Time
}

func NewGraphStore(d driver.GraphDriver) *GraphStore {
	return &GraphStore{driver: d, now: time.Now}
}

func (g *GraphStore) timestamp() string {
	return g.now().UTC().Format(time.RFC3339Nano)
}

// NextValue increments and returns the named sequence.
func (g *GraphStore) NextValue(ctx context.Context, name string) (int64, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.NextSequenceValueQuery, map[string]any{"sequence": name})
	if err != nil {
		return 0, fmt.Errorf("next %s sequence value: %w", name, err)
	}
	if len(res.Records) == 0 {
		return 0, fmt.Errorf("next %s sequence value: no row returned", name)
	}
	return row{res.Records[0]}.int64("value"), nil
}

func encodeAttributes(attrs model.Attributes) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

func (g *GraphStore) queryItems(ctx context.Context, query string, params map[string]any) ([]model.Entity, error) {
	res, err := g.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, row{rec}.entity())
	}
	return out, nil
}

func (g *GraphStore) oneItem(ctx context.Context, query string, params map[string]any) (*model.Entity, error) {
	items, err := g.queryItems(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

func (g *GraphStore) CreateItem(ctx context.Context, e model.Entity) (model.Entity, error) {
	attrs, err := encodeAttributes(e.Attributes)
	if err != nil {
		return model.Entity{}, err
	}
	created, err := g.oneItem(ctx, driver.CreateItemQuery, map[string]any{
		"sequence":    driver.SeqItem,
		"type":        e.Type,
		"name":        e.Name,
		"description": e.Description,
		"attributes":  attrs,
		"created_at":  g.timestamp(),
	})
	if err != nil {
		return model.Entity{}, fmt.Errorf("create item: %w", err)
	}
	return *created, nil
}

func (g *GraphStore) UpdateAttributes(ctx context.Context, id int64, attrs model.Attributes) (*model.Entity, error) {
	encoded, err := encodeAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return g.oneItem(ctx, driver.UpdateItemAttributesQuery, map[string]any{
		"id":         id,
		"attributes": encoded,
		"updated_at": g.timestamp(),
	})
}

func (g *GraphStore) FindByID(ctx context.Context, id int64) (*model.Entity, error) {
	return g.oneItem(ctx, driver.GetItemQuery, map[string]any{"id": id})
}

func (g *GraphStore) FindAll(ctx context.Context) ([]model.Entity, error) {
	return g.queryItems(ctx, driver.ListItemsQuery, nil)
}

func (g *GraphStore) FindByTypes(ctx context.Context, types []string) ([]model.Entity, error) {
	return g.queryItems(ctx, driver.ListItemsByTypesQuery, map[string]any{"types": types})
}

func (g *GraphStore) FindByIDs(ctx context.Context, ids []int64) ([]model.Entity, error) {
	return g.queryItems(ctx, driver.ListItemsByIDsQuery, map[string]any{"ids": ids})
}

func (g *GraphStore) FindCollection(ctx context.Context, id int64) (*model.Collection, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.CollectionDefinitionQuery, map[string]any{"collection_id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	def := row{res.Records[0]}.relationship()
	return &model.Collection{
		ID:          id,
		Name:        def.Name,
		Description: def.Attributes.String(model.RelAttrDescription),
	}, nil
}

func (g *GraphStore) FindCollectionMembers(ctx context.Context, id int64) ([]model.Entity, error) {
	return g.queryItems(ctx, driver.CollectionMembersQuery, map[string]any{"collection_id": id})
}

func (g *GraphStore) CreateConfiguration(ctx context.Context, c model.ModelConfiguration) (model.ModelConfiguration, error) {
	params, err := json.Marshal(c.Params)
	if err != nil {
		return model.ModelConfiguration{}, fmt.Errorf("encode params: %w", err)
	}
	res, err := g.driver.ExecuteQuery(ctx, driver.CreateModelConfigurationQuery, map[string]any{
		"sequence":       driver.SeqModelConfiguration,
		"model_id":       c.Model.ID,
		"model_name":     c.Model.Name,
		"model_provider": c.Model.Provider,
		"model_api_url":  c.Model.APIURL,
		"params":         string(params),
		"comment":        c.Comment,
		"created_at":     g.timestamp(),
	})
	if err != nil {
		return model.ModelConfiguration{}, fmt.Errorf("create model configuration: %w", err)
	}
	if len(res.Records) == 0 {
		return model.ModelConfiguration{}, fmt.Errorf("create model configuration: no row returned")
	}
	return row{res.Records[0]}.configuration(), nil
}

func (g *GraphStore) FindConfiguration(ctx context.Context, id int64) (*model.ModelConfiguration, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.GetModelConfigurationQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	c := row{res.Records[0]}.configuration()
	return &c, nil
}

func (g *GraphStore) ListConfigurations(ctx context.Context) ([]model.ModelConfiguration, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.ListModelConfigurationsQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.ModelConfiguration, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, row{rec}.configuration())
	}
	return out, nil
}

func (g *GraphStore) SaveSummary(ctx context.Context, s model.SummaryRecord) (model.SummaryRecord, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.CreateSummaryQuery, map[string]any{
		"sequence":               driver.SeqSummary,
		"entity_id":              s.EntityID,
		"entity_type":            s.EntityType,
		"name":                   s.Name,
		"content":                s.Content,
		"batch_id":               s.BatchID,
		"model_configuration_id": s.ModelConfigurationID,
		"created_at":             g.timestamp(),
	})
	if err != nil {
		return model.SummaryRecord{}, fmt.Errorf("save summary: %w", err)
	}
	if len(res.Records) == 0 {
		return model.SummaryRecord{}, fmt.Errorf("save summary: no row returned")
	}
	return row{res.Records[0]}.summary(), nil
}

func (g *GraphStore) ListSummaries(ctx context.Context, f SummaryFilter) ([]model.SummaryRecord, error) {
	params := map[string]any{"batch_id": nil, "entity_id": nil, "entity_type": nil}
	if f.BatchID != nil {
		params["batch_id"] = *f.BatchID
	}
	if f.EntityID != nil {
		params["entity_id"] = *f.EntityID
	}
	if f.EntityType != "" {
		params["entity_type"] = f.EntityType
	}

	res, err := g.driver.ExecuteQuery(ctx, driver.ListSummariesQuery, params)
	if err != nil {
		return nil, err
	}
	out := make([]model.SummaryRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, row{rec}.summary())
	}
	return out, nil
}

func (g *GraphStore) SaveRelationship(ctx context.Context, r model.RelationshipRecord) (model.RelationshipRecord, error) {
	attrs, err := encodeAttributes(r.Attributes)
	if err != nil {
		return model.RelationshipRecord{}, err
	}
	res, err := g.driver.ExecuteQuery(ctx, driver.CreateRelationshipQuery, map[string]any{
		"sequence":          driver.SeqRelationship,
		"relationship_type": r.RelationshipType,
		"source_type":       r.SourceType,
		"source_id":         r.SourceID,
		"target_type":       r.TargetType,
		"target_id":         r.TargetID,
		"name":              r.Name,
		"attributes":        attrs,
		"created_at":        g.timestamp(),
	})
	if err != nil {
		return model.RelationshipRecord{}, fmt.Errorf("save relationship: %w", err)
	}
	if len(res.Records) == 0 {
		return model.RelationshipRecord{}, fmt.Errorf("save relationship: no row returned")
	}
	return row{res.Records[0]}.relationship(), nil
}

func (g *GraphStore) queryRelationships(ctx context.Context, query string, params map[string]any) ([]model.RelationshipRecord, error) {
	res, err := g.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]model.RelationshipRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, row{rec}.relationship())
	}
	return out, nil
}

func (g *GraphStore) ListRelationshipsForItem(ctx context.Context, id int64) ([]model.RelationshipRecord, error) {
	return g.queryRelationships(ctx, driver.ListRelationshipsForItemQuery, map[string]any{"id": id})
}

func (g *GraphStore) ListRelationshipsAmong(ctx context.Context, ids []int64) ([]model.RelationshipRecord, error) {
	return g.queryRelationships(ctx, driver.ListRelationshipsAmongItemsQuery, map[string]any{"ids": ids})
}

func (g *GraphStore) SaveModelCall(ctx context.Context, call model.ModelCall) (model.ModelCall, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.CreateModelCallQuery, map[string]any{
		"sequence":               driver.SeqModelCall,
		"correlation_id":         call.CorrelationID,
		"model_configuration_id": call.ModelConfigurationID,
		"provider":               call.Provider,
		"model":                  call.Model,
		"batch_id":               call.BatchID,
		"request_context":        call.RequestContext,
		"system_prompt":          call.SystemPrompt,
		"user_prompt":            call.UserPrompt,
		"response":               call.Response,
		"prompt_tokens":          call.PromptTokens,
		"completion_tokens":      call.CompletionTokens,
		"duration_millis":        call.DurationMillis,
		"success":                call.Success,
		"error":                  call.Error,
		"created_at":             call.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return model.ModelCall{}, fmt.Errorf("save model call: %w", err)
	}
	if len(res.Records) == 0 {
		return model.ModelCall{}, fmt.Errorf("save model call: no row returned")
	}
	return row{res.Records[0]}.modelCall(), nil
}

func (g *GraphStore) ListModelCalls(ctx context.Context, batchID *int64) ([]model.ModelCall, error) {
	params := map[string]any{"batch_id": nil}
	if batchID != nil {
		params["batch_id"] = *batchID
	}
	res, err := g.driver.ExecuteQuery(ctx, driver.ListModelCallsQuery, params)
	if err != nil {
		return nil, err
	}
	out := make([]model.ModelCall, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, row{rec}.modelCall())
	}
	return out, nil
}

var _ Store = (*GraphStore)(nil)

// row decodes loosely typed bolt values. Missing or null columns decode to
// zero values.
type row struct {
	rec *neo4j.Record
}

func (r row) value(key string) any {
	v, _ := r.rec.Get(key)
	return v
}

func (r row) int64(key string) int64 {
	switch t := r.value(key).(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func (r row) str(key string) string {
	s, _ := r.value(key).(string)
	return s
}

func (r row) boolean(key string) bool {
	b, _ := r.value(key).(bool)
	return b
}

func (r row) time(key string) time.Time {
	switch t := r.value(key).(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (r row) attributes(key string) model.Attributes {
	switch t := r.value(key).(type) {
	case string:
		var attrs model.Attributes
		if err := json.Unmarshal([]byte(t), &attrs); err == nil && len(attrs) > 0 {
			return attrs
		}
	case map[string]any:
		if len(t) > 0 {
			return model.Attributes(t)
		}
	}
	return nil
}

func (r row) entity() model.Entity {
	return model.Entity{
		ID:          r.int64("id"),
		Type:        r.str("type"),
		Name:        r.str("name"),
		Description: r.str("description"),
		Attributes:  r.attributes("attributes"),
		CreatedAt:   r.time("created_at"),
		UpdatedAt:   r.time("updated_at"),
	}
}

func (r row) relationship() model.RelationshipRecord {
	return model.RelationshipRecord{
		ID:               r.int64("id"),
		RelationshipType: r.str("relationship_type"),
		SourceType:       r.str("source_type"),
		SourceID:         r.int64("source_id"),
		TargetType:       r.str("target_type"),
		TargetID:         r.int64("target_id"),
		Name:             r.str("name"),
		Attributes:       r.attributes("attributes"),
		CreatedAt:        r.time("created_at"),
		UpdatedAt:        r.time("updated_at"),
	}
}

func (r row) summary() model.SummaryRecord {
	return model.SummaryRecord{
		ID:                   r.int64("id"),
		EntityID:             r.int64("entity_id"),
		EntityType:           r.str("entity_type"),
		Name:                 r.str("name"),
		Content:              r.str("content"),
		BatchID:              r.int64("batch_id"),
		ModelConfigurationID: r.int64("model_configuration_id"),
		CreatedAt:            r.time("created_at"),
		UpdatedAt:            r.time("updated_at"),
	}
}

func (r row) configuration() model.ModelConfiguration {
	c := model.ModelConfiguration{
		ID: r.int64("id"),
		Model: model.Model{
			ID:       r.int64("model_id"),
			Name:     r.str("model_name"),
			Provider: r.str("model_provider"),
			APIURL:   r.str("model_api_url"),
		},
		Comment:   r.str("comment"),
		CreatedAt: r.time("created_at"),
	}
	if raw := r.str("params"); raw != "" {
		// Unknown keys in stored params are ignored.
		_ = json.Unmarshal([]byte(raw), &c.Params)
	}
	return c
}

func (r row) modelCall() model.ModelCall {
	return model.ModelCall{
		ID:                   r.int64("id"),
		CorrelationID:        r.str("correlation_id"),
		ModelConfigurationID: r.int64("model_configuration_id"),
		Provider:             r.str("provider"),
		Model:                r.str("model"),
		BatchID:              r.int64("batch_id"),
		RequestContext:       r.str("request_context"),
		SystemPrompt:         r.str("system_prompt"),
		UserPrompt:           r.str("user_prompt"),
		Response:             r.str("response"),
		PromptTokens:         int(r.int64("prompt_tokens")),
		CompletionTokens:     int(r.int64("completion_tokens")),
		DurationMillis:       r.int64("duration_millis"),
		Success:              r.boolean("success"),
		Error:                r.str("error"),
		CreatedAt:            r.time("created_at"),
	}
}
