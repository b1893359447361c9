package driver

// Sequence names used for ids.
const (
	SeqItem               = "item"
	SeqRelationship       = "relationship"
	SeqSummary            = "summary"
	SeqModelConfiguration = "model_configuration"
	SeqModelCall          = "model_call"
	SeqBatch              = "batch"
	SeqCollection         = "collection"
)

var IndexQueries = []string{
	"CREATE INDEX ON :Item(id);",
	"CREATE INDEX ON :Item(type);",
	"CREATE INDEX ON :Relationship(id);",
	"CREATE INDEX ON :Relationship(target_id);",
	"CREATE INDEX ON :Relationship(source_id);",
	"CREATE INDEX ON :Summary(id);",
	"CREATE INDEX ON :Summary(batch_id);",
	"CREATE INDEX ON :Summary(entity_id);",
	"CREATE INDEX ON :ModelConfiguration(id);",
	"CREATE INDEX ON :ModelCall(batch_id);",
	"CREATE INDEX ON :Sequence(name);",
}

// nextID increments the $sequence counter and binds the new value to id.
// The MERGE takes a write lock on the sequence node, so concurrent writers
// never observe the same value.
const nextID = `
		MERGE (seq:Sequence {name: $sequence})
		ON CREATE SET seq.value = 0
		SET seq.value = seq.value + 1
		WITH seq.value AS id
`

const NextSequenceValueQuery = nextID + `
		RETURN id AS value
`

const itemColumns = `
		RETURN n.id AS id, n.type AS type, n.name AS name, n.description AS description,
			n.attributes AS attributes, n.created_at AS created_at, n.updated_at AS updated_at
`

const (
	CreateItemQuery = nextID + `
		CREATE (n:Item {
			id: id,
			type: $type,
			name: $name,
			description: $description,
			attributes: $attributes,
			created_at: $created_at,
			updated_at: $created_at
		})
` + itemColumns

	GetItemQuery = `
		MATCH (n:Item {id: $id})
` + itemColumns

	ListItemsQuery = `
		MATCH (n:Item)
` + itemColumns + `
		ORDER BY id
	`

	ListItemsByTypesQuery = `
		MATCH (n:Item)
		WHERE n.type IN $types
` + itemColumns + `
		ORDER BY id
	`

	ListItemsByIDsQuery = `
		MATCH (n:Item)
		WHERE n.id IN $ids
` + itemColumns + `
		ORDER BY id
	`

	UpdateItemAttributesQuery = `
		MATCH (n:Item {id: $id})
		SET n.attributes = $attributes,
			n.updated_at = $updated_at
` + itemColumns

	CollectionMembersQuery = `
		MATCH (r:Relationship {relationship_type: 'collection', source_type: 'item', target_type: 'collection', target_id: $collection_id})
		MATCH (n:Item)
		WHERE n.id = r.source_id
		WITH n, min(r.id) AS membership
		ORDER BY membership
` + itemColumns
)

const relationshipColumns = `
		RETURN r.id AS id, r.relationship_type AS relationship_type,
			r.source_type AS source_type, r.source_id AS source_id,
			r.target_type AS target_type, r.target_id AS target_id,
			r.name AS name, r.attributes AS attributes,
			r.created_at AS created_at, r.updated_at AS updated_at
`

const (
	CreateRelationshipQuery = nextID + `
		CREATE (r:Relationship {
			id: id,
			relationship_type: $relationship_type,
			source_type: $source_type,
			source_id: $source_id,
			target_type: $target_type,
			target_id: $target_id,
			name: $name,
			attributes: $attributes,
			created_at: $created_at,
			updated_at: $created_at
		})
` + relationshipColumns

	CollectionDefinitionQuery = `
		MATCH (r:Relationship {relationship_type: 'collection_definition', target_type: 'collection', target_id: $collection_id})
` + relationshipColumns + `
		ORDER BY id
		LIMIT 1
	`

	ListRelationshipsForItemQuery = `
		MATCH (r:Relationship)
		WHERE (r.source_type = 'item' AND r.source_id = $id)
			OR (r.target_type = 'item' AND r.target_id = $id)
` + relationshipColumns + `
		ORDER BY id
	`

	ListRelationshipsAmongItemsQuery = `
		MATCH (r:Relationship {source_type: 'item', target_type: 'item'})
		WHERE r.source_id IN $ids AND r.target_id IN $ids
` + relationshipColumns + `
		ORDER BY id
	`
)

const summaryColumns = `
		RETURN s.id AS id, s.entity_id AS entity_id, s.entity_type AS entity_type,
			s.name AS name, s.content AS content, s.batch_id AS batch_id,
			s.model_configuration_id AS model_configuration_id,
			s.created_at AS created_at, s.updated_at AS updated_at
`

const (
	CreateSummaryQuery = nextID + `
		CREATE (s:Summary {
			id: id,
			entity_id: $entity_id,
			entity_type: $entity_type,
			name: $name,
			content: $content,
			batch_id: $batch_id,
			model_configuration_id: $model_configuration_id,
			created_at: $created_at,
			updated_at: $created_at
		})
` + summaryColumns

	// Null filters match everything.
	ListSummariesQuery = `
		MATCH (s:Summary)
		WHERE ($batch_id IS NULL OR s.batch_id = $batch_id)
			AND ($entity_id IS NULL OR s.entity_id = $entity_id)
			AND ($entity_type IS NULL OR s.entity_type = $entity_type)
` + summaryColumns + `
		ORDER BY id
	`
)

const configurationColumns = `
		RETURN c.id AS id, c.model_id AS model_id, c.model_name AS model_name,
			c.model_provider AS model_provider, c.model_api_url AS model_api_url,
			c.params AS params, c.comment AS comment, c.created_at AS created_at
`

const (
	CreateModelConfigurationQuery = nextID + `
		CREATE (c:ModelConfiguration {
			id: id,
			model_id: $model_id,
			model_name: $model_name,
			model_provider: $model_provider,
			model_api_url: $model_api_url,
			params: $params,
			comment: $comment,
			created_at: $created_at
		})
` + configurationColumns

	GetModelConfigurationQuery = `
		MATCH (c:ModelConfiguration {id: $id})
` + configurationColumns

	ListModelConfigurationsQuery = `
		MATCH (c:ModelConfiguration)
` + configurationColumns + `
		ORDER BY id
	`
)

const modelCallColumns = `
		RETURN m.id AS id, m.correlation_id AS correlation_id,
			m.model_configuration_id AS model_configuration_id,
			m.provider AS provider, m.model AS model, m.batch_id AS batch_id,
			m.request_context AS request_context, m.system_prompt AS system_prompt,
			m.user_prompt AS user_prompt, m.response AS response,
			m.prompt_tokens AS prompt_tokens, m.completion_tokens AS completion_tokens,
			m.duration_millis AS duration_millis, m.success AS success,
			m.error AS error, m.created_at AS created_at
`

const (
	CreateModelCallQuery = nextID + `
		CREATE (m:ModelCall {
			id: id,
			correlation_id: $correlation_id,
			model_configuration_id: $model_configuration_id,
			provider: $provider,
			model: $model,
			batch_id: $batch_id,
			request_context: $request_context,
			system_prompt: $system_prompt,
			user_prompt: $user_prompt,
			response: $response,
			prompt_tokens: $prompt_tokens,
			completion_tokens: $completion_tokens,
			duration_millis: $duration_millis,
			success: $success,
			error: $error,
			created_at: $created_at
		})
` + modelCallColumns

	ListModelCallsQuery = `
		MATCH (m:ModelCall)
		WHERE ($batch_id IS NULL OR m.batch_id = $batch_id)
` + modelCallColumns + `
		ORDER BY id
	`
)
