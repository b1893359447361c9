package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/genai/internal/core/model"
)

func itemEdge(a, b int64) model.RelationshipRecord {
	return model.RelationshipRecord{
		RelationshipType: "similar_themes",
		SourceType:       model.EndpointItem,
		SourceID:         a,
		TargetType:       model.EndpointItem,
		TargetID:         b,
	}
}

func TestLPA_DisconnectedComponents(t *testing.T) {
	// two triangles, no edge between them
	members := []int64{1, 2, 3, 4, 5, 6}
	edges := []model.RelationshipRecord{
		itemEdge(1, 2), itemEdge(2, 3), itemEdge(3, 1),
		itemEdge(4, 5), itemEdge(5, 6), itemEdge(6, 4),
	}

	clusters := NewLabelPropagationDetector().Detect(members, edges)
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}}, clusters)
}

func TestLPA_BridgeNode(t *testing.T) {
	// 3 and 4 each have two strong neighbours and one bridge neighbour
	members := []int64{1, 2, 3, 4, 5, 6}
	edges := []model.RelationshipRecord{
		itemEdge(1, 2), itemEdge(2, 3), itemEdge(3, 1),
		itemEdge(3, 4),
		itemEdge(4, 5), itemEdge(5, 6), itemEdge(6, 4),
	}

	clusters := NewLabelPropagationDetector().Detect(members, edges)
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}}, clusters)
}

func TestLPA_LargeClique(t *testing.T) {
	members := []int64{10, 11, 12, 13, 14}
	var edges []model.RelationshipRecord
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			edges = append(edges, itemEdge(members[i], members[j]))
		}
	}

	clusters := NewLabelPropagationDetector().Detect(members, edges)
	require.Len(t, clusters, 1)
	assert.Equal(t, members, clusters[0])
}

func TestLPA_IgnoresForeignEdges(t *testing.T) {
	members := []int64{1, 2, 3}
	edges := []model.RelationshipRecord{
		itemEdge(1, 99),
		{RelationshipType: model.RelCollection, SourceType: model.EndpointItem, SourceID: 2, TargetType: model.EndpointCollection, TargetID: 3},
		itemEdge(3, 3),
	}

	assert.Empty(t, NewLabelPropagationDetector().Detect(members, edges))
	assert.Nil(t, NewLabelPropagationDetector().Detect(nil, edges))
}
