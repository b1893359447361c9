package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/genai/internal/core/model"
)

func TestComponents(t *testing.T) {
	// 1-2-3 chained, 4 isolated
	members := []int64{3, 1, 2, 4}
	edges := []model.RelationshipRecord{itemEdge(1, 2), itemEdge(2, 3)}

	clusters := ComponentsDetector{}.Detect(members, edges)
	assert.Equal(t, [][]int64{{1, 2, 3}}, clusters)
}

func TestComponents_Multiple(t *testing.T) {
	members := []int64{1, 2, 3, 4}
	edges := []model.RelationshipRecord{itemEdge(3, 4), itemEdge(1, 2)}

	clusters := ComponentsDetector{}.Detect(members, edges)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, clusters)
}

func TestNewDetector(t *testing.T) {
	d, err := NewDetector("")
	require.NoError(t, err)
	assert.IsType(t, &LabelPropagationDetector{}, d)

	d, err = NewDetector(AlgorithmComponents)
	require.NoError(t, err)
	assert.IsType(t, ComponentsDetector{}, d)

	_, err = NewDetector("louvain")
	assert.ErrorContains(t, err, `unknown grouping algorithm "louvain"`)
}
