// Package community groups collection members into clusters using the
// item-to-item relationships discovered by a scan.
package community

import (
	"fmt"
	"sort"

	"github.com/agenthands/genai/internal/core/model"
)

const (
	AlgorithmLabelPropagation = "label_propagation"
	AlgorithmComponents       = "components"
)

// Detector returns clusters of at least two member ids. Clusters and their
// members are sorted ascending.
type Detector interface {
	Detect(members []int64, edges []model.RelationshipRecord) [][]int64
}

// NewDetector picks a detector by name; "" selects label propagation.
func NewDetector(algorithm string) (Detector, error) {
	switch algorithm {
	case "", AlgorithmLabelPropagation:
		return NewLabelPropagationDetector(), nil
	case AlgorithmComponents:
		return ComponentsDetector{}, nil
	default:
		return nil, fmt.Errorf("unknown grouping algorithm %q", algorithm)
	}
}

// adjacency is an undirected multigraph over members; parallel edges add
// weight. Edges touching non-members or non-item endpoints are ignored.
type adjacency map[int64]map[int64]int

func newAdjacency(members []int64, edges []model.RelationshipRecord) adjacency {
	adj := make(adjacency, len(members))
	for _, id := range members {
		adj[id] = make(map[int64]int)
	}
	for _, e := range edges {
		if e.SourceType != model.EndpointItem || e.TargetType != model.EndpointItem || e.SourceID == e.TargetID {
			continue
		}
		if _, ok := adj[e.SourceID]; !ok {
			continue
		}
		if _, ok := adj[e.TargetID]; !ok {
			continue
		}
		adj[e.SourceID][e.TargetID]++
		adj[e.TargetID][e.SourceID]++
	}
	return adj
}

// ComponentsDetector returns the connected components of the graph.
type ComponentsDetector struct{}

func (ComponentsDetector) Detect(members []int64, edges []model.RelationshipRecord) [][]int64 {
	adj := newAdjacency(members, edges)
	visited := make(map[int64]bool, len(members))

	var clusters [][]int64
	for _, id := range members {
		if visited[id] {
			continue
		}
		var component []int64
		stack := []int64{id}
		visited[id] = true
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, u)
			for v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		clusters = append(clusters, component)
	}
	return normalize(clusters)
}

// normalize drops singletons and sorts members and clusters.
func normalize(clusters [][]int64) [][]int64 {
	out := make([][]int64, 0, len(clusters))
	for _, c := range clusters {
		if len(c) < 2 {
			continue
		}
		sort.Slice(c, func(i, j int) bool { return c[i] < c[j] })
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
