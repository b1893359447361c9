package community

import (
	"sort"

	"github.com/agenthands/genai/internal/core/model"
)

// LabelPropagationDetector implements community detection using the Label
// Propagation Algorithm. Updates are applied in member order and ties go to
// the largest label, so results are deterministic.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
	}
}

func (d *LabelPropagationDetector) Detect(members []int64, edges []model.RelationshipRecord) [][]int64 {
	if len(members) == 0 {
		return nil
	}
	adj := newAdjacency(members, edges)

	// Each member starts with its own label.
	labels := make(map[int64]int64, len(members))
	for _, id := range members {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range members {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			weights := make(map[int64]int)
			best, bestWeight := int64(0), 0
			for v, w := range neighbors {
				weights[labels[v]] += w
			}
			for label, w := range weights {
				if w > bestWeight || (w == bestWeight && label > best) {
					best, bestWeight = label, w
				}
			}

			if labels[u] != best {
				labels[u] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	byLabel := make(map[int64][]int64)
	for _, id := range members {
		byLabel[labels[id]] = append(byLabel[labels[id]], id)
	}
	keys := make([]int64, 0, len(byLabel))
	for k := range byLabel {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	clusters := make([][]int64, 0, len(keys))
	for _, k := range keys {
		clusters = append(clusters, byLabel[k])
	}
	return normalize(clusters)
}
