package graph

import (
	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// SelectNextDAGNode implements the DAG executor of spec.md §4.7: among
// the nodes in dag whose dependencies are all already in solved, it
// returns the one with the highest priority, breaking ties by lowest
// complexity (spec.md's exact tie-break order). Returns ok=false once
// every node is solved or none remain executable (a dependency cycle or
// an unsolved blocking dependency).
func SelectNextDAGNode(dag *models.ErrorDAG, solved []string) (models.ErrorDAGNode, bool) {
	if dag == nil {
		return models.ErrorDAGNode{}, false
	}

	solvedSet := make(map[string]bool, len(solved))
	for _, id := range solved {
		solvedSet[id] = true
	}

	var best models.ErrorDAGNode
	found := false

	for _, node := range dag.Nodes {
		if solvedSet[node.ID] {
			continue
		}
		if !dependenciesSolved(node.Dependencies, solvedSet) {
			continue
		}
		if !found {
			best = node
			found = true
			continue
		}
		if node.Priority > best.Priority ||
			(node.Priority == best.Priority && node.Complexity < best.Complexity) {
			best = node
		}
	}

	return best, found
}

func dependenciesSolved(deps []string, solvedSet map[string]bool) bool {
	for _, d := range deps {
		if !solvedSet[d] {
			return false
		}
	}
	return true
}

// DAGProgress reports solvedNodes.length / nodes.length, per spec.md
// §4.5's atomic-decomposition progress metric.
func DAGProgress(dag *models.ErrorDAG, solved []string) float64 {
	if dag == nil || len(dag.Nodes) == 0 {
		return 0
	}
	return float64(len(solved)) / float64(len(dag.Nodes))
}

// IsDAGComplete reports whether every node in dag is in solved.
func IsDAGComplete(dag *models.ErrorDAG, solved []string) bool {
	if dag == nil {
		return true
	}
	solvedSet := make(map[string]bool, len(solved))
	for _, id := range solved {
		solvedSet[id] = true
	}
	for _, node := range dag.Nodes {
		if !solvedSet[node.ID] {
			return false
		}
	}
	return true
}
