package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph() *KnowledgeGraph {
	g := newTestGraph()
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		g.AddEntity(id, id, "function", nil, nil)
	}
	g.AddRelation("A", "B", "calls", nil)
	g.AddRelation("B", "C", "calls", nil)
	g.AddRelation("C", "D", "calls", nil)
	g.AddRelation("D", "E", "calls", nil)
	return g
}

func TestImpactAnalysisDepthBound(t *testing.T) {
	g := chainGraph()

	impact := g.ImpactAnalysis("A", "downstream", 2)
	assert.ElementsMatch(t, []string{"B", "C"}, impact.Impacted)
	assert.Equal(t, []string{"A", "B"}, impact.Paths["B"])
	assert.Equal(t, []string{"A", "B", "C"}, impact.Paths["C"])
	assert.NotContains(t, impact.Paths, "D")
}

func TestImpactAnalysisUpstream(t *testing.T) {
	g := chainGraph()

	impact := g.ImpactAnalysis("E", "upstream", 2)
	assert.ElementsMatch(t, []string{"D", "C"}, impact.Impacted)
	assert.Equal(t, []string{"E", "D", "C"}, impact.Paths["C"])
}

func TestImpactAnalysisFirstVisitPath(t *testing.T) {
	g := newTestGraph()
	for _, id := range []string{"A", "B", "C"} {
		g.AddEntity(id, id, "function", nil, nil)
	}
	// Two routes to C; the direct one is discovered first by BFS.
	g.AddRelation("A", "C", "calls", nil)
	g.AddRelation("A", "B", "calls", nil)
	g.AddRelation("B", "C", "calls", nil)

	impact := g.ImpactAnalysis("A", "downstream", 3)
	assert.Equal(t, []string{"A", "C"}, impact.Paths["C"])
}

func TestImpactAnalysisMissingEntity(t *testing.T) {
	g := newTestGraph()
	impact := g.ImpactAnalysis("ghost", "downstream", 3)
	assert.Empty(t, impact.Impacted)
	assert.Empty(t, impact.Paths)
}

func TestImpactAnalysisCycle(t *testing.T) {
	g := newTestGraph()
	g.AddEntity("A", "A", "function", nil, nil)
	g.AddEntity("B", "B", "function", nil, nil)
	g.AddRelation("A", "B", "calls", nil)
	g.AddRelation("B", "A", "calls", nil)

	impact := g.ImpactAnalysis("A", "downstream", 10)
	require.Len(t, impact.Impacted, 1)
	assert.Equal(t, "B", impact.Impacted[0])
}
