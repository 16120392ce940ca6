package enrich

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/inventorygraph/graph"
	"github.com/tracewire/inventorygraph/log"
)

func newTestGraph() *graph.KnowledgeGraph {
	return graph.New(graph.WithLogger(log.NopLogger{}))
}

func addEntity(g *graph.KnowledgeGraph, name, entityType, file string) string {
	return g.AddEntity(
		graph.EntityID(name, entityType, ""),
		name,
		entityType,
		&graph.Citation{FilePath: file, LineStart: 1, LineEnd: 1},
		nil,
	)
}

func addSourcedEntity(g *graph.KnowledgeGraph, name, entityType, file, toolkit string) string {
	return g.AddEntity(
		graph.EntityID(name, entityType, ""),
		name,
		entityType,
		&graph.Citation{FilePath: file, LineStart: 1, LineEnd: 1, SourceToolkit: toolkit},
		nil,
	)
}

func newEnricher(g *graph.KnowledgeGraph) *Enricher {
	return New(g, WithLogger(log.NopLogger{}))
}

func TestDeduplicateMergesAcrossLayers(t *testing.T) {
	g := newTestGraph()
	classID := addEntity(g, "Toolkit", "class", "src/toolkit.py")
	conceptID := addEntity(g, "toolkit", "concept", "docs/design.md")

	e := newEnricher(g)
	merged := e.DeduplicateEntities(DefaultDedupOptions())
	assert.Equal(t, 1, merged)

	// The class survives and owns both citations.
	survivor := g.GetEntity(classID)
	require.NotNil(t, survivor)
	assert.Equal(t, "class", survivor.Type)
	assert.Len(t, survivor.Citations, 2)
	assert.Nil(t, g.GetEntity(conceptID))
}

func TestDeduplicateRespectsTypeSafety(t *testing.T) {
	g := newTestGraph()
	addEntity(g, "Get Tests", "tool", "toolkit/a.py")
	addEntity(g, "get tests", "function", "src/tests.py")
	addEntity(g, "process_payment", "test_case", "tests/test_pay.py")
	addEntity(g, "process_payment", "function", "src/pay.py")

	e := newEnricher(g)
	merged := e.DeduplicateEntities(DefaultDedupOptions())
	assert.Zero(t, merged)
	assert.Equal(t, 4, g.Stats().NodeCount)
}

func TestDeduplicateFuzzy(t *testing.T) {
	g := newTestGraph()
	addEntity(g, "chat-handler", "class", "a.py")
	addEntity(g, "ChatHandlers", "concept", "b.md")

	e := newEnricher(g)
	assert.Zero(t, e.DeduplicateEntities(DefaultDedupOptions()))
	assert.Equal(t, 1, e.DeduplicateEntities(DedupOptions{RequireExactMatch: false}))
	assert.Equal(t, 1, g.Stats().NodeCount)
}

func TestCrossSourceLinks(t *testing.T) {
	g := newTestGraph()
	classID := addSourcedEntity(g, "PaymentService", "class", "src/pay.py", "github")
	conceptID := addSourcedEntity(g, "PaymentService", "concept", "docs/design.md", "confluence")

	e := newEnricher(g)
	queued := e.CrossSourceLinks()
	assert.Equal(t, 1, queued)

	// Nothing lands in the graph before Save.
	assert.Empty(t, g.Relations(classID, graph.DirectionOut))

	require.NoError(t, e.Save(""))

	rels := g.Relations(classID, graph.DirectionOut)
	require.Len(t, rels, 1)
	assert.Equal(t, conceptID, rels[0].TargetID)
	assert.Equal(t, "implements", rels[0].Type)
	assert.Equal(t, EnricherToolkit, rels[0].SourceToolkit)
}

func TestCrossSourceLinksDefaultRelation(t *testing.T) {
	g := newTestGraph()
	enumID := addSourcedEntity(g, "OrderState", "enum", "src/order.py", "github")
	addSourcedEntity(g, "OrderState", "glossary_term", "docs/glossary.md", "confluence")

	e := newEnricher(g)
	assert.Equal(t, 1, e.CrossSourceLinks())
	require.NoError(t, e.Save(""))

	rels := g.Relations(enumID, graph.DirectionOut)
	require.Len(t, rels, 1)
	assert.Equal(t, "related_to", rels[0].Type)
}

func TestCrossSourceLinksRequireDistinctSources(t *testing.T) {
	g := newTestGraph()
	// Same name across layers, but everything was observed by one toolkit.
	addSourcedEntity(g, "PaymentService", "class", "src/pay.py", "github")
	addSourcedEntity(g, "PaymentService", "concept", "docs/design.md", "github")

	e := newEnricher(g)
	assert.Zero(t, e.CrossSourceLinks())
	assert.Empty(t, e.NewLinks())
}

func TestSemanticLinksContainment(t *testing.T) {
	g := newTestGraph()
	specificID := addEntity(g, "ChatMessageHandler", "class", "src/chat.py")
	generalID := addEntity(g, "Chat", "concept", "docs/chat.md")

	e := newEnricher(g)
	queued := e.SemanticLinks(0, 0)
	assert.GreaterOrEqual(t, queued, 1)
	require.NoError(t, e.Save(""))

	found := false
	for _, rel := range g.Relations(specificID, graph.DirectionOut) {
		if rel.TargetID == generalID && rel.Type == "part_of" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSemanticLinksBudget(t *testing.T) {
	g := newTestGraph()
	addEntity(g, "ChatHandler", "class", "a.py")
	addEntity(g, "Chat Handler", "class", "b.py")
	addEntity(g, "chat_handler", "class", "c.py")
	addEntity(g, "Chat-Handler", "class", "d.py")

	e := newEnricher(g)
	queued := e.SemanticLinks(0, 1)
	assert.GreaterOrEqual(t, queued, 1)

	perSource := map[string]int{}
	for _, link := range e.NewLinks() {
		perSource[link.SourceID]++
	}
	for _, n := range perSource {
		assert.LessOrEqual(t, n, 1)
	}
}

func TestSemanticLinksMinOverlap(t *testing.T) {
	g := newTestGraph()
	specificID := addEntity(g, "ChatMessageHandler", "class", "src/chat.py")
	addEntity(g, "Chat", "concept", "docs/chat.md")

	// The pair shares a single token, below the required overlap.
	e := newEnricher(g)
	assert.Zero(t, e.SemanticLinks(2, 0))
	assert.Empty(t, e.NewLinks())

	assert.GreaterOrEqual(t, e.SemanticLinks(1, 0), 1)
	found := false
	for _, link := range e.NewLinks() {
		if link.SourceID == specificID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestOrphanLinks(t *testing.T) {
	g := newTestGraph()
	aID := addEntity(g, "ChatHandler", "class", "src/chat.py")
	bID := addEntity(g, "MessageStore", "class", "src/store.py")
	g.AddRelation(aID, bID, "calls", nil)

	// Same file as ChatHandler, no relations.
	orphanID := addEntity(g, "ChatValidator", "function", "src/chat.py")

	e := newEnricher(g)
	queued := e.OrphanLinks(0)
	assert.Equal(t, 1, queued)
	require.NoError(t, e.Save(""))

	rels := g.Relations(orphanID, graph.DirectionOut)
	require.Len(t, rels, 1)
	assert.Equal(t, "related_to", rels[0].Type)
	assert.Equal(t, aID, rels[0].TargetID)
}

func TestSimilarityLinksOptIn(t *testing.T) {
	g := newTestGraph()
	aID := addEntity(g, "ChatMessageHandler", "class", "a.py")
	bID := addEntity(g, "MessageChatHandler", "class", "b.py")
	addEntity(g, "Unrelated", "class", "c.py")

	e := newEnricher(g)
	queued := e.SimilarityLinks(0)
	assert.Equal(t, 1, queued)
	require.NoError(t, e.Save(""))

	rels := g.Relations(aID, graph.DirectionOut)
	require.Len(t, rels, 1)
	assert.Equal(t, "similar_to", rels[0].Type)
	assert.Equal(t, bID, rels[0].TargetID)
}

func TestSaveRecordsStatsAndPersists(t *testing.T) {
	g := newTestGraph()
	addEntity(g, "PaymentService", "class", "src/pay.py")
	addEntity(g, "PaymentService", "concept", "docs/design.md")

	path := filepath.Join(t.TempDir(), "graph.json")
	e := newEnricher(g)
	e.EnrichAll(DefaultDedupOptions())
	require.NoError(t, e.Save(path))

	stats, ok := g.Metadata()["enrichment_stats"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 1, stats["entities_merged"])

	// Pending links are consumed by Save.
	assert.Empty(t, e.NewLinks())

	loaded := newTestGraph()
	require.NoError(t, loaded.LoadFromJSON(path))
	assert.Equal(t, 1, loaded.Stats().NodeCount)
}
