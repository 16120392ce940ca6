package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolByName(t *testing.T, w *APIWrapper, name string) Tool {
	t.Helper()
	for _, tool := range w.Toolkit() {
		if tool.Name() == name {
			return tool
		}
	}
	t.Fatalf("no tool named %q", name)
	return nil
}

func TestToolkitNamesUnique(t *testing.T) {
	w := newWrapper(seedGraph())
	seen := map[string]bool{}
	for _, tool := range w.Toolkit() {
		assert.False(t, seen[tool.Name()], "duplicate tool name %q", tool.Name())
		seen[tool.Name()] = true
		assert.NotEmpty(t, tool.Description())
	}
	assert.Len(t, seen, 14)
}

func TestSearchGraphToolPlainInput(t *testing.T) {
	w := newWrapper(seedGraph())
	tool := toolByName(t, w, "search_graph")

	out, err := tool.Call(context.Background(), "PaymentService")
	require.NoError(t, err)
	assert.Contains(t, out, "PaymentService (class")
}

func TestSearchGraphToolJSONInput(t *testing.T) {
	w := newWrapper(seedGraph())
	tool := toolByName(t, w, "search_graph")

	out, err := tool.Call(context.Background(), `{"query": "payment", "top_k": 1, "type": "class"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 entities")
	assert.Contains(t, out, "PaymentService")
}

func TestImpactToolJSONInput(t *testing.T) {
	w := newWrapper(seedGraph())
	tool := toolByName(t, w, "impact_analysis")

	out, err := tool.Call(context.Background(), `{"name": "PaymentService", "direction": "downstream", "max_depth": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger")
	assert.NotContains(t, out, "Notifier")
}

func TestRelatedEntitiesToolDefaultsToBoth(t *testing.T) {
	w := newWrapper(seedGraph())
	tool := toolByName(t, w, "related_entities")

	out, err := tool.Call(context.Background(), "Ledger")
	require.NoError(t, err)
	assert.Contains(t, out, "PaymentService")
	assert.Contains(t, out, "Notifier")
}

func TestAdvancedSearchTool(t *testing.T) {
	w := newWrapper(seedGraph())
	tool := toolByName(t, w, "advanced_search")

	out, err := tool.Call(context.Background(),
		`{"query": "payment", "layers": ["code"], "require_relations": true}`)
	require.NoError(t, err)
	assert.Contains(t, out, "PaymentService")

	_, err = tool.Call(context.Background(), `{"query": `)
	require.Error(t, err)
}

func TestStatsAndListFilesToolsIgnoreInput(t *testing.T) {
	w := newWrapper(seedGraph())

	out, err := toolByName(t, w, "get_stats").Call(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Contains(t, out, "4 entities")

	out, err = toolByName(t, w, "list_files").Call(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "4 indexed files")
}

func TestGetEntityContentToolUsesContext(t *testing.T) {
	g := seedGraph()
	src := &mapSource{files: map[string]string{"src/pay.go": "package pay\n"}}
	w := newWrapper(g, WithSourceReader(src))
	tool := toolByName(t, w, "get_entity_content")

	out, err := tool.Call(context.Background(), `{"name": "PaymentService"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "package pay")
}
