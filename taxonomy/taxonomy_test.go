package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayerLookup(t *testing.T) {
	p := Default()

	assert.Equal(t, LayerCode, p.LayerOf("class"))
	assert.Equal(t, LayerCode, p.LayerOf("  Class "))
	assert.Equal(t, LayerKnowledge, p.LayerOf("fact"))
	assert.Equal(t, LayerStructure, p.LayerOf("file"))
	assert.Equal(t, "", p.LayerOf("alien_type"))
}

func TestTypeValidation(t *testing.T) {
	p := Default()

	assert.True(t, p.IsEntityType("api_endpoint"))
	assert.False(t, p.IsEntityType("spaceship"))
	assert.True(t, p.IsRelationType("depends_on"))
	assert.False(t, p.IsRelationType("teleports_to"))
	assert.Equal(t, CategoryBehavioral, p.CategoryOf("calls"))
}

func TestTypesInLayer(t *testing.T) {
	p := Default()

	testing_ := p.TypesInLayer("testing")
	assert.Contains(t, testing_, "test_case")
	assert.Contains(t, testing_, "fixture")
	assert.Empty(t, p.TypesInLayer("nonexistent"))
}

func TestMergePolicy(t *testing.T) {
	p := Default()

	// Mergeable pair adopts the higher-priority type.
	assert.True(t, p.Mergeable("class", "concept"))
	assert.Equal(t, "class", p.MergedType("concept", "class"))
	assert.Equal(t, "class", p.MergedType("class", "concept"))

	// test_case and function are never merged.
	assert.False(t, p.Mergeable("test_case", "function"))
	assert.False(t, p.Mergeable("function", "test_case"))

	// Context-dependent types never deduplicate, even against themselves.
	assert.False(t, p.CanDeduplicate("tool"))
	assert.False(t, p.Mergeable("tool", "tool"))
	assert.False(t, p.Mergeable("parameter", "parameter"))
}

func TestClassifySource(t *testing.T) {
	p := Default()
	assert.Equal(t, "", p.ClassifySource("src/app/main.py"))

	p.SourceRules = []SourceRule{
		{PathContains: "backend/", Source: "github"},
		{PathContains: "tickets/", Source: "jira"},
	}
	assert.Equal(t, "github", p.ClassifySource("backend/api/server.go"))
	assert.Equal(t, "jira", p.ClassifySource("tickets/PROJ-42.md"))
	assert.Equal(t, "", p.ClassifySource("docs/readme.md"))
}

func TestCuratedTableSizes(t *testing.T) {
	assert.GreaterOrEqual(t, len(EntityTypes()), 45)
	assert.GreaterOrEqual(t, len(RelationTypes()), 30)
}
