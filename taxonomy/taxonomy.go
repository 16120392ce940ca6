// Package taxonomy defines the curated entity and relation type tables used
// by the inventory knowledge graph. Types are open strings validated against
// these tables rather than closed enums: new types coming out of LLM
// extraction are tolerated (stored with an empty layer) unless guardrails
// reject them.
package taxonomy

import "strings"

// Layer names group entity types into coarse semantic groupings.
const (
	LayerProduct      = "product"
	LayerDomain       = "domain"
	LayerService      = "service"
	LayerCode         = "code"
	LayerData         = "data"
	LayerTesting      = "testing"
	LayerDelivery     = "delivery"
	LayerOrganization = "organization"
	// LayerKnowledge holds extracted facts.
	LayerKnowledge = "knowledge"
	// LayerStructure holds file and directory nodes.
	LayerStructure = "structure"
)

// entityLayers maps each curated entity type to its semantic layer.
var entityLayers = map[string]string{
	// product
	"feature":      LayerProduct,
	"epic":         LayerProduct,
	"user_story":   LayerProduct,
	"requirement":  LayerProduct,
	"ui_screen":    LayerProduct,
	"ui_component": LayerProduct,

	// domain
	"concept":       LayerDomain,
	"business_rule": LayerDomain,
	"domain_event":  LayerDomain,
	"glossary_term": LayerDomain,
	"actor":         LayerDomain,

	// service
	"service":       LayerService,
	"api_endpoint":  LayerService,
	"api_contract":  LayerService,
	"queue":         LayerService,
	"topic":         LayerService,
	"scheduled_job": LayerService,

	// code
	"module":        LayerCode,
	"package":       LayerCode,
	"class":         LayerCode,
	"interface":     LayerCode,
	"struct":        LayerCode,
	"function":      LayerCode,
	"method":        LayerCode,
	"enum":          LayerCode,
	"constant":      LayerCode,
	"configuration": LayerCode,
	"tool":          LayerCode,
	"parameter":     LayerCode,

	// data
	"database":   LayerData,
	"table":      LayerData,
	"column":     LayerData,
	"data_model": LayerData,
	"schema":     LayerData,
	"dataset":    LayerData,
	"migration":  LayerData,

	// testing
	"test_suite": LayerTesting,
	"test_case":  LayerTesting,
	"test_plan":  LayerTesting,
	"fixture":    LayerTesting,
	"mock":       LayerTesting,

	// delivery
	"pipeline":    LayerDelivery,
	"deployment":  LayerDelivery,
	"environment": LayerDelivery,
	"release":     LayerDelivery,
	"artifact":    LayerDelivery,

	// organization
	"team":       LayerOrganization,
	"person":     LayerOrganization,
	"repository": LayerOrganization,
	"ticket":     LayerOrganization,
	"document":   LayerOrganization,

	// knowledge
	"fact": LayerKnowledge,

	// structure
	"file":      LayerStructure,
	"directory": LayerStructure,
}

// Relation categories.
const (
	CategoryStructural  = "structural"
	CategoryBehavioral  = "behavioral"
	CategoryDataLineage = "data_lineage"
	CategoryProduct     = "ui_product"
	CategoryTesting     = "testing"
	CategoryOwnership   = "ownership"
	CategoryTemporal    = "temporal"
	CategorySemantic    = "semantic"
)

// relationCategories maps each curated relation type to its category.
var relationCategories = map[string]string{
	// structural
	"contains":      CategoryStructural,
	"part_of":       CategoryStructural,
	"imports":       CategoryStructural,
	"depends_on":    CategoryStructural,
	"inherits_from": CategoryStructural,
	"implements":    CategoryStructural,

	// behavioral
	"calls":         CategoryBehavioral,
	"invokes":       CategoryBehavioral,
	"triggers":      CategoryBehavioral,
	"handles":       CategoryBehavioral,
	"publishes":     CategoryBehavioral,
	"subscribes_to": CategoryBehavioral,

	// data lineage
	"reads_from":   CategoryDataLineage,
	"writes_to":    CategoryDataLineage,
	"transforms":   CategoryDataLineage,
	"derived_from": CategoryDataLineage,

	// ui / product
	"renders":                CategoryProduct,
	"navigates_to":           CategoryProduct,
	"displays":               CategoryProduct,
	"implements_requirement": CategoryProduct,

	// testing
	"tests":      CategoryTesting,
	"verifies":   CategoryTesting,
	"covered_by": CategoryTesting,
	"mocks":      CategoryTesting,

	// ownership
	"owned_by":      CategoryOwnership,
	"maintained_by": CategoryOwnership,
	"authored_by":   CategoryOwnership,

	// temporal
	"precedes":      CategoryTemporal,
	"supersedes":    CategoryTemporal,
	"deprecated_by": CategoryTemporal,

	// semantic
	"related_to": CategorySemantic,
	"similar_to": CategorySemantic,
	"references": CategorySemantic,
	"documents":  CategorySemantic,
}

// RelatedTo is the fallback relation type when nothing more specific can be
// inferred.
const RelatedTo = "related_to"

// Normalize lowercases and trims a type or layer string.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EntityTypes returns the curated entity type set.
func EntityTypes() []string {
	types := make([]string, 0, len(entityLayers))
	for t := range entityLayers {
		types = append(types, t)
	}
	return types
}

// RelationTypes returns the curated relation type set.
func RelationTypes() []string {
	types := make([]string, 0, len(relationCategories))
	for t := range relationCategories {
		types = append(types, t)
	}
	return types
}
