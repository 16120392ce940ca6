package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tracewire/inventorygraph/graph"
)

// Tool is the agent-facing shape of a retrieval operation. Call accepts
// either a bare string argument or a JSON object with named parameters.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Toolkit returns the full set of read-only retrieval tools over the wrapper.
func (w *APIWrapper) Toolkit() []Tool {
	return []Tool{
		&searchGraphTool{w},
		&getEntityTool{w},
		&getEntityContentTool{w},
		&impactAnalysisTool{w},
		&relatedEntitiesTool{w},
		&searchFactsTool{w},
		&searchByFileTool{w},
		&advancedSearchTool{w},
		&listByTypeTool{w},
		&listByLayerTool{w},
		&fileInfoTool{w},
		&listFilesTool{w},
		&statsTool{w},
		&citationsTool{w},
	}
}

// toolArgs is the superset of parameters the tools accept as JSON input.
type toolArgs struct {
	Query       string `json:"query"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Layer       string `json:"layer"`
	FilePattern string `json:"file_pattern"`
	Path        string `json:"path"`
	Relation    string `json:"relation"`
	Direction   string `json:"direction"`
	MaxDepth    int    `json:"max_depth"`
	TopK        int    `json:"top_k"`
	Limit       int    `json:"limit"`
}

// parseArgs decodes a JSON argument object. When the input is not JSON the
// whole string is placed in every positional field and structured is false,
// so each tool reads only its primary argument.
func parseArgs(input string) (args toolArgs, structured bool) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "{") {
		if err := json.Unmarshal([]byte(input), &args); err == nil {
			return args, true
		}
	}
	args.Query = input
	args.Name = input
	args.Path = input
	args.Type = input
	args.Layer = input
	args.FilePattern = input
	return args, false
}

type searchGraphTool struct{ w *APIWrapper }

func (t *searchGraphTool) Name() string { return "search_graph" }

func (t *searchGraphTool) Description() string {
	return `Search the knowledge graph for entities by name, description or file path. Input: a query string, or JSON {"query": "...", "top_k": 10, "type": "...", "layer": "...", "file_pattern": "..."}.`
}

func (t *searchGraphTool) Call(_ context.Context, input string) (string, error) {
	args, structured := parseArgs(input)
	if !structured {
		return t.w.SearchGraph(args.Query, args.TopK, "", "", ""), nil
	}
	return t.w.SearchGraph(args.Query, args.TopK, args.Type, args.Layer, args.FilePattern), nil
}

type getEntityTool struct{ w *APIWrapper }

func (t *getEntityTool) Name() string { return "get_entity" }

func (t *getEntityTool) Description() string {
	return `Get the full record of a named entity: type, layer, properties, citations and relation count. Input: the entity name, or JSON {"name": "..."}.`
}

func (t *getEntityTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.GetEntity(args.Name), nil
}

type getEntityContentTool struct{ w *APIWrapper }

func (t *getEntityContentTool) Name() string { return "get_entity_content" }

func (t *getEntityContentTool) Description() string {
	return `Read the source text behind an entity's primary citation. Input: the entity name, or JSON {"name": "..."}.`
}

func (t *getEntityContentTool) Call(ctx context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.GetEntityContent(ctx, args.Name)
}

type impactAnalysisTool struct{ w *APIWrapper }

func (t *impactAnalysisTool) Name() string { return "impact_analysis" }

func (t *impactAnalysisTool) Description() string {
	return `Trace what an entity affects (downstream) or what affects it (upstream). Input: the entity name, or JSON {"name": "...", "direction": "downstream|upstream", "max_depth": 3}.`
}

func (t *impactAnalysisTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.ImpactAnalysis(args.Name, args.Direction, args.MaxDepth), nil
}

type relatedEntitiesTool struct{ w *APIWrapper }

func (t *relatedEntitiesTool) Name() string { return "related_entities" }

func (t *relatedEntitiesTool) Description() string {
	return `List an entity's direct neighbors in the graph. Input: the entity name, or JSON {"name": "...", "relation": "...", "direction": "in|out|both"}.`
}

func (t *relatedEntitiesTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.GetRelatedEntities(args.Name, args.Relation, args.Direction), nil
}

type searchFactsTool struct{ w *APIWrapper }

func (t *searchFactsTool) Name() string { return "search_facts" }

func (t *searchFactsTool) Description() string {
	return `Search extracted facts (decisions, constraints, requirements stated in documents). Input: a query string, or JSON {"query": "...", "top_k": 10}.`
}

func (t *searchFactsTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.SearchFacts(args.Query, args.TopK), nil
}

type searchByFileTool struct{ w *APIWrapper }

func (t *searchByFileTool) Name() string { return "search_by_file" }

func (t *searchByFileTool) Description() string {
	return `List entities grouped by the files that cite them, for files matching a glob-like pattern. Input: the pattern, or JSON {"file_pattern": "..."}.`
}

func (t *searchByFileTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.SearchByFile(args.FilePattern), nil
}

type listByTypeTool struct{ w *APIWrapper }

func (t *listByTypeTool) Name() string { return "list_entities_by_type" }

func (t *listByTypeTool) Description() string {
	return `List entities of one type, such as class, function, concept or requirement. Input: the type name, or JSON {"type": "...", "limit": 50}.`
}

func (t *listByTypeTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.ListEntitiesByType(args.Type, args.Limit), nil
}

type listByLayerTool struct{ w *APIWrapper }

func (t *listByLayerTool) Name() string { return "list_entities_by_layer" }

func (t *listByLayerTool) Description() string {
	return `List entities in one taxonomy layer: code, product, domain, operational or knowledge. Input: the layer name, or JSON {"layer": "...", "limit": 50}.`
}

func (t *listByLayerTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.ListEntitiesByLayer(args.Layer, args.Limit), nil
}

type fileInfoTool struct{ w *APIWrapper }

func (t *fileInfoTool) Name() string { return "get_file_info" }

func (t *fileInfoTool) Description() string {
	return `Summarize one indexed file: every entity cited from it. Input: the file path, or JSON {"path": "..."}.`
}

func (t *fileInfoTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.GetFileInfo(args.Path), nil
}

type listFilesTool struct{ w *APIWrapper }

func (t *listFilesTool) Name() string { return "list_files" }

func (t *listFilesTool) Description() string {
	return "List every file the graph has citations for. Input: ignored."
}

func (t *listFilesTool) Call(_ context.Context, _ string) (string, error) {
	return t.w.ListFiles(), nil
}

type statsTool struct{ w *APIWrapper }

func (t *statsTool) Name() string { return "get_stats" }

func (t *statsTool) Description() string {
	return "Summarize the knowledge graph: entity, relation and file counts broken down by layer and type. Input: ignored."
}

func (t *statsTool) Call(_ context.Context, _ string) (string, error) {
	return t.w.GetStats(), nil
}

type citationsTool struct{ w *APIWrapper }

func (t *citationsTool) Name() string { return "get_citations" }

func (t *citationsTool) Description() string {
	return `List every source location that cites an entity. Input: the entity name, or JSON {"name": "..."}.`
}

func (t *citationsTool) Call(_ context.Context, input string) (string, error) {
	args, _ := parseArgs(input)
	return t.w.GetCitations(args.Name), nil
}

type advancedSearchTool struct{ w *APIWrapper }

func (t *advancedSearchTool) Name() string { return "advanced_search" }

func (t *advancedSearchTool) Description() string {
	return `Search with multi-value filters and structural predicates. Input: JSON {"query": "...", "top_k": 10, "types": [...], "layers": [...], "file_patterns": [...], "require_relations": false, "min_citations": 0}.`
}

func (t *advancedSearchTool) Call(_ context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	var args struct {
		Query            string   `json:"query"`
		TopK             int      `json:"top_k"`
		Types            []string `json:"types"`
		Layers           []string `json:"layers"`
		FilePatterns     []string `json:"file_patterns"`
		RequireRelations bool     `json:"require_relations"`
		MinCitations     int      `json:"min_citations"`
	}
	if strings.HasPrefix(input, "{") {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return "", fmt.Errorf("advanced_search expects a JSON object: %w", err)
		}
	} else {
		args.Query = input
	}
	filter := graph.SearchFilter{
		Types:            args.Types,
		Layers:           args.Layers,
		FilePatterns:     args.FilePatterns,
		RequireRelations: args.RequireRelations,
		MinCitations:     args.MinCitations,
	}
	return t.w.AdvancedSearch(args.Query, args.TopK, filter), nil
}
