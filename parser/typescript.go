package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// typescriptExtractor collects symbols and relations from TypeScript source.
type typescriptExtractor struct{}

func (e *typescriptExtractor) Extract(root *sitter.Node, source []byte, filePath string) ([]Symbol, []Relation) {
	var symbols []Symbol
	var relations []Relation
	e.walk(root, source, filePath, "", "", &symbols, &relations)
	return symbols, relations
}

func (e *typescriptExtractor) walk(node *sitter.Node, source []byte, filePath, class, fn string, symbols *[]Symbol, relations *[]Relation) {
	switch node.Kind() {
	case "class_declaration":
		if name := fieldText(node, "name", source); name != "" {
			start, end := lineSpan(node)
			*symbols = append(*symbols, Symbol{
				Name:      name,
				Type:      "class",
				Exported:  isTSExported(node),
				LineStart: start,
				LineEnd:   end,
			})
			for _, parent := range e.heritage(node, source) {
				*relations = append(*relations, Relation{Source: name, Target: parent.name, Type: parent.relation})
			}
			class, fn = name, ""
		}

	case "interface_declaration":
		if sym := e.namedSymbol(node, source, "interface"); sym != nil {
			*symbols = append(*symbols, *sym)
		}

	case "type_alias_declaration":
		if sym := e.namedSymbol(node, source, "struct"); sym != nil {
			*symbols = append(*symbols, *sym)
		}

	case "enum_declaration":
		if sym := e.namedSymbol(node, source, "enum"); sym != nil {
			*symbols = append(*symbols, *sym)
		}

	case "function_declaration":
		if name := fieldText(node, "name", source); name != "" {
			start, end := lineSpan(node)
			*symbols = append(*symbols, Symbol{
				Name:      name,
				Type:      "function",
				Exported:  isTSExported(node),
				LineStart: start,
				LineEnd:   end,
			})
			fn = name
		}

	case "method_definition":
		if name := fieldText(node, "name", source); name != "" && class != "" {
			start, end := lineSpan(node)
			*symbols = append(*symbols, Symbol{
				Name:      name,
				Type:      "method",
				Parent:    class,
				Exported:  !strings.HasPrefix(name, "#"),
				LineStart: start,
				LineEnd:   end,
			})
			*relations = append(*relations, Relation{Source: class, Target: name, Type: "contains"})
			fn = name
		}

	case "lexical_declaration":
		arrows := e.arrowFunctions(node, source)
		*symbols = append(*symbols, arrows...)

	case "import_statement":
		if path := e.importSource(node, source); path != "" {
			*relations = append(*relations, Relation{Source: filePath, Target: path, Type: "imports"})
		}

	case "call_expression":
		owner := fn
		if owner == "" {
			owner = class
		}
		if owner != "" {
			if callee := calleeText(node, source, "identifier", "member_expression"); callee != "" {
				*relations = append(*relations, Relation{Source: owner, Target: callee, Type: "calls"})
			}
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			e.walk(child, source, filePath, class, fn, symbols, relations)
		}
	}
}

func (e *typescriptExtractor) namedSymbol(node *sitter.Node, source []byte, symbolType string) *Symbol {
	name := fieldText(node, "name", source)
	if name == "" {
		return nil
	}
	start, end := lineSpan(node)
	return &Symbol{
		Name:      name,
		Type:      symbolType,
		Exported:  isTSExported(node),
		LineStart: start,
		LineEnd:   end,
	}
}

type tsHeritage struct {
	name     string
	relation string
}

// heritage returns extends and implements clauses from a class declaration.
func (e *typescriptExtractor) heritage(node *sitter.Node, source []byte) []tsHeritage {
	var out []tsHeritage
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			clause := child.Child(j)
			if clause == nil {
				continue
			}
			var relation string
			switch clause.Kind() {
			case "extends_clause":
				relation = "inherits_from"
			case "implements_clause":
				relation = "implements"
			default:
				continue
			}
			for k := uint(0); k < clause.ChildCount(); k++ {
				name := clause.Child(k)
				if name == nil {
					continue
				}
				if name.Kind() == "identifier" || name.Kind() == "type_identifier" {
					out = append(out, tsHeritage{name: name.Utf8Text(source), relation: relation})
				}
			}
		}
	}
	return out
}

// arrowFunctions finds "const foo = () => {}" style declarations.
func (e *typescriptExtractor) arrowFunctions(node *sitter.Node, source []byte) []Symbol {
	var out []Symbol
	exported := isTSExported(node)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		value := child.ChildByFieldName("value")
		if value == nil || value.Kind() != "arrow_function" {
			continue
		}
		name := fieldText(child, "name", source)
		if name == "" {
			continue
		}
		start, end := lineSpan(child)
		out = append(out, Symbol{
			Name:      name,
			Type:      "function",
			Exported:  exported,
			LineStart: start,
			LineEnd:   end,
		})
	}
	return out
}

func (e *typescriptExtractor) importSource(node *sitter.Node, source []byte) string {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			if child := node.Child(i); child != nil && child.Kind() == "string" {
				sourceNode = child
				break
			}
		}
	}
	if sourceNode == nil {
		return ""
	}
	return strings.Trim(sourceNode.Utf8Text(source), "\"'`")
}

// isTSExported reports whether the node sits directly under an export
// statement.
func isTSExported(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}
