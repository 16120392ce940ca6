package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// goExtractor collects symbols and relations from Go source.
type goExtractor struct{}

func (e *goExtractor) Extract(root *sitter.Node, source []byte, filePath string) ([]Symbol, []Relation) {
	var symbols []Symbol
	var relations []Relation
	e.walk(root, source, filePath, "", &symbols, &relations)
	return symbols, relations
}

// walk recurses through the tree carrying the name of the enclosing function
// or method so call edges have a source symbol.
func (e *goExtractor) walk(node *sitter.Node, source []byte, filePath, owner string, symbols *[]Symbol, relations *[]Relation) {
	switch node.Kind() {
	case "function_declaration":
		if name := fieldText(node, "name", source); name != "" {
			start, end := lineSpan(node)
			*symbols = append(*symbols, Symbol{
				Name:      name,
				Type:      "function",
				Exported:  isGoExported(name),
				LineStart: start,
				LineEnd:   end,
			})
			owner = name
		}

	case "method_declaration":
		name := fieldText(node, "name", source)
		if name != "" {
			recv := e.receiverType(node, source)
			start, end := lineSpan(node)
			*symbols = append(*symbols, Symbol{
				Name:      name,
				Type:      "method",
				Parent:    recv,
				Exported:  isGoExported(name),
				LineStart: start,
				LineEnd:   end,
			})
			if recv != "" {
				*relations = append(*relations, Relation{Source: recv, Target: name, Type: "contains"})
			}
			owner = name
		}

	case "type_spec":
		if sym := e.typeSpec(node, source); sym != nil {
			*symbols = append(*symbols, *sym)
		}

	case "import_spec":
		if path := e.importPath(node, source); path != "" {
			*relations = append(*relations, Relation{Source: filePath, Target: path, Type: "imports"})
		}

	case "call_expression":
		if owner != "" {
			if callee := calleeText(node, source, "identifier", "selector_expression"); callee != "" {
				*relations = append(*relations, Relation{Source: owner, Target: callee, Type: "calls"})
			}
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			e.walk(child, source, filePath, owner, symbols, relations)
		}
	}
}

func (e *goExtractor) typeSpec(node *sitter.Node, source []byte) *Symbol {
	name := fieldText(node, "name", source)
	if name == "" {
		return nil
	}
	symbolType := "struct"
	if typeNode := node.ChildByFieldName("type"); typeNode != nil && typeNode.Kind() == "interface_type" {
		symbolType = "interface"
	}
	start, end := lineSpan(node)
	return &Symbol{
		Name:      name,
		Type:      symbolType,
		Exported:  isGoExported(name),
		LineStart: start,
		LineEnd:   end,
	}
}

// receiverType returns the bare receiver type name, without pointer or type
// parameter decoration.
func (e *goExtractor) receiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := uint(0); i < recv.ChildCount(); i++ {
		child := recv.Child(i)
		if child == nil || child.Kind() != "parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		name := typeNode.Utf8Text(source)
		name = strings.TrimPrefix(name, "*")
		if idx := strings.IndexByte(name, '['); idx > 0 {
			name = name[:idx]
		}
		return name
	}
	return ""
}

func (e *goExtractor) importPath(node *sitter.Node, source []byte) string {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			if child := node.Child(i); child != nil && child.Kind() == "interpreted_string_literal" {
				pathNode = child
				break
			}
		}
	}
	if pathNode == nil {
		return ""
	}
	return strings.Trim(pathNode.Utf8Text(source), "\"")
}

// isGoExported reports whether the first rune of name is uppercase.
func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// fieldText returns the UTF-8 text of a named field child, or "".
func fieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Utf8Text(source)
}

// calleeText returns the callee text of a call node when the function child
// has one of the allowed kinds.
func calleeText(node *sitter.Node, source []byte, kinds ...string) string {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	for _, k := range kinds {
		if fn.Kind() == k {
			return fn.Utf8Text(source)
		}
	}
	return ""
}
