package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// pythonExtractor collects symbols and relations from Python source.
type pythonExtractor struct{}

func (e *pythonExtractor) Extract(root *sitter.Node, source []byte, filePath string) ([]Symbol, []Relation) {
	var symbols []Symbol
	var relations []Relation
	e.walk(root, source, filePath, "", "", &symbols, &relations)
	return symbols, relations
}

// walk carries the enclosing class and function names. Functions directly
// inside a class body become methods; call edges attach to the innermost
// named scope.
func (e *pythonExtractor) walk(node *sitter.Node, source []byte, filePath, class, fn string, symbols *[]Symbol, relations *[]Relation) {
	switch node.Kind() {
	case "class_definition":
		if name := fieldText(node, "name", source); name != "" {
			start, end := lineSpan(node)
			*symbols = append(*symbols, Symbol{
				Name:      name,
				Type:      "class",
				Parent:    class,
				Exported:  isPythonExported(name),
				LineStart: start,
				LineEnd:   end,
			})
			for _, base := range e.baseClasses(node, source) {
				*relations = append(*relations, Relation{Source: name, Target: base, Type: "inherits_from"})
			}
			class, fn = name, ""
		}

	case "function_definition":
		if name := fieldText(node, "name", source); name != "" {
			start, end := lineSpan(node)
			if class != "" && fn == "" {
				*symbols = append(*symbols, Symbol{
					Name:      name,
					Type:      "method",
					Parent:    class,
					Exported:  isPythonExported(name),
					LineStart: start,
					LineEnd:   end,
				})
				*relations = append(*relations, Relation{Source: class, Target: name, Type: "contains"})
			} else {
				*symbols = append(*symbols, Symbol{
					Name:      name,
					Type:      "function",
					Exported:  isPythonExported(name),
					LineStart: start,
					LineEnd:   end,
				})
			}
			fn = name
		}

	case "import_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			if child.Kind() == "dotted_name" || child.Kind() == "aliased_import" {
				target := child.Utf8Text(source)
				if child.Kind() == "aliased_import" {
					if nameNode := child.ChildByFieldName("name"); nameNode != nil {
						target = nameNode.Utf8Text(source)
					}
				}
				if target != "" {
					*relations = append(*relations, Relation{Source: filePath, Target: target, Type: "imports"})
				}
			}
		}

	case "import_from_statement":
		if module := e.fromModule(node, source); module != "" {
			*relations = append(*relations, Relation{Source: filePath, Target: module, Type: "imports"})
		}

	case "call":
		owner := fn
		if owner == "" {
			owner = class
		}
		if owner != "" {
			if callee := calleeText(node, source, "identifier", "attribute"); callee != "" {
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

// baseClasses returns the superclass names from a class definition's argument
// list, skipping keyword arguments such as metaclass=.
func (e *pythonExtractor) baseClasses(node *sitter.Node, source []byte) []string {
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var bases []string
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "identifier" || child.Kind() == "attribute" {
			bases = append(bases, child.Utf8Text(source))
		}
	}
	return bases
}

func (e *pythonExtractor) fromModule(node *sitter.Node, source []byte) string {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			if child := node.Child(i); child != nil && child.Kind() == "dotted_name" {
				moduleNode = child
				break
			}
		}
	}
	if moduleNode == nil {
		return ""
	}
	return moduleNode.Utf8Text(source)
}

// isPythonExported reports whether the name lacks a leading underscore.
func isPythonExported(name string) bool {
	return !strings.HasPrefix(name, "_")
}
