package language

import (
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

func ParseQuery(source string) (*QueryDocument, error) {
	return ParseQueryFile("", source)
}

// ParseQueryFile parses an executable document. The name is recorded on every
// position so diagnostics can point back at the file.
func ParseQueryFile(name, source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL, including the built-in prelude.
func LoadSchema(name, source string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Validate runs the standard executable-document rules against s.
func Validate(s *Schema, source string) ErrorList {
	_, errs := gqlparser.LoadQuery(s, source)
	return errs
}

// MergeDocuments concatenates the definitions of several documents into one
// compilation unit. Fragment names must be unique across all inputs.
func MergeDocuments(docs ...*QueryDocument) (*QueryDocument, error) {
	out := &QueryDocument{}
	seen := make(map[string]*FragmentDefinition)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		out.Operations = append(out.Operations, doc.Operations...)
		for _, frag := range doc.Fragments {
			if prev, ok := seen[frag.Name]; ok {
				return nil, fmt.Errorf("fragment %q defined twice (%s and %s)", frag.Name, positionString(prev.Position), positionString(frag.Position))
			}
			seen[frag.Name] = frag
			out.Fragments = append(out.Fragments, frag)
		}
	}
	return out, nil
}

func positionString(pos *Position) string {
	if pos == nil {
		return "unknown"
	}
	if pos.Src != nil && pos.Src.Name != "" {
		return fmt.Sprintf("%s:%d:%d", pos.Src.Name, pos.Line, pos.Column)
	}
	return fmt.Sprintf("%d:%d", pos.Line, pos.Column)
}

// LoadQuery parses source and validates it against s.
func LoadQuery(s *Schema, source string) (*QueryDocument, ErrorList) {
	return gqlparser.LoadQuery(s, source)
}

// ValidateDocument runs the standard executable-document rules against an
// already parsed, possibly merged, document.
func ValidateDocument(s *Schema, doc *QueryDocument) ErrorList {
	return validator.Validate(s, doc)
}
