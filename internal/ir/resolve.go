package ir

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/schema"
)

// selectionSet is a selection set bound to schema definitions.
type selectionSet struct {
	parentType *schema.Type
	selections []selection
}

type selection interface {
	position() *language.Position
}

type fieldSelection struct {
	responseKey  string
	name         string
	arguments    language.ArgumentList
	argumentsKey string
	definition   *schema.Field
	typ          *GraphQLType
	conditions   ConditionSet
	selectionSet *selectionSet
	pos          *language.Position
}

type inlineFragment struct {
	typeCondition *schema.Type
	conditions    ConditionSet
	selectionSet  *selectionSet
	pos           *language.Position
}

type fragmentSpread struct {
	name       string
	conditions ConditionSet
	pos        *language.Position
}

func (s *fieldSelection) position() *language.Position { return s.pos }
func (s *inlineFragment) position() *language.Position { return s.pos }
func (s *fragmentSpread) position() *language.Position { return s.pos }

// resolver binds a gqlparser selection tree to the schema. Dead selections
// (literal false conditions, self-contradicting directives) are dropped with
// a diagnostic.
type resolver struct {
	graph      *typeGraph
	violations []*Violation
}

func (r *resolver) resolveSelectionSet(parent *schema.Type, set language.SelectionSet) (*selectionSet, error) {
	out := &selectionSet{parentType: parent}
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			f, err := r.resolveField(parent, sel)
			if err != nil {
				return nil, err
			}
			if f != nil {
				out.selections = append(out.selections, f)
			}
		case *language.InlineFragment:
			conds, live := r.conditions(sel.Directives, sel.Position)
			if !live {
				continue
			}
			typ := parent
			if sel.TypeCondition != "" {
				typ = r.graph.namedType(sel.TypeCondition)
				if typ == nil {
					return nil, &UnknownTypeError{Location: locationOf(sel.Position), TypeName: sel.TypeCondition}
				}
			}
			nested, err := r.resolveSelectionSet(typ, sel.SelectionSet)
			if err != nil {
				return nil, err
			}
			frag := &inlineFragment{conditions: conds, selectionSet: nested, pos: sel.Position}
			if sel.TypeCondition != "" {
				frag.typeCondition = typ
			}
			out.selections = append(out.selections, frag)
		case *language.FragmentSpread:
			conds, live := r.conditions(sel.Directives, sel.Position)
			if !live {
				continue
			}
			out.selections = append(out.selections, &fragmentSpread{name: sel.Name, conditions: conds, pos: sel.Position})
		}
	}
	return out, nil
}

func (r *resolver) resolveField(parent *schema.Type, f *language.Field) (*fieldSelection, error) {
	conds, live := r.conditions(f.Directives, f.Position)
	if !live {
		return nil, nil
	}
	def := schema.TypenameField
	if f.Name != schema.TypenameField.Name {
		def = r.graph.field(parent, f.Name)
	}
	if def == nil {
		return nil, &UnknownFieldError{Location: locationOf(f.Position), TypeName: parent.Name, FieldName: f.Name}
	}
	typ, err := newGraphQLType(r.graph, def.Type)
	if err != nil {
		var unknown *UnknownTypeError
		if errors.As(err, &unknown) {
			unknown.Location = locationOf(f.Position)
		}
		return nil, err
	}

	responseKey := f.Alias
	if responseKey == "" {
		responseKey = f.Name
	}
	sel := &fieldSelection{
		responseKey:  responseKey,
		name:         f.Name,
		arguments:    f.Arguments,
		argumentsKey: argumentsKey(f.Arguments),
		definition:   def,
		typ:          typ,
		conditions:   conds,
		pos:          f.Position,
	}

	switch {
	case typ.IsEntity() && len(f.SelectionSet) == 0:
		return nil, &SchemaMismatchError{
			Location:    locationOf(f.Position),
			ResponseKey: responseKey,
			Existing:    typ.String(),
			Conflicting: "a leaf selection",
		}
	case !typ.IsEntity() && len(f.SelectionSet) > 0:
		return nil, &SchemaMismatchError{
			Location:    locationOf(f.Position),
			ResponseKey: responseKey,
			Existing:    typ.String(),
			Conflicting: "a selection set",
		}
	case typ.IsEntity():
		nested, err := r.resolveSelectionSet(typ.NamedType(), f.SelectionSet)
		if err != nil {
			return nil, err
		}
		sel.selectionSet = nested
	}
	return sel, nil
}

// conditions converts @include/@skip into a ConditionSet. It reports false
// when the selection can never be part of the response.
func (r *resolver) conditions(directives language.DirectiveList, pos *language.Position) (ConditionSet, bool) {
	var conds []Condition
	for _, d := range directives {
		if d.Name != "include" && d.Name != "skip" {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil || arg.Value == nil {
			continue
		}
		skip := d.Name == "skip"
		switch arg.Value.Kind {
		case language.Variable:
			conds = append(conds, Condition{Variable: arg.Value.Raw, Negated: skip})
		case language.BooleanValue:
			if (arg.Value.Raw == "true") == skip {
				r.violations = append(r.violations, violationLiteralFalse(d.Name, pos))
				return nil, false
			}
		}
	}
	set := NewConditionSet(conds...)
	if set.IsContradiction() {
		r.violations = append(r.violations, violationDeadConditions(set, nil, pos))
		return nil, false
	}
	return set, true
}

// argumentsKey renders arguments canonically: sorted by name, variables by
// name, object fields sorted.
func argumentsKey(args language.ArgumentList) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, arg.Name+":"+valueKey(arg.Value))
	}
	sort.Strings(parts)
	return "(" + strings.Join(parts, ",") + ")"
}

func valueKey(v *language.Value) string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case language.Variable:
		return "$" + v.Raw
	case language.StringValue, language.BlockValue:
		return strconv.Quote(v.Raw)
	case language.NullValue:
		return "null"
	case language.ListValue:
		items := make([]string, 0, len(v.Children))
		for _, child := range v.Children {
			items = append(items, valueKey(child.Value))
		}
		return "[" + strings.Join(items, ",") + "]"
	case language.ObjectValue:
		items := make([]string, 0, len(v.Children))
		for _, child := range v.Children {
			items = append(items, child.Name+":"+valueKey(child.Value))
		}
		sort.Strings(items)
		return "{" + strings.Join(items, ",") + "}"
	}
	return v.Raw
}
