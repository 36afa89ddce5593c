package ir

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Condition is a single @include/@skip variable test. Negated conditions come
// from @skip.
type Condition struct {
	Variable string
	Negated  bool
}

func (c Condition) Not() Condition { return Condition{Variable: c.Variable, Negated: !c.Negated} }

func (c Condition) String() string {
	if c.Negated {
		return "!$" + c.Variable
	}
	return "$" + c.Variable
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c Condition) less(o Condition) bool {
	if c.Variable != o.Variable {
		return c.Variable < o.Variable
	}
	return !c.Negated && o.Negated
}

// ConditionSet is a conjunction of conditions, kept sorted and duplicate-free.
type ConditionSet []Condition

func NewConditionSet(conds ...Condition) ConditionSet {
	if len(conds) == 0 {
		return nil
	}
	out := append(ConditionSet(nil), conds...)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	n := 0
	for i, c := range out {
		if i > 0 && c == out[n-1] {
			continue
		}
		out[n] = c
		n++
	}
	return out[:n]
}

func (s ConditionSet) IsEmpty() bool { return len(s) == 0 }

func (s ConditionSet) Contains(c Condition) bool {
	for _, x := range s {
		if x == c {
			return true
		}
	}
	return false
}

func (s ConditionSet) And(o ConditionSet) ConditionSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	return NewConditionSet(append(append([]Condition(nil), s...), o...)...)
}

// Implies reports whether every condition of o is also in s.
func (s ConditionSet) Implies(o ConditionSet) bool {
	for _, c := range o {
		if !s.Contains(c) {
			return false
		}
	}
	return true
}

func (s ConditionSet) Minus(o ConditionSet) ConditionSet {
	var out ConditionSet
	for _, c := range s {
		if !o.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s ConditionSet) Equal(o ConditionSet) bool {
	return len(s) == len(o) && s.Implies(o)
}

// IsContradiction reports whether the set holds both a condition and its negation.
func (s ConditionSet) IsContradiction() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Variable == s[i-1].Variable {
			return true
		}
	}
	return false
}

// Evaluate reports whether the set holds for the given variable values.
// Missing variables are false.
func (s ConditionSet) Evaluate(vars map[string]bool) bool {
	for _, c := range s {
		if vars[c.Variable] == c.Negated {
			return false
		}
	}
	return true
}

func (s ConditionSet) Key() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func (s ConditionSet) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

// Guard is one way for a field to be present: the object is one of Types and
// Conditions hold. Enclosing restricts the enclosing objects, outermost first.
// A nil TypeSet at any level leaves that level unrestricted.
type Guard struct {
	Types      TypeSet      `json:"types,omitempty"`
	Enclosing  []TypeSet    `json:"enclosing,omitempty"`
	Conditions ConditionSet `json:"conditions,omitempty"`
}

func newGuard(levels []TypeSet, conds ConditionSet) Guard {
	last := len(levels) - 1
	g := Guard{Types: levels[last], Conditions: conds}
	for _, t := range levels[:last] {
		if t != nil {
			g.Enclosing = levels[:last]
			break
		}
	}
	return g
}

// levels expands g to one restriction per level for a scope of the given depth.
func (g Guard) levels(depth int) []TypeSet {
	out := make([]TypeSet, depth)
	copy(out, g.Enclosing)
	out[depth-1] = g.Types
	return out
}

// IsTyped reports whether g depends on the type of the object or of an
// enclosing object.
func (g Guard) IsTyped() bool {
	if g.Types != nil {
		return true
	}
	for _, t := range g.Enclosing {
		if t != nil {
			return true
		}
	}
	return false
}

func (g Guard) isUnconditional() bool {
	return g.Conditions.IsEmpty() && !g.IsTyped()
}

// implies reports whether every object satisfying g also satisfies o.
func (g Guard) implies(o Guard) bool {
	if !g.Conditions.Implies(o.Conditions) || !restrictionWithin(g.Types, o.Types) {
		return false
	}
	for i, t := range o.Enclosing {
		var mine TypeSet
		if i < len(g.Enclosing) {
			mine = g.Enclosing[i]
		}
		if !restrictionWithin(mine, t) {
			return false
		}
	}
	return true
}

func (g Guard) String() string {
	var parts []string
	for _, t := range g.Enclosing {
		if t != nil {
			parts = append(parts, "within "+strings.Join(t, "|"))
		}
	}
	if g.Types != nil {
		parts = append(parts, "on "+strings.Join(g.Types, "|"))
	}
	if !g.Conditions.IsEmpty() {
		parts = append(parts, g.Conditions.String())
	}
	return strings.Join(parts, " && ")
}

// restrictionWithin reports whether restriction r is at least as narrow as o.
func restrictionWithin(r, o TypeSet) bool {
	return o == nil || (r != nil && r.IsSubsetOf(o))
}

// Inclusion is a disjunction of guards describing when a field is present. A
// nil Inclusion means the field is always present.
type Inclusion []Guard

func (in Inclusion) IsUnconditional() bool {
	if in == nil {
		return true
	}
	for _, g := range in {
		if g.isUnconditional() {
			return true
		}
	}
	return false
}

// IsTyped reports whether presence depends on the concrete type of the object
// or of an enclosing object.
func (in Inclusion) IsTyped() bool {
	if in.IsUnconditional() {
		return false
	}
	for _, g := range in {
		if g.IsTyped() {
			return true
		}
	}
	return false
}

// add appends g unless an existing guard already covers it, dropping any
// guard g covers.
func (in Inclusion) add(g Guard) Inclusion {
	for _, e := range in {
		if g.implies(e) {
			return in
		}
	}
	out := in[:0:0]
	for _, e := range in {
		if !e.implies(g) {
			out = append(out, e)
		}
	}
	return append(out, g)
}

func (in Inclusion) String() string {
	if in.IsUnconditional() {
		return "always"
	}
	parts := make([]string, len(in))
	for i, g := range in {
		parts[i] = "(" + g.String() + ")"
	}
	return strings.Join(parts, " || ")
}
