package ir

import (
	"strings"

	"github.com/hanpama/shapegen/internal/schema"
)

// Classification is the outcome of applying a type condition or a condition
// set to an enclosing scope.
type Classification int

const (
	// AlwaysTrue flattens the selections into the enclosing scope.
	AlwaysTrue Classification = iota
	// AlwaysFalse marks a dead branch.
	AlwaysFalse
	// Narrowing opens a child scope.
	Narrowing
)

func (c Classification) String() string {
	switch c {
	case AlwaysTrue:
		return "AlwaysTrue"
	case AlwaysFalse:
		return "AlwaysFalse"
	}
	return "Narrowing"
}

// Classify compares the possible types of an enclosing scope with those of a
// type condition. For Narrowing the intersection is returned.
func Classify(enclosing, condition TypeSet) (Classification, TypeSet) {
	if enclosing.IsSubsetOf(condition) {
		return AlwaysTrue, enclosing
	}
	inter := enclosing.Intersect(condition)
	if inter.Empty() {
		return AlwaysFalse, nil
	}
	return Narrowing, inter
}

// ClassifyConditions applies a condition set under the conditions already
// active. For Narrowing the conditions not yet implied are returned.
func ClassifyConditions(active, conds ConditionSet) (Classification, ConditionSet) {
	if active.And(conds).IsContradiction() {
		return AlwaysFalse, nil
	}
	rest := conds.Minus(active)
	if rest.IsEmpty() {
		return AlwaysTrue, nil
	}
	return Narrowing, rest
}

// ScopeNode is one narrowing step inside an Entity. The root node of an
// entity has neither a type condition nor conditions.
type ScopeNode struct {
	entity *Entity
	parent *ScopeNode

	TypeCondition *schema.Type
	Conditions    ConditionSet

	// conditionTypes is nil when the step does not narrow types.
	conditionTypes TypeSet
	// explicit nodes come from inline fragments and spreads and become named
	// shapes; implicit ones come from field directives.
	explicit   bool
	children   []*ScopeNode
	childIndex map[string]*ScopeNode

	frozen        bool
	possible      TypeSet
	allConditions ConditionSet
}

func newRootScope(e *Entity) *ScopeNode {
	return &ScopeNode{entity: e, explicit: true}
}

func (n *ScopeNode) Entity() *Entity        { return n.entity }
func (n *ScopeNode) Parent() *ScopeNode     { return n.parent }
func (n *ScopeNode) Children() []*ScopeNode { return n.children }
func (n *ScopeNode) IsExplicit() bool       { return n.explicit }

// PossibleTypes is the intersection of the type conditions from the entity
// root down to n.
func (n *ScopeNode) PossibleTypes() TypeSet {
	if n.frozen {
		return n.possible
	}
	if n.parent == nil {
		return n.entity.possible
	}
	p := n.parent.PossibleTypes()
	if n.conditionTypes == nil {
		return p
	}
	return p.Intersect(n.conditionTypes)
}

// AllConditions is the conjunction of the conditions from the entity root
// down to n.
func (n *ScopeNode) AllConditions() ConditionSet {
	if n.frozen {
		return n.allConditions
	}
	if n.parent == nil {
		return n.Conditions
	}
	return n.parent.AllConditions().And(n.Conditions)
}

// ParentType is the nearest type condition on the path, or the entity type.
func (n *ScopeNode) ParentType() *schema.Type {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.TypeCondition != nil {
			return cur.TypeCondition
		}
	}
	return n.entity.Type
}

// Name is the local shape name of the step, e.g. "AsPet" or "AsCatIfNotSkip".
func (n *ScopeNode) Name() string {
	var b strings.Builder
	if n.TypeCondition != nil {
		b.WriteString("As")
		b.WriteString(n.TypeCondition.Name)
	}
	b.WriteString(conditionsName(n.Conditions))
	return b.String()
}

func conditionsName(conds ConditionSet) string {
	var b strings.Builder
	for _, c := range conds {
		if c.Negated {
			b.WriteString("IfNot")
		} else {
			b.WriteString("If")
		}
		b.WriteString(upperFirst(c.Variable))
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// child returns the child step for (typeCond, conds), creating it on first
// use. An implicit node becomes explicit once an explicit selection reuses it.
func (n *ScopeNode) child(typeCond *schema.Type, condTypes TypeSet, conds ConditionSet, explicit bool) *ScopeNode {
	key := conds.Key()
	if typeCond != nil {
		key = typeCond.Name + "|" + key
	}
	if c, ok := n.childIndex[key]; ok {
		c.explicit = c.explicit || explicit
		return c
	}
	c := &ScopeNode{
		entity:         n.entity,
		parent:         n,
		TypeCondition:  typeCond,
		Conditions:     conds,
		conditionTypes: condTypes,
		explicit:       explicit,
	}
	if n.childIndex == nil {
		n.childIndex = make(map[string]*ScopeNode)
	}
	n.childIndex[key] = c
	n.children = append(n.children, c)
	return c
}

// contains reports whether m is n or a descendant of n.
func (n *ScopeNode) contains(m *ScopeNode) bool {
	for cur := m; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

func (n *ScopeNode) freeze() {
	n.possible = n.PossibleTypes()
	n.allConditions = n.AllConditions()
	n.frozen = true
	for _, c := range n.children {
		c.freeze()
	}
}

// scopeChain is the stack of scope nodes from the unit root entity down to the
// current entity, one node per entity level.
type scopeChain struct {
	parent *scopeChain
	node   *ScopeNode
}

func (c *scopeChain) push(n *ScopeNode) *scopeChain {
	return &scopeChain{parent: c, node: n}
}

func (c *scopeChain) replace(n *ScopeNode) *scopeChain {
	return &scopeChain{parent: c.parent, node: n}
}

func (c *scopeChain) levels() []*ScopeNode {
	var out []*ScopeNode
	for cur := c; cur != nil; cur = cur.parent {
		out = append(out, cur.node)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// conditions is the conjunction of the conditions active at every level.
func (c *scopeChain) conditions() ConditionSet {
	var out ConditionSet
	for cur := c; cur != nil; cur = cur.parent {
		out = out.And(cur.node.AllConditions())
	}
	return out
}
