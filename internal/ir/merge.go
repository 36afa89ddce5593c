package ir

import (
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/schema"
)

// mergeSelectionSet folds set into entity e under chain, in document order.
// spreads is the chain of fragment names currently being inlined.
func (b *unitBuilder) mergeSelectionSet(e *Entity, chain *scopeChain, set *selectionSet, spreads []string) error {
	for _, sel := range set.selections {
		var err error
		switch sel := sel.(type) {
		case *fieldSelection:
			err = b.mergeField(e, chain, sel, spreads)
		case *inlineFragment:
			target, ok := b.narrow(chain, sel.typeCondition, sel.conditions, true, sel.pos)
			if !ok {
				continue
			}
			err = b.mergeSelectionSet(e, target, sel.selectionSet, spreads)
		case *fragmentSpread:
			err = b.mergeSpread(e, chain, sel, spreads)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *unitBuilder) mergeField(e *Entity, chain *scopeChain, f *fieldSelection, spreads []string) error {
	target := chain
	if !f.conditions.IsEmpty() {
		var ok bool
		if target, ok = b.narrow(chain, nil, f.conditions, false, f.pos); !ok {
			return nil
		}
	}
	entry, err := e.addField(f, target)
	if err != nil {
		return err
	}
	if f.selectionSet == nil {
		return nil
	}
	child := b.tracker.entity(e, f.responseKey, f.name, f.argumentsKey, f.typ.NamedType())
	entry.child = child
	return b.mergeSelectionSet(child, target.push(child.root), f.selectionSet, spreads)
}

func (b *unitBuilder) mergeSpread(e *Entity, chain *scopeChain, s *fragmentSpread, spreads []string) error {
	for i, name := range spreads {
		if name == s.name {
			cycle := append(append([]string(nil), spreads[i:]...), s.name)
			return &FragmentCycleError{Location: locationOf(s.pos), Cycle: cycle}
		}
	}
	frag, err := b.fragments.get(b.ctx, s.name, s.pos)
	if err != nil {
		return err
	}
	target, ok := b.narrow(chain, frag.typeCondition, s.conditions, true, s.pos)
	if !ok {
		return nil
	}
	e.addSpread(s.name, target, s.pos)
	next := append(append([]string(nil), spreads...), s.name)
	return b.mergeSelectionSet(e, target, frag.selectionSet, next)
}

// narrow applies a type condition and conditions to the current scope. It
// returns the chain to merge into and false for a dead branch.
func (b *unitBuilder) narrow(chain *scopeChain, typeCond *schema.Type, conds ConditionSet, explicit bool, pos *language.Position) (*scopeChain, bool) {
	node := chain.node
	var condTypes TypeSet
	if typeCond != nil {
		enclosing := node.PossibleTypes()
		switch cls, _ := b.graph.classify(node.ParentType(), enclosing, typeCond); cls {
		case AlwaysFalse:
			b.deadBranch(violationDeadTypeCondition(typeCond.Name, enclosing, pos))
			return nil, false
		case AlwaysTrue:
			typeCond = nil
		case Narrowing:
			condTypes = b.graph.possible(typeCond)
		}
	}
	if !conds.IsEmpty() {
		active := chain.conditions()
		switch cls, rest := ClassifyConditions(active, conds); cls {
		case AlwaysFalse:
			b.deadBranch(violationDeadConditions(conds, active, pos))
			return nil, false
		case AlwaysTrue:
			conds = nil
		case Narrowing:
			conds = rest
		}
	}
	if typeCond == nil && conds.IsEmpty() {
		return chain, true
	}
	return chain.replace(node.child(typeCond, condTypes, conds, explicit)), true
}
