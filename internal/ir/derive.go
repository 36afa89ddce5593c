package ir

// shapeContext describes the response objects a shape covers: the possible
// types at every entity level from the unit root and the conditions known to
// hold.
type shapeContext struct {
	types      []TypeSet
	conditions ConditionSet
}

func (c shapeContext) with(types TypeSet, conds ConditionSet) shapeContext {
	return shapeContext{
		types:      append(c.types[:len(c.types):len(c.types)], types),
		conditions: c.conditions.And(conds),
	}
}

// guard returns the guard under which an occurrence applies to objects of c.
// Levels where the occurrence covers every possible type of c stay
// unrestricted. It fails when the occurrence can apply to no object of c.
func (c shapeContext) guard(o *occurrence) (Guard, bool) {
	if len(o.levels) != len(c.types) {
		return Guard{}, false
	}
	if c.conditions.And(o.conditions).IsContradiction() {
		return Guard{}, false
	}
	levels := make([]TypeSet, len(c.types))
	for i, node := range o.levels {
		inter := c.types[i].Intersect(node.PossibleTypes())
		if inter.Empty() {
			return Guard{}, false
		}
		if !inter.Equal(c.types[i]) {
			levels[i] = inter
		}
	}
	return newGuard(levels, o.conditions.Minus(c.conditions)), true
}

// match reports whether an occurrence applies to every object of ctx and
// returns the conditions still required for it.
func (c shapeContext) match(o *occurrence) (ConditionSet, bool) {
	g, ok := c.guard(o)
	if !ok || g.IsTyped() {
		return nil, false
	}
	return g.Conditions, true
}

// include adds g to in, joining guards that differ in the types of a single
// level. A joined level covering every possible type of c becomes
// unrestricted.
func (c shapeContext) include(in Inclusion, g Guard) Inclusion {
	for i, e := range in {
		if u, ok := c.union(e, g); ok {
			rest := append(in[:i:i], in[i+1:]...)
			return c.include(rest, u)
		}
	}
	return in.add(g)
}

func (c shapeContext) union(a, b Guard) (Guard, bool) {
	if !a.Conditions.Equal(b.Conditions) {
		return Guard{}, false
	}
	depth := len(c.types)
	la, lb := a.levels(depth), b.levels(depth)
	at := -1
	for i := range la {
		if sameRestriction(la[i], lb[i]) {
			continue
		}
		if at >= 0 {
			return Guard{}, false
		}
		at = i
	}
	if at < 0 {
		return a, true
	}
	if la[at] == nil || lb[at] == nil {
		la[at] = nil
	} else if u := la[at].Union(lb[at]); u.Equal(c.types[at]) {
		la[at] = nil
	} else {
		la[at] = u
	}
	return newGuard(la, a.Conditions), true
}

func sameRestriction(a, b TypeSet) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// narrow restricts c to the objects satisfying g.
func (c shapeContext) narrow(g Guard) shapeContext {
	levels := g.levels(len(c.types))
	types := make([]TypeSet, len(c.types))
	for i, t := range c.types {
		types[i] = t
		if levels[i] != nil {
			types[i] = levels[i]
		}
	}
	return shapeContext{types: types, conditions: c.conditions.And(g.Conditions)}
}

// reaches reports whether an occurrence lies under node and can apply to some
// object of the enclosing levels of c.
func (c shapeContext) reaches(o *occurrence, node *ScopeNode) bool {
	last := len(o.levels) - 1
	if last != len(c.types) || !node.contains(o.levels[last]) {
		return false
	}
	for i := 0; i < last; i++ {
		if !c.types[i].IsSubsetOf(o.levels[i].PossibleTypes()) {
			return false
		}
	}
	return !c.conditions.And(o.conditions).IsContradiction()
}

// shapeScope is a shape under construction.
type shapeScope struct {
	shape    *Shape
	entity   *Entity
	node     *ScopeNode
	types    TypeSet
	local    ConditionSet
	outer    shapeContext
	ctx      shapeContext
	children []*shapeScope
}

func (s *shapeScope) fulfills(o *shapeScope) bool {
	return s.types.IsSubsetOf(o.types) && s.local.Implies(o.local)
}

type deriver struct {
	graph *typeGraph
}

// deriveEntity builds the shape tree of e for the objects described by outer.
func (d *deriver) deriveEntity(e *Entity, outer shapeContext, name string) *Shape {
	root := d.newScope(e, e.root, outer, ScopePath{name}, name)
	d.deriveChildren(root, e.root)

	var all []*shapeScope
	var collect func(*shapeScope)
	collect = func(s *shapeScope) {
		all = append(all, s)
		for _, c := range s.children {
			collect(c)
		}
	}
	collect(root)
	for _, s := range all {
		d.fill(s)
	}
	d.deriveMergedOnly(root)

	all = all[:0]
	collect(root)
	for _, s := range all {
		for _, t := range all {
			if s.fulfills(t) {
				s.shape.FulfilledScopes = append(s.shape.FulfilledScopes, t.shape.Path)
			}
		}
	}
	return root.shape
}

func (d *deriver) newScope(e *Entity, node *ScopeNode, outer shapeContext, path ScopePath, name string) *shapeScope {
	types, local := node.PossibleTypes(), node.AllConditions()
	return &shapeScope{
		shape: &Shape{
			Name:          name,
			Path:          path,
			Entity:        e.ID,
			ParentType:    node.ParentType(),
			PossibleTypes: types,
			Conditions:    local,
		},
		entity: e,
		node:   node,
		types:  types,
		local:  local,
		outer:  outer,
		ctx:    outer.with(types, local),
	}
}

// deriveChildren adds a shape for every explicit scope under node that some
// selection reaches in the context of parent.
func (d *deriver) deriveChildren(parent *shapeScope, node *ScopeNode) {
	for _, c := range node.children {
		if !d.reachable(parent, c) {
			continue
		}
		if !c.explicit {
			d.deriveChildren(parent, c)
			continue
		}
		name := c.Name()
		s := d.newScope(parent.entity, c, parent.outer, parent.shape.Path.append(name), name)
		parent.children = append(parent.children, s)
		parent.shape.ChildShapes = append(parent.shape.ChildShapes, s.shape)
		d.deriveChildren(s, c)
	}
}

func (d *deriver) reachable(parent *shapeScope, node *ScopeNode) bool {
	ctx := parent.outer
	ctx.conditions = ctx.conditions.And(node.AllConditions())
	e := parent.entity
	for _, f := range e.fields {
		for _, o := range f.occurrences {
			if ctx.reaches(o, node) {
				return true
			}
		}
	}
	for _, sp := range e.spreads {
		for _, o := range sp.occurrences {
			if ctx.reaches(o, node) {
				return true
			}
		}
	}
	return false
}

// occurrenceGuard is the guard of an occurrence in s. Occurrences narrowing
// the object's own type are only raised from scopes nested in s; a sibling
// scope's fields stay out of s.
func (s *shapeScope) occurrenceGuard(o *occurrence) (Guard, bool) {
	g, ok := s.ctx.guard(o)
	if !ok {
		return Guard{}, false
	}
	if g.Types != nil && !s.node.contains(o.levels[len(o.levels)-1]) {
		return Guard{}, false
	}
	return g, true
}

type fieldCandidate struct {
	entry     *fieldEntry
	inclusion Inclusion
	typ       *GraphQLType
	occ       *occurrence
}

// collect gathers the occurrences of entry that apply in s.
func (d *deriver) collect(s *shapeScope, entry *fieldEntry) *fieldCandidate {
	c := &fieldCandidate{entry: entry}
	var typed *GraphQLType
	for _, o := range entry.occurrences {
		g, ok := s.occurrenceGuard(o)
		if !ok {
			continue
		}
		if c.occ == nil {
			c.occ = o
		}
		c.inclusion = s.ctx.include(c.inclusion, g)
		if g.IsTyped() {
			typed = wider(d.graph, typed, o.typ)
		} else {
			c.typ = narrower(d.graph, c.typ, o.typ)
		}
	}
	if c.occ == nil {
		return nil
	}
	if c.typ == nil {
		c.typ = typed
	}
	if c.inclusion.IsUnconditional() {
		c.inclusion = nil
	}
	return c
}

// fill computes the fields and included fragments of s. A response key
// selected with different identities in disjoint scopes is left to the
// narrower shapes.
func (d *deriver) fill(s *shapeScope) {
	var candidates []*fieldCandidate
	variants := make(map[string]int)
	for _, entry := range s.entity.fields {
		if c := d.collect(s, entry); c != nil {
			candidates = append(candidates, c)
			variants[entry.responseKey]++
		}
	}
	for _, c := range candidates {
		entry := c.entry
		if variants[entry.responseKey] > 1 {
			continue
		}
		f := &FieldNode{
			ResponseKey:       entry.responseKey,
			Name:              entry.name,
			Arguments:         entry.arguments,
			ArgumentsKey:      entry.argumentsKey,
			Type:              c.typ,
			SchemaType:        c.typ,
			Inclusion:         c.inclusion,
			IsDeprecated:      c.occ.definition.IsDeprecated,
			DeprecationReason: c.occ.definition.DeprecationReason,
		}
		if c.inclusion != nil {
			f.Type = c.typ.Nullable()
		}
		if entry.child != nil {
			outer := s.ctx
			if len(c.inclusion) == 1 {
				outer = outer.narrow(c.inclusion[0])
			}
			f.Selection = d.deriveEntity(entry.child, outer, upperFirst(entry.responseKey))
		}
		s.shape.addField(f)
	}
	for _, sp := range s.entity.spreads {
		for _, o := range sp.occurrences {
			if missing, ok := s.ctx.match(o); ok && missing.IsEmpty() {
				s.shape.FragmentsIncluded = append(s.shape.FragmentsIncluded, sp.name)
				break
			}
		}
	}
}

// deriveMergedOnly adds a shape under a for every later overlapping sibling b
// whose fields only show up together with a's.
func (d *deriver) deriveMergedOnly(s *shapeScope) {
	kids := append([]*shapeScope(nil), s.children...)
	for _, c := range kids {
		d.deriveMergedOnly(c)
	}
	for i, a := range kids {
		for _, b := range kids[i+1:] {
			d.mergeSiblings(a, b)
		}
	}
}

func (d *deriver) mergeSiblings(a, b *shapeScope) {
	if !a.types.Overlaps(b.types) || a.fulfills(b) || b.fulfills(a) {
		return
	}
	local := a.local.And(b.local)
	if local.IsContradiction() || a.shape.Child(b.shape.Name) != nil {
		return
	}
	types := a.types.Intersect(b.types)
	for _, c := range a.children {
		if c.types.Equal(types) && c.local.Equal(local) {
			return
		}
	}
	parentType := b.node.ParentType()
	if at := a.node.ParentType(); len(d.graph.possible(at)) < len(d.graph.possible(parentType)) {
		parentType = at
	}
	m := &shapeScope{
		shape: &Shape{
			Name:          b.shape.Name,
			Path:          a.shape.Path.append(b.shape.Name),
			Entity:        a.entity.ID,
			ParentType:    parentType,
			PossibleTypes: types,
			Conditions:    local,
			MergedOnly:    true,
		},
		entity: a.entity,
		node:   a.node,
		types:  types,
		local:  local,
		outer:  a.outer,
		ctx:    a.outer.with(types, local),
	}
	d.fill(m)
	if sig := m.shape.signature(); sig == a.shape.signature() || sig == b.shape.signature() {
		return
	}
	a.children = append(a.children, m)
	a.shape.ChildShapes = append(a.shape.ChildShapes, m.shape)
}
