// Package pattern implements the star-query engine of spec §4.11: a
// Pattern rooted at a center class with one or more relation edges, matched
// against live nodes through whatever NodeProvider backs them (normally a
// *database.Database). Grounded on the traversal shape of
// original_source/src/db_struct/database.hpp's PatternMatch skeleton,
// generalized from its stubbed single-edge form into the full star-join
// and Cartesian-product algorithm the distilled spec spells out.
package pattern

import (
	"sort"

	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/nodestore"
	"github.com/mpiechota/classgraph/typesystem"
)

// NodeProvider is the subset of Database's public surface PatternMatch
// needs: a way to visit every live node of a class, with its id.
type NodeProvider interface {
	VisitNodes(class *typesystem.Class, pred func(*nodestore.Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error
}

// EdgePredicate judges whether a candidate leaf belongs in a center's
// match set, given both endpoint objects.
type EdgePredicate func(center, leaf *typesystem.ObjectValue) bool

// Edge is one leg of a star Pattern: a relation class plus the predicate
// gating which of its incident nodes count as a leaf.
type Edge struct {
	Relation *typesystem.Class
	Pred     EdgePredicate
}

// Pattern is a star graph rooted at Center, per spec §4.11.
type Pattern struct {
	Center *typesystem.Class
	Edges  []Edge
}

// New returns an edgeless Pattern rooted at center.
func New(center *typesystem.Class) *Pattern {
	return &Pattern{Center: center}
}

// AddRelation appends an edge. It fails BadArgument if relation is not a
// relation class, or is not incident on the pattern's center class.
func (p *Pattern) AddRelation(relation *typesystem.Class, pred EdgePredicate) error {
	if relation.Kind != typesystem.KindRelation {
		return errkind.Errorf(errkind.BadArgument, "class %q is not a relation", relation.Name)
	}
	if !relation.Ingress.Equal(p.Center) && !relation.Egress.Equal(p.Center) {
		return errkind.Errorf(errkind.BadArgument, "relation %q is not incident on center class %q", relation.Name, p.Center.Name)
	}
	p.Edges = append(p.Edges, Edge{Relation: relation, Pred: pred})
	return nil
}

// Result is one emitted match: a center node plus one leaf per edge, in
// edge-declaration order.
type Result struct {
	CenterID uint64
	Center   *typesystem.ObjectValue
	LeafIDs  []uint64
	Leaves   []*typesystem.ObjectValue
}

type idObj struct {
	id  uint64
	obj *typesystem.ObjectValue
}

// Match runs PatternMatch (spec §4.11) and calls emit once per result, in
// ascending-center-id, then lexicographic-leaf-id-tuple order.
func Match(provider NodeProvider, p *Pattern, emit func(Result) error) error {
	centers, err := collect(provider, p.Center, nil)
	if err != nil {
		return err
	}
	sort.Slice(centers, func(i, j int) bool { return centers[i].id < centers[j].id })

	leafCache := map[string]map[uint64]*typesystem.ObjectValue{}
	relCache := map[string][]idObj{}
	getLeafMap := func(class *typesystem.Class) (map[uint64]*typesystem.ObjectValue, error) {
		key := typesystem.Serialize(class)
		if m, ok := leafCache[key]; ok {
			return m, nil
		}
		nodes, err := collect(provider, class, nil)
		if err != nil {
			return nil, err
		}
		m := make(map[uint64]*typesystem.ObjectValue, len(nodes))
		for _, n := range nodes {
			m[n.id] = n.obj
		}
		leafCache[key] = m
		return m, nil
	}
	getRelNodes := func(class *typesystem.Class) ([]idObj, error) {
		key := typesystem.Serialize(class)
		if nodes, ok := relCache[key]; ok {
			return nodes, nil
		}
		nodes, err := collect(provider, class, nil)
		if err != nil {
			return nil, err
		}
		relCache[key] = nodes
		return nodes, nil
	}

	for _, c := range centers {
		leafSets := make([][]idObj, len(p.Edges))
		complete := true
		for i, edge := range p.Edges {
			leafClass := edge.Relation.Egress
			if !edge.Relation.Ingress.Equal(p.Center) {
				leafClass = edge.Relation.Ingress
			}
			leafMap, err := getLeafMap(leafClass)
			if err != nil {
				return err
			}
			relNodes, err := getRelNodes(edge.Relation)
			if err != nil {
				return err
			}

			seen := map[uint64]bool{}
			var leaves []idObj
			for _, r := range relNodes {
				leafID, matched := incidentLeaf(edge.Relation, p.Center, r.obj, c.id)
				if !matched || seen[leafID] {
					continue
				}
				leafObj, ok := leafMap[leafID]
				if !ok {
					continue // dangling endpoint
				}
				if !edge.Pred(c.obj, leafObj) {
					continue
				}
				seen[leafID] = true
				leaves = append(leaves, idObj{id: leafID, obj: leafObj})
			}
			if len(leaves) == 0 {
				complete = false
				break
			}
			sort.Slice(leaves, func(a, b int) bool { return leaves[a].id < leaves[b].id })
			leafSets[i] = leaves
		}
		if !complete {
			continue
		}
		if err := emitProduct(c, leafSets, emit); err != nil {
			return err
		}
	}
	return nil
}

// incidentLeaf checks whether r, a node of relation's class, is incident
// on centerID as the pattern's center, and if so returns the id of its
// other endpoint. A relation whose ingress and egress classes both equal
// center (a self-loop class) is checked on both sides, per design note §9.
func incidentLeaf(relation, center *typesystem.Class, r *typesystem.ObjectValue, centerID uint64) (uint64, bool) {
	if relation.Ingress.Equal(center) && r.Ingress() == centerID {
		return r.Egress(), true
	}
	if relation.Egress.Equal(center) && r.Egress() == centerID {
		return r.Ingress(), true
	}
	return 0, false
}

func emitProduct(center idObj, leafSets [][]idObj, emit func(Result) error) error {
	indices := make([]int, len(leafSets))
	if len(leafSets) == 0 {
		return emit(Result{CenterID: center.id, Center: center.obj})
	}
	for {
		ids := make([]uint64, len(leafSets))
		objs := make([]*typesystem.ObjectValue, len(leafSets))
		for i, idx := range indices {
			ids[i] = leafSets[i][idx].id
			objs[i] = leafSets[i][idx].obj
		}
		if err := emit(Result{CenterID: center.id, Center: center.obj, LeafIDs: ids, Leaves: objs}); err != nil {
			return err
		}

		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(leafSets[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return nil
		}
	}
}

func collect(provider NodeProvider, class *typesystem.Class, pred func(*nodestore.Iterator) bool) ([]idObj, error) {
	var nodes []idObj
	err := provider.VisitNodes(class, pred, func(id uint64, obj *typesystem.ObjectValue) {
		nodes = append(nodes, idObj{id: id, obj: obj})
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}
