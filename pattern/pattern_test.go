package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/nodestore"
	"github.com/mpiechota/classgraph/pattern"
	"github.com/mpiechota/classgraph/typesystem"
)

// fakeProvider is a NodeProvider backed by plain in-memory slices, letting
// pattern tests exercise Match without a real database or file.
type fakeProvider struct {
	nodes map[string][]nodeRec
}

type nodeRec struct {
	id  uint64
	obj *typesystem.ObjectValue
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{nodes: map[string][]nodeRec{}}
}

func (p *fakeProvider) add(class *typesystem.Class, id uint64, obj *typesystem.ObjectValue) {
	key := typesystem.Serialize(class)
	p.nodes[key] = append(p.nodes[key], nodeRec{id: id, obj: obj})
}

func (p *fakeProvider) VisitNodes(class *typesystem.Class, pred func(*nodestore.Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error {
	for _, n := range p.nodes[typesystem.Serialize(class)] {
		fn(n.id, n.obj)
	}
	return nil
}

func newPointAndEdgeClasses(t *testing.T) (point, edge *typesystem.Class) {
	x, err := typesystem.NewPrimitive("x", typesystem.PDouble)
	require.NoError(t, err)
	y, err := typesystem.NewPrimitive("y", typesystem.PDouble)
	require.NoError(t, err)
	point, err = typesystem.NewStruct("point", x, y)
	require.NoError(t, err)
	edge, err = typesystem.NewRelation("edge", point, point)
	require.NoError(t, err)
	return point, edge
}

func newPoint(t *testing.T, class *typesystem.Class, x, y float64) *typesystem.ObjectValue {
	o, err := typesystem.New(class, x, y)
	require.NoError(t, err)
	return o
}

func yOf(o *typesystem.ObjectValue) float64 { return o.Fields()[1].Raw().(float64) }

// Two points connected by an edge, predicate a.y > b.y, matches spec §8's
// E2E scenario 4: exactly one match, the point with the greater y.
func TestPatternMatchYieldsExactlyOneMatch(t *testing.T) {
	point, edge := newPointAndEdgeClasses(t)
	provider := newFakeProvider()

	a := newPoint(t, point, 0, 1)
	b := newPoint(t, point, 0, 2)
	provider.add(point, 0, a)
	provider.add(point, 1, b)

	e, err := typesystem.New(edge, uint64(0), uint64(1))
	require.NoError(t, err)
	provider.add(edge, 0, e)

	p := pattern.New(point)
	require.NoError(t, p.AddRelation(edge, func(center, leaf *typesystem.ObjectValue) bool {
		return yOf(center) > yOf(leaf)
	}))

	var results []pattern.Result
	err = pattern.Match(provider, p, func(r pattern.Result) error {
		results = append(results, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].CenterID)
	assert.Equal(t, []uint64{0}, results[0].LeafIDs)
}

// A 5-point star: one hub connected to 4 leaves by two edge relations that
// always match, produces 4x4=16 results for the hub and zero for every
// non-hub point, per spec §8's E2E scenario 5.
func TestPatternMatchStarProducesCartesianProduct(t *testing.T) {
	point, _ := newPointAndEdgeClasses(t)
	hubX, err := typesystem.NewPrimitive("id", typesystem.PInt)
	require.NoError(t, err)
	hub, err := typesystem.NewStruct("hub", hubX)
	require.NoError(t, err)
	// hub and point are distinct classes, so these edges are not self-loops
	// and leaf points never qualify as centers of their own.
	edge1, err := typesystem.NewRelation("edge1", hub, point)
	require.NoError(t, err)
	edge2, err := typesystem.NewRelation("edge2", hub, point)
	require.NoError(t, err)
	provider := newFakeProvider()

	provider.add(hub, 0, mustNew(t, hub, int64(0)))
	for i := 1; i <= 4; i++ {
		provider.add(point, uint64(i), newPoint(t, point, float64(i), float64(i)))
	}

	always := func(center, leaf *typesystem.ObjectValue) bool { return true }

	for i, id := range []uint64{1, 2, 3, 4} {
		e, err := typesystem.New(edge1, uint64(0), id)
		require.NoError(t, err)
		provider.add(edge1, uint64(i), e)
	}
	for i, id := range []uint64{1, 2, 3, 4} {
		e, err := typesystem.New(edge2, uint64(0), id)
		require.NoError(t, err)
		provider.add(edge2, uint64(i), e)
	}

	p := pattern.New(hub)
	require.NoError(t, p.AddRelation(edge1, always))
	require.NoError(t, p.AddRelation(edge2, always))

	var results []pattern.Result
	err = pattern.Match(provider, p, func(r pattern.Result) error {
		results = append(results, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 16)
	for _, r := range results {
		assert.Equal(t, uint64(0), r.CenterID)
	}
}

// A relation whose ingress and egress classes both equal the pattern's
// center (a self-loop class) is checked on both sides of every edge node.
func TestPatternMatchHandlesSelfLoopRelation(t *testing.T) {
	x, err := typesystem.NewPrimitive("x", typesystem.PInt)
	require.NoError(t, err)
	node, err := typesystem.NewStruct("node", x)
	require.NoError(t, err)
	friend, err := typesystem.NewRelation("friend", node, node)
	require.NoError(t, err)

	provider := newFakeProvider()
	a := mustNew(t, node, int64(1))
	b := mustNew(t, node, int64(2))
	provider.add(node, 0, a)
	provider.add(node, 1, b)

	e, err := typesystem.New(friend, uint64(1), uint64(0))
	require.NoError(t, err)
	provider.add(friend, 0, e)

	p := pattern.New(node)
	require.NoError(t, p.AddRelation(friend, func(center, leaf *typesystem.ObjectValue) bool { return true }))

	var results []pattern.Result
	err = pattern.Match(provider, p, func(r pattern.Result) error {
		results = append(results, r)
		return nil
	})
	require.NoError(t, err)
	// The single friend edge is incident on both endpoints, so it produces
	// a match from each side: center 0 sees leaf 1, and center 1 sees leaf 0.
	require.Len(t, results, 2)
	assert.Equal(t, uint64(0), results[0].CenterID)
	assert.Equal(t, []uint64{1}, results[0].LeafIDs)
	assert.Equal(t, uint64(1), results[1].CenterID)
	assert.Equal(t, []uint64{0}, results[1].LeafIDs)
}

func TestPatternMatchSkipsDanglingEndpoint(t *testing.T) {
	point, edge := newPointAndEdgeClasses(t)
	provider := newFakeProvider()

	a := newPoint(t, point, 0, 0)
	provider.add(point, 0, a)
	// edge references leaf id 99, which was never added to the provider.
	e, err := typesystem.New(edge, uint64(0), uint64(99))
	require.NoError(t, err)
	provider.add(edge, 0, e)

	p := pattern.New(point)
	require.NoError(t, p.AddRelation(edge, func(center, leaf *typesystem.ObjectValue) bool { return true }))

	var results []pattern.Result
	err = pattern.Match(provider, p, func(r pattern.Result) error {
		results = append(results, r)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddRelationRejectsNonRelationClass(t *testing.T) {
	point, _ := newPointAndEdgeClasses(t)
	p := pattern.New(point)
	err := p.AddRelation(point, nil)
	require.Error(t, err)
}

func mustNew(t *testing.T, class *typesystem.Class, args ...interface{}) *typesystem.ObjectValue {
	o, err := typesystem.New(class, args...)
	require.NoError(t, err)
	return o
}
