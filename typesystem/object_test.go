package typesystem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/typesystem"
)

func newFile(t *testing.T) *mem.File {
	f := mem.NewFile(mem.NewMemDevice())
	require.NoError(t, f.Grow(mem.PageSize))
	return f
}

func TestNewRejectsWrongArity(t *testing.T) {
	c, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)

	_, err = typesystem.New(c, int64(1), int64(2))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.BadArgument))
}

// For every object o of class c, writing o at offset k and reading o' of
// class c at offset k yields o.ToString() == o'.ToString(), per spec §8.
func TestPrimitiveWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		kind typesystem.PrimitiveKind
		arg  interface{}
	}{
		{typesystem.PInt, int64(-42)},
		{typesystem.PUnsignedInt, uint64(42)},
		{typesystem.PLongLongInt, int64(-1 << 40)},
		{typesystem.PLongLongUnsignedInt, uint64(1 << 40)},
		{typesystem.PShortInt, int64(-7)},
		{typesystem.PShortUnsignedInt, uint64(7)},
		{typesystem.PDouble, float64(3.5)},
		{typesystem.PFloat, float64(2.5)},
		{typesystem.PBool, true},
		{typesystem.PChar, int64(65)},
	}

	for _, tc := range cases {
		c, err := typesystem.NewPrimitive("v", tc.kind)
		require.NoError(t, err)
		o, err := typesystem.New(c, tc.arg)
		require.NoError(t, err)

		f := newFile(t)
		next, err := o.Write(f, 0)
		require.NoError(t, err)
		assert.Equal(t, o.ByteSize(), next)

		got, next2, err := typesystem.Read(f, c, 0)
		require.NoError(t, err)
		assert.Equal(t, next, next2)
		assert.Equal(t, o.ToString(), got.ToString())
	}
}

func TestStringWriteReadRoundTrip(t *testing.T) {
	c, err := typesystem.NewString("name")
	require.NoError(t, err)
	o, err := typesystem.New(c, "hello, classgraph")
	require.NoError(t, err)

	f := newFile(t)
	next, err := o.Write(f, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4+len("hello, classgraph")), next)

	got, _, err := typesystem.Read(f, c, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello, classgraph", got.Text())
}

func TestEmptyStringRoundTrip(t *testing.T) {
	c, err := typesystem.NewString("name")
	require.NoError(t, err)
	o, err := typesystem.New(c, "")
	require.NoError(t, err)

	f := newFile(t)
	_, err = o.Write(f, 0)
	require.NoError(t, err)

	got, _, err := typesystem.Read(f, c, 0)
	require.NoError(t, err)
	assert.Equal(t, "", got.Text())
}

func TestStructWriteReadRoundTrip(t *testing.T) {
	x, err := typesystem.NewPrimitive("x", typesystem.PDouble)
	require.NoError(t, err)
	y, err := typesystem.NewPrimitive("y", typesystem.PDouble)
	require.NoError(t, err)
	point, err := typesystem.NewStruct("point", x, y)
	require.NoError(t, err)

	o, err := typesystem.New(point, float64(1.5), float64(-2.5))
	require.NoError(t, err)

	f := newFile(t)
	_, err = o.Write(f, 0)
	require.NoError(t, err)

	got, _, err := typesystem.Read(f, point, 0)
	require.NoError(t, err)
	assert.Equal(t, o.ToString(), got.ToString())
	assert.Equal(t, float64(1.5), got.Fields()[0].Raw())
	assert.Equal(t, float64(-2.5), got.Fields()[1].Raw())
}

func TestStructWithStringWriteReadRoundTrip(t *testing.T) {
	age, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)
	name, err := typesystem.NewString("name")
	require.NoError(t, err)
	person, err := typesystem.NewStruct("person", name, age)
	require.NoError(t, err)

	o, err := typesystem.New(person, "ada", int64(30))
	require.NoError(t, err)

	f := newFile(t)
	next, err := o.Write(f, 0)
	require.NoError(t, err)
	assert.Equal(t, o.ByteSize(), next)

	got, _, err := typesystem.Read(f, person, 0)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Fields()[0].Text())
	assert.Equal(t, int64(30), got.Fields()[1].Raw())
}

func TestRelationWriteReadRoundTrip(t *testing.T) {
	point, err := typesystem.NewPrimitive("p", typesystem.PInt)
	require.NoError(t, err)
	weight, err := typesystem.NewPrimitive("weight", typesystem.PFloat)
	require.NoError(t, err)
	edge, err := typesystem.NewRelation("edge", point, point, weight)
	require.NoError(t, err)

	o, err := typesystem.New(edge, uint64(3), uint64(7), float64(9.5))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), o.Ingress())
	assert.Equal(t, uint64(7), o.Egress())

	f := newFile(t)
	_, err = o.Write(f, 0)
	require.NoError(t, err)

	got, _, err := typesystem.Read(f, edge, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Ingress())
	assert.Equal(t, uint64(7), got.Egress())
	assert.Equal(t, float64(9.5), got.Attrs()[0].Raw())
}

func TestDefaultNewZeroValues(t *testing.T) {
	x, err := typesystem.NewPrimitive("x", typesystem.PInt)
	require.NoError(t, err)
	name, err := typesystem.NewString("name")
	require.NoError(t, err)
	rec, err := typesystem.NewStruct("rec", x, name)
	require.NoError(t, err)

	o := typesystem.DefaultNew(rec)
	assert.Equal(t, int64(0), o.Fields()[0].Raw())
	assert.Equal(t, "", o.Fields()[1].Text())
}

func TestByteSizeReflectsActualStringLength(t *testing.T) {
	c, err := typesystem.NewString("name")
	require.NoError(t, err)
	short, err := typesystem.New(c, "a")
	require.NoError(t, err)
	long, err := typesystem.New(c, "abcdefgh")
	require.NoError(t, err)

	assert.Equal(t, uint64(5), short.ByteSize())
	assert.Equal(t, uint64(12), long.ByteSize())
}
