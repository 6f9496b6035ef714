package typesystem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/typesystem"
)

func TestSerializePrimitive(t *testing.T) {
	c, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)
	assert.Equal(t, "_int@age_", typesystem.Serialize(c))
}

func TestSerializeString(t *testing.T) {
	c, err := typesystem.NewString("name")
	require.NoError(t, err)
	assert.Equal(t, "_string@name_", typesystem.Serialize(c))
}

func TestSerializeStruct(t *testing.T) {
	x, err := typesystem.NewPrimitive("x", typesystem.PDouble)
	require.NoError(t, err)
	y, err := typesystem.NewPrimitive("y", typesystem.PDouble)
	require.NoError(t, err)
	point, err := typesystem.NewStruct("point", x, y)
	require.NoError(t, err)

	assert.Equal(t, "_struct@point_<_double@x__double@y_>", typesystem.Serialize(point))
}

func TestSerializeRelation(t *testing.T) {
	x, err := typesystem.NewPrimitive("x", typesystem.PDouble)
	require.NoError(t, err)
	point, err := typesystem.NewStruct("point", x)
	require.NoError(t, err)
	edge, err := typesystem.NewRelation("edge", point, point)
	require.NoError(t, err)

	assert.Equal(t, "_relation@edge_<_struct@point_<_double@x_>_struct@point_<_double@x_>>", typesystem.Serialize(edge))
}

// Round-trip: for every class c, deserialize(serialize(c)) yields a class
// whose serialization equals serialize(c), per spec §8.
func TestParseSerializeRoundTrip(t *testing.T) {
	x, err := typesystem.NewPrimitive("x", typesystem.PDouble)
	require.NoError(t, err)
	y, err := typesystem.NewPrimitive("y", typesystem.PDouble)
	require.NoError(t, err)
	point, err := typesystem.NewStruct("point", x, y)
	require.NoError(t, err)
	weight, err := typesystem.NewPrimitive("weight", typesystem.PFloat)
	require.NoError(t, err)
	edge, err := typesystem.NewRelation("edge", point, point, weight)
	require.NoError(t, err)

	cases := []*typesystem.Class{x, y, point, edge}
	for _, c := range cases {
		text := typesystem.Serialize(c)
		parsed, err := typesystem.Parse(text)
		require.NoError(t, err)
		assert.Equal(t, text, typesystem.Serialize(parsed))
	}
}

func TestParseAllPrimitiveKinds(t *testing.T) {
	for name, kind := range map[string]typesystem.PrimitiveKind{
		"int":                 typesystem.PInt,
		"unsignedint":         typesystem.PUnsignedInt,
		"longlongint":         typesystem.PLongLongInt,
		"longlongunsignedint": typesystem.PLongLongUnsignedInt,
		"longunsignedint":     typesystem.PLongUnsignedInt,
		"longint":             typesystem.PLongInt,
		"shortint":            typesystem.PShortInt,
		"shortunsignedint":    typesystem.PShortUnsignedInt,
		"double":              typesystem.PDouble,
		"float":               typesystem.PFloat,
		"bool":                typesystem.PBool,
		"char":                typesystem.PChar,
		"signedchar":          typesystem.PSignedChar,
		"unsignedchar":        typesystem.PUnsignedChar,
		"wchar_t":             typesystem.PWCharT,
	} {
		c, err := typesystem.Parse("_" + name + "@v_")
		require.NoError(t, err, name)
		assert.Equal(t, kind, c.Primitive, name)
	}
}

func TestParseUnknownHeadIsTypeError(t *testing.T) {
	_, err := typesystem.Parse("_bogus@v_")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.TypeError))
}

func TestParseMalformedIsStructureError(t *testing.T) {
	_, err := typesystem.Parse("not a class at all @@@")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.StructureError))
}

func TestParsePrimitiveWithFieldsRejected(t *testing.T) {
	_, err := typesystem.Parse("_int@v_<_int@w_>")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.StructureError))
}

func TestParseRelationNeedsTwoEndpoints(t *testing.T) {
	_, err := typesystem.Parse("_relation@r_<_int@a_>")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.StructureError))
}
