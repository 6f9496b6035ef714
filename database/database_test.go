package database_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/database"
	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/nodestore"
	"github.com/mpiechota/classgraph/typesystem"
)

func TestOpenReadOnEmptyDeviceFailsStructureError(t *testing.T) {
	dev := mem.NewMemDevice()
	_, err := database.Open(dev, database.Read)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.StructureError) || errkind.Is(err, errkind.BadArgument))
}

func TestOpenDefaultRecoversFromEmptyDevice(t *testing.T) {
	dev := mem.NewMemDevice()
	db, err := database.Open(dev, database.Default)
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestOpenWriteReinitializesRegardlessOfContent(t *testing.T) {
	dev := mem.NewMemDevice()
	db1, err := database.Open(dev, database.Write)
	require.NoError(t, err)
	age, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)
	_, err = db1.AddClass(age)
	require.NoError(t, err)

	db2, err := database.Open(dev, database.Write)
	require.NoError(t, err)
	assert.False(t, db2.Contains(age))
}

// Insert, collect and remove primitives round trip through the database
// facade end to end, per spec §8's E2E scenarios 1 and 2.
func TestAddCollectAndRemoveNodes(t *testing.T) {
	db, err := database.Open(mem.NewMemDevice(), database.Write)
	require.NoError(t, err)

	age, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)
	_, err = db.AddClass(age)
	require.NoError(t, err)

	for _, v := range []int64{5, 10, 15} {
		o, err := typesystem.New(age, v)
		require.NoError(t, err)
		require.NoError(t, db.AddNode(o))
	}

	all, err := db.CollectNodesIf(age, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	removed, err := db.RemoveNodesIf(age, func(it *nodestore.Iterator) bool {
		obj, err := it.Read()
		require.NoError(t, err)
		return obj.Raw().(int64) == 10
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := db.CollectNodesIf(age, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	o, err := typesystem.New(age, int64(20))
	require.NoError(t, err)
	require.NoError(t, db.AddNode(o))

	remaining, err = db.CollectNodesIf(age, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestRemoveClassDropsStoreCache(t *testing.T) {
	db, err := database.Open(mem.NewMemDevice(), database.Write)
	require.NoError(t, err)

	age, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)
	_, err = db.AddClass(age)
	require.NoError(t, err)

	o, err := typesystem.New(age, int64(1))
	require.NoError(t, err)
	require.NoError(t, db.AddNode(o))

	require.NoError(t, db.RemoveClass(age))
	assert.False(t, db.Contains(age))

	_, err = db.AddClass(age)
	require.NoError(t, err)
	nodes, err := db.CollectNodesIf(age, nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestPrintAllClassesAndNodes(t *testing.T) {
	db, err := database.Open(mem.NewMemDevice(), database.Write)
	require.NoError(t, err)

	age, err := typesystem.NewPrimitive("age", typesystem.PInt)
	require.NoError(t, err)
	_, err = db.AddClass(age)
	require.NoError(t, err)

	o, err := typesystem.New(age, int64(7))
	require.NoError(t, err)
	require.NoError(t, db.AddNode(o))

	var classesBuf, nodesBuf bytes.Buffer
	require.NoError(t, db.PrintAllClasses(&classesBuf))
	assert.Equal(t, "_int@age_\n", classesBuf.String())

	require.NoError(t, db.PrintAllNodes(age, &nodesBuf))
	assert.Equal(t, "0: 7\n", nodesBuf.String())
}
