package mem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/mem"
)

func TestInitSuperblockThenReadRoundTrips(t *testing.T) {
	f := mem.NewFile(mem.NewMemDevice())

	sb, err := mem.InitSuperblock(f)
	require.NoError(t, err)
	assert.Equal(t, mem.SuperblockMagic, sb.Magic)
	assert.Equal(t, mem.NoPage, sb.FreeListHead)
	assert.Equal(t, mem.NoPage, sb.ClassListHead)
	assert.Equal(t, uint64(0), sb.ClassListCount)

	got, err := mem.ReadSuperblock(f)
	require.NoError(t, err)
	assert.Equal(t, sb, got)
}

func TestReadSuperblockRejectsBadMagic(t *testing.T) {
	f := mem.NewFile(mem.NewMemDevice())
	require.NoError(t, f.Grow(mem.PageSize))
	_, err := mem.WriteScalar[uint64](f, 0, 0x1234)
	require.NoError(t, err)

	_, err = mem.ReadSuperblock(f)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.StructureError))
}

func TestReadSuperblockRejectsTruncatedFile(t *testing.T) {
	f := mem.NewFile(mem.NewMemDevice())
	require.NoError(t, f.Grow(10))

	_, err := mem.ReadSuperblock(f)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.StructureError))
}

func TestSetClassListRoundTrip(t *testing.T) {
	f := mem.NewFile(mem.NewMemDevice())
	sb, err := mem.InitSuperblock(f)
	require.NoError(t, err)

	h := mem.PageListHead{Head: 1, Tail: 3, Count: 3}
	sb.SetClassList(h)
	assert.Equal(t, h, sb.ClassList())

	require.NoError(t, sb.Persist(f))
	got, err := mem.ReadSuperblock(f)
	require.NoError(t, err)
	assert.Equal(t, h, got.ClassList())
}
