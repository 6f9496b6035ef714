package mem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
)

func newAllocator(t *testing.T) (*mem.File, *mem.Superblock, *mem.Allocator) {
	f := mem.NewFile(mem.NewMemDevice())
	sb, err := mem.InitSuperblock(f)
	require.NoError(t, err)
	return f, sb, mem.NewAllocator(f, sb, logx.Nop())
}

func TestAllocateGrowsFileWhenFreeListEmpty(t *testing.T) {
	f, sb, alloc := newAllocator(t)

	idx, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, mem.PageIndex(1), idx)
	assert.Equal(t, uint64(2), sb.PagesCount)

	h, err := mem.ReadPageHeader(f, idx)
	require.NoError(t, err)
	assert.Equal(t, mem.PageData, h.Type)
	assert.Equal(t, uint16(mem.HeaderSize), h.FreeOffset)
	assert.Equal(t, uint16(mem.HeaderSize), h.InitializedOffset)
	assert.Equal(t, mem.NoPage, h.PrevPageIndex)
	assert.Equal(t, mem.NoPage, h.NextPageIndex)
}

func TestFreeThenAllocateReusesHeadOfFreeList(t *testing.T) {
	_, sb, alloc := newAllocator(t)

	a, err := alloc.Allocate()
	require.NoError(t, err)
	b, err := alloc.Allocate()
	require.NoError(t, err)

	require.NoError(t, alloc.Free(a))
	assert.Equal(t, a, sb.FreeListHead)

	reused, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, a, reused)
	assert.Equal(t, mem.NoPage, sb.FreeListHead)

	_ = b
}

func TestSwapExchangesContentsAndFixesNeighborLinks(t *testing.T) {
	f, _, alloc := newAllocator(t)

	h := mem.NewPageListHead()
	first, err := mem.PushBack(f, alloc, &h)
	require.NoError(t, err)
	second, err := mem.PushBack(f, alloc, &h)
	require.NoError(t, err)
	third, err := mem.PushBack(f, alloc, &h)
	require.NoError(t, err)

	_, err = mem.WriteScalar[uint64](f, mem.GetOffset(second, uint16(mem.HeaderSize)), 0xABCD)
	require.NoError(t, err)

	spare, err := alloc.Allocate()
	require.NoError(t, err)

	require.NoError(t, alloc.Swap(second, spare))

	moved, err := mem.ReadScalar[uint64](f, mem.GetOffset(spare, uint16(mem.HeaderSize)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xABCD), moved)

	firstHeader, err := mem.ReadPageHeader(f, first)
	require.NoError(t, err)
	assert.Equal(t, spare, firstHeader.NextPageIndex)

	thirdHeader, err := mem.ReadPageHeader(f, third)
	require.NoError(t, err)
	assert.Equal(t, spare, thirdHeader.PrevPageIndex)
}

func TestFreePageListResetsToEmpty(t *testing.T) {
	f, sb, alloc := newAllocator(t)

	h := mem.NewPageListHead()
	_, err := mem.PushBack(f, alloc, &h)
	require.NoError(t, err)
	_, err = mem.PushBack(f, alloc, &h)
	require.NoError(t, err)
	require.Equal(t, uint64(2), h.Count)

	require.NoError(t, mem.FreePageList(f, alloc, &h))
	assert.Equal(t, mem.NewPageListHead(), h)
	assert.NotEqual(t, mem.NoPage, sb.FreeListHead)
}
