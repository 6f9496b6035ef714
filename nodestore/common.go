// Package nodestore implements the two node-storage variants of spec
// §4.6-4.9: ValStore for classes with a statically-known size and
// VarStore for classes whose size depends on their content (any class
// containing a String). Both satisfy the NodeStore interface, matching
// design note §9's "run-time branch on class.size().is_some()" in place
// of the source's template dispatch. Grounded on
// original_source/src/db_struct/const_node_storage.hpp for the slot/tag
// discipline, generalized into a shared walk so Val and Var differ only
// in how a slot's width and payload are computed (slotOps below).
package nodestore

import (
	"github.com/mpiechota/classgraph/catalog"
	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/typesystem"
)

// slotHeaderSize is sizeof(tag) + sizeof(id), common to every slot
// regardless of storage variant.
const slotHeaderSize uint64 = 8 + 8

// slotOps is what differs between Val and Var storage: how wide a slot
// is, and how to write/read the object it carries.
type slotOps interface {
	// SlotSize returns the total byte width (tag+id+anything else+payload)
	// of the slot at (page, offset), whether it is currently free or live.
	SlotSize(f *mem.File, page mem.PageIndex, offset uint16) (uint64, error)
	// NeededSize returns the slot width required to store obj.
	NeededSize(obj *typesystem.ObjectValue) uint64
	// ExtraHeaderSize is the number of bytes between the slot's id field
	// and its payload (0 for Val, 4 for Var's size_hint).
	ExtraHeaderSize() uint64
	// WritePayload writes obj's payload (everything after tag+id+extra)
	// at offset and returns the slot's total width.
	WritePayload(f *mem.File, page mem.PageIndex, offset uint16, obj *typesystem.ObjectValue) (uint64, error)
	// ReadPayload decodes the object stored at offset's payload region.
	ReadPayload(f *mem.File, page mem.PageIndex, offset uint16) (*typesystem.ObjectValue, error)
}

// NodeStore is the common interface both storage variants implement,
// per spec §4.6 and design note §9.
type NodeStore interface {
	Begin() (*Iterator, error)
	End() (*Iterator, error)
	AddNode(obj *typesystem.ObjectValue) error
	RemoveNodesIf(pred func(*Iterator) bool) (int, error)
	VisitNodes(pred func(*Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error
	Drop() error
}

// store is the shared engine behind ValStore and VarStore.
type store struct {
	f      *mem.File
	alloc  *mem.Allocator
	cat    *catalog.Storage
	header *catalog.ClassHeader
	class  *typesystem.Class
	ops    slotOps
	logger logx.Logger
}

func newStore(f *mem.File, alloc *mem.Allocator, cat *catalog.Storage, header *catalog.ClassHeader, class *typesystem.Class, ops slotOps, logger logx.Logger) *store {
	if logger == nil {
		logger = logx.Nop()
	}
	return &store{f: f, alloc: alloc, cat: cat, header: header, class: class, ops: ops, logger: logger}
}

func (s *store) magic() uint64 { return s.header.Magic }

func (s *store) readTag(page mem.PageIndex, offset uint16) (uint64, error) {
	return mem.ReadScalar[uint64](s.f, mem.GetOffset(page, offset))
}

func (s *store) isLive(page mem.PageIndex, offset uint16) (bool, error) {
	tag, err := s.readTag(page, offset)
	if err != nil {
		return false, err
	}
	switch tag {
	case s.magic():
		return true, nil
	case ^s.magic():
		return false, nil
	default:
		return false, errkind.Errorf(errkind.RuntimeError, "slot at page %d offset %d has neither live nor free tag", page, offset)
	}
}

// payloadOffset returns the in-page offset of slot's payload region,
// skipping tag, id and any variant-specific extra header.
func (s *store) payloadOffset(offset uint16) uint16 {
	return offset + uint16(slotHeaderSize) + uint16(s.ops.ExtraHeaderSize())
}

func (s *store) readFreeNext(page mem.PageIndex, offset uint16) (uint32, error) {
	return mem.ReadScalar[uint32](s.f, mem.GetOffset(page, s.payloadOffset(offset)))
}

func (s *store) writeFreeNext(page mem.PageIndex, offset uint16, next uint16) error {
	var encoded uint32 = uint32(mem.NoOffset)
	if next != mem.NoOffset {
		encoded = uint32(next)
	}
	_, err := mem.WriteScalar(s.f, mem.GetOffset(page, s.payloadOffset(offset)), encoded)
	return err
}

// endID is the id of the end sentinel; no stored node id reaches it.
const endID = ^uint64(0)

// readID returns the id stored in the slot at (page, offset).
func (s *store) readID(page mem.PageIndex, offset uint16) (uint64, error) {
	return mem.ReadScalar[uint64](s.f, mem.GetOffset(page, offset)+8)
}

// Iterator walks live slots in physical order: page-list order, then
// in-page offset. For ValStore that is ascending id order; a VarStore slot
// reused after a removal keeps its physical place, so its ids need not
// ascend.
type Iterator struct {
	s      *store
	page   mem.PageIndex
	offset uint16
	id     uint64
	end    uint64
}

// Id returns the iterator's current node id.
func (it *Iterator) Id() uint64 { return it.id }

// InPageOffset returns the current slot's offset within its page.
func (it *Iterator) InPageOffset() uint16 { return it.offset }

// Page returns the current slot's page.
func (it *Iterator) Page() mem.PageIndex { return it.page }

// AtEnd reports whether it is the end sentinel.
func (it *Iterator) AtEnd() bool { return it.id >= it.end }

// Read decodes the object at the iterator's current position.
func (it *Iterator) Read() (*typesystem.ObjectValue, error) {
	if it.AtEnd() {
		return nil, errkind.Errorf(errkind.RuntimeError, "read past end")
	}
	return it.s.ops.ReadPayload(it.s.f, it.page, it.s.payloadOffset(it.offset))
}

// Equal reports whether it and other address the same node.
func (it *Iterator) Equal(other *Iterator) bool { return it.id == other.id }

func (s *store) begin() (*Iterator, error) {
	it := &Iterator{s: s, page: s.header.DataPageList.Head, offset: uint16(mem.HeaderSize), id: 0, end: endID}
	if it.page == mem.NoPage || s.header.NodeCount == 0 {
		it.id = it.end
		return it, nil
	}
	live, err := s.isLive(it.page, it.offset)
	if err != nil {
		return nil, err
	}
	if live {
		if it.id, err = s.readID(it.page, it.offset); err != nil {
			return nil, err
		}
		return it, nil
	}
	if err := it.advance(); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *store) end() *Iterator {
	return &Iterator{s: s, page: mem.NoPage, offset: 0, id: endID, end: endID}
}

// advance moves it to the next live slot, or to the end sentinel.
func (it *Iterator) advance() error {
	size, err := it.s.ops.SlotSize(it.s.f, it.page, it.offset)
	if err != nil {
		return err
	}
	it.offset += uint16(size)
	for {
		pageHeader, err := mem.ReadPageHeader(it.s.f, it.page)
		if err != nil {
			return err
		}
		if uint64(it.offset) >= uint64(pageHeader.InitializedOffset) {
			it.page = pageHeader.NextPageIndex
			it.offset = uint16(mem.HeaderSize)
			if it.page == mem.NoPage {
				it.id = it.end
				return nil
			}
			continue
		}

		live, err := it.s.isLive(it.page, it.offset)
		if err != nil {
			return err
		}
		if live {
			it.id, err = it.s.readID(it.page, it.offset)
			return err
		}
		size, err := it.s.ops.SlotSize(it.s.f, it.page, it.offset)
		if err != nil {
			return err
		}
		it.offset += uint16(size)
	}
}

// Next advances it to the following live node.
func (it *Iterator) Next() error {
	if it.AtEnd() {
		return nil
	}
	return it.advance()
}

// Prev moves it to the preceding live node. At id == 0 it is a no-op,
// per spec §4.9.
func (it *Iterator) Prev() error {
	if it.id == 0 {
		return nil
	}

	if it.AtEnd() {
		// Re-enter from the tail page and scan for the last live slot.
		page := it.findTailPage()
		lastPage, lastOffset, err := it.s.lastLiveInOrBefore(page, 0)
		if err != nil {
			return err
		}
		it.page, it.offset = lastPage, lastOffset
		it.id, err = it.s.readID(lastPage, lastOffset)
		return err
	}

	lastPage, lastOffset, err := it.s.lastLiveBefore(it.page, it.offset)
	if err != nil {
		return err
	}
	it.page, it.offset = lastPage, lastOffset
	it.id, err = it.s.readID(lastPage, lastOffset)
	return err
}

func (it *Iterator) findTailPage() mem.PageIndex {
	page := it.s.header.DataPageList.Tail
	return page
}

// lastLiveBefore scans page from its start up to (not including) offset
// looking for the last live slot; if none, it moves to the previous page
// and scans it in full.
func (s *store) lastLiveBefore(page mem.PageIndex, offset uint16) (mem.PageIndex, uint16, error) {
	p, o, found, err := s.scanPageForLastLiveBefore(page, offset)
	if err != nil {
		return 0, 0, err
	}
	if found {
		return p, o, nil
	}
	header, err := mem.ReadPageHeader(s.f, page)
	if err != nil {
		return 0, 0, err
	}
	if header.PrevPageIndex == mem.NoPage {
		return 0, 0, errkind.Errorf(errkind.RuntimeError, "no live predecessor found")
	}
	return s.lastLiveInOrBefore(header.PrevPageIndex, 0)
}

// lastLiveInOrBefore scans page in full (ignoring the bound) and, if it
// finds nothing live, recurses into the previous page.
func (s *store) lastLiveInOrBefore(page mem.PageIndex, _ uint16) (mem.PageIndex, uint16, error) {
	header, err := mem.ReadPageHeader(s.f, page)
	if err != nil {
		return 0, 0, err
	}
	p, o, found, err := s.scanPageForLastLiveBefore(page, uint16(mem.PageSize))
	if err != nil {
		return 0, 0, err
	}
	if found {
		return p, o, nil
	}
	if header.PrevPageIndex == mem.NoPage {
		return 0, 0, errkind.Errorf(errkind.RuntimeError, "no live predecessor found")
	}
	return s.lastLiveInOrBefore(header.PrevPageIndex, 0)
}

// scanPageForLastLiveBefore walks page from its first slot, returning the
// last live slot strictly before bound.
func (s *store) scanPageForLastLiveBefore(page mem.PageIndex, bound uint16) (mem.PageIndex, uint16, bool, error) {
	header, err := mem.ReadPageHeader(s.f, page)
	if err != nil {
		return 0, 0, false, err
	}
	limit := header.InitializedOffset
	if bound < limit {
		limit = bound
	}

	offset := uint16(mem.HeaderSize)
	var lastLive uint16
	found := false
	for uint64(offset) < uint64(limit) {
		live, err := s.isLive(page, offset)
		if err != nil {
			return 0, 0, false, err
		}
		if live {
			lastLive = offset
			found = true
		}
		size, err := s.ops.SlotSize(s.f, page, offset)
		if err != nil {
			return 0, 0, false, err
		}
		offset += uint16(size)
	}
	return page, lastLive, found, nil
}

// VisitNodes calls fn for every live node matching pred.
func (s *store) VisitNodes(pred func(*Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error {
	it, err := s.begin()
	if err != nil {
		return err
	}
	end := s.end()
	for !it.Equal(end) {
		if pred == nil || pred(it) {
			obj, err := it.Read()
			if err != nil {
				return err
			}
			fn(it.Id(), obj)
		}
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNodesIf flips the tag and free-threads every live node matching
// pred, and returns the number removed.
func (s *store) RemoveNodesIf(pred func(*Iterator) bool) (int, error) {
	it, err := s.begin()
	if err != nil {
		return 0, err
	}
	end := s.end()
	removed := 0
	for !it.Equal(end) {
		match := pred == nil || pred(it)
		page, offset := it.page, it.offset
		if err := it.Next(); err != nil {
			return removed, err
		}
		if match {
			if err := s.free(page, offset); err != nil {
				return removed, err
			}
			removed++
		}
	}
	s.header.NodeCount -= uint64(removed)
	if err := s.cat.SaveHeader(s.header); err != nil {
		return removed, err
	}
	return removed, nil
}

// free flips the tag at (page, offset) and threads it onto the head of
// the page's free-slot chain, per spec §4.6/§4.7. The page's free list is
// empty exactly when FreeOffset == InitializedOffset; only the chain's
// oldest entry carries the out-of-range NoOffset terminal.
func (s *store) free(page mem.PageIndex, offset uint16) error {
	pageHeader, err := mem.ReadPageHeader(s.f, page)
	if err != nil {
		return err
	}
	if _, err := mem.WriteScalar(s.f, mem.GetOffset(page, offset), ^s.magic()); err != nil {
		return err
	}

	next := mem.NoOffset
	if pageHeader.FreeOffset != pageHeader.InitializedOffset {
		next = pageHeader.FreeOffset
	}
	if err := s.writeFreeNext(page, offset, next); err != nil {
		return err
	}
	pageHeader.FreeOffset = offset
	return mem.WritePageHeader(s.f, page, pageHeader)
}

// popFree pops the head of page's free-slot chain, if any, and returns
// its offset. ok is false if the chain is empty.
func (s *store) popFree(page mem.PageIndex, pageHeader *mem.PageHeader) (uint16, bool, error) {
	if pageHeader.FreeOffset == pageHeader.InitializedOffset {
		return 0, false, nil
	}
	offset := pageHeader.FreeOffset
	next, err := s.readFreeNext(page, offset)
	if err != nil {
		return 0, false, err
	}
	if next == uint32(mem.NoOffset) {
		pageHeader.FreeOffset = pageHeader.InitializedOffset
	} else {
		pageHeader.FreeOffset = uint16(next)
	}
	return offset, true, nil
}

// Drop frees every data page of the class and resets its header.
func (s *store) Drop() error {
	list := s.header.DataPageList
	if err := mem.FreePageList(s.f, s.alloc, &list); err != nil {
		return err
	}
	s.header.DataPageList = list
	s.header.NodeCount = 0
	return s.cat.SaveHeader(s.header)
}
