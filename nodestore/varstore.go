package nodestore

import (
	"github.com/mpiechota/classgraph/catalog"
	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/typesystem"
)

// VarStore is the variable-size node storage of spec §4.8, applicable
// whenever class.Size() is indeterminate (any class containing a String
// anywhere in its shape). Unlike ValStore, object ids are assigned from
// ClassHeader.NodeCountEver, a monotonic counter distinct from the live
// NodeCount, since a slot's position no longer derives an id the way a
// fixed stride does.
type VarStore struct {
	*store
}

// varSizeHintSize is sizeof(size_hint): the 4-byte slot-capacity field
// spec §4.8 places between a slot's id and its payload.
const varSizeHintSize uint64 = 4

type varOps struct {
	class *typesystem.Class
}

func newVarOps(class *typesystem.Class) (*varOps, error) {
	if _, ok := class.Size(); ok {
		return nil, errkind.Errorf(errkind.TypeError, "class %q is fixed-size, use ValStore", class.Name)
	}
	return &varOps{class: class}, nil
}

// SlotSize reads the slot's persisted size_hint to determine its total
// on-disk width; this works whether the slot is currently live or free,
// since freeing a slot never touches size_hint.
func (o *varOps) SlotSize(f *mem.File, page mem.PageIndex, offset uint16) (uint64, error) {
	hint, err := mem.ReadScalar[uint32](f, mem.GetOffset(page, offset+uint16(slotHeaderSize)))
	if err != nil {
		return 0, err
	}
	return slotHeaderSize + varSizeHintSize + uint64(hint), nil
}

func (o *varOps) NeededSize(obj *typesystem.ObjectValue) uint64 {
	return slotHeaderSize + varSizeHintSize + obj.ByteSize()
}

func (o *varOps) ExtraHeaderSize() uint64 { return varSizeHintSize }

func (o *varOps) WritePayload(f *mem.File, page mem.PageIndex, offset uint16, obj *typesystem.ObjectValue) (uint64, error) {
	if _, err := obj.Write(f, mem.GetOffset(page, offset)); err != nil {
		return 0, err
	}
	return slotHeaderSize + varSizeHintSize + obj.ByteSize(), nil
}

func (o *varOps) ReadPayload(f *mem.File, page mem.PageIndex, offset uint16) (*typesystem.ObjectValue, error) {
	obj, _, err := typesystem.Read(f, o.class, mem.GetOffset(page, offset))
	return obj, err
}

// NewVarStore opens a variable-size node-storage view over header.
func NewVarStore(f *mem.File, alloc *mem.Allocator, cat *catalog.Storage, header *catalog.ClassHeader, class *typesystem.Class, logger logx.Logger) (*VarStore, error) {
	ops, err := newVarOps(class)
	if err != nil {
		return nil, err
	}
	return &VarStore{store: newStore(f, alloc, cat, header, class, ops, logger)}, nil
}

// Begin returns an iterator to the first live node.
func (v *VarStore) Begin() (*Iterator, error) { return v.store.begin() }

// End returns the end sentinel.
func (v *VarStore) End() (*Iterator, error) { return v.store.end(), nil }

// VisitNodes calls fn with the id and decoded object of every live node
// matching pred.
func (v *VarStore) VisitNodes(pred func(*Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error {
	return v.store.VisitNodes(pred, fn)
}

// RemoveNodesIf removes every live node matching pred and returns the count removed.
func (v *VarStore) RemoveNodesIf(pred func(*Iterator) bool) (int, error) {
	return v.store.RemoveNodesIf(pred)
}

// Drop frees all data pages and resets the class's node count to zero. It
// does not reset NodeCountEver, so ids already handed out are never
// reissued even across a Drop.
func (v *VarStore) Drop() error { return v.store.Drop() }

// AddNode persists obj, per the first-fit algorithm of spec §4.8: it
// first looks for a free-listed slot anywhere in the class's page list
// whose recorded capacity is large enough to reuse, then for any page
// with enough spare initialized_offset room to carve a fresh slot, and
// only allocates a new page when neither exists.
func (v *VarStore) AddNode(obj *typesystem.ObjectValue) error {
	ops := v.ops.(*varOps)
	needed := ops.NeededSize(obj)
	payloadSize := obj.ByteSize()
	if needed+mem.HeaderSize > mem.PageSize {
		return errkind.Errorf(errkind.NotImplemented, "class %q's object is too large for a page (var storage)", v.class.Name)
	}

	list := v.header.DataPageList
	if list.Count == 0 {
		idx, err := mem.PushBack(v.f, v.alloc, &list)
		if err != nil {
			return err
		}
		v.header.DataPageList = list
		return v.addToFreshPage(idx, obj, payloadSize)
	}

	pages, err := mem.Pages(v.f, v.header.DataPageList)
	if err != nil {
		return err
	}

	for _, page := range pages {
		pageHeader, err := mem.ReadPageHeader(v.f, page)
		if err != nil {
			return err
		}
		offset, ok, err := v.popFreeFit(page, &pageHeader, needed)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		id := v.header.NodeCountEver
		if err := v.writeReusedSlot(page, offset, id, obj); err != nil {
			return err
		}
		if err := mem.WritePageHeader(v.f, page, pageHeader); err != nil {
			return err
		}
		v.header.NodeCount++
		v.header.NodeCountEver++
		return v.cat.SaveHeader(v.header)
	}

	for _, page := range pages {
		pageHeader, err := mem.ReadPageHeader(v.f, page)
		if err != nil {
			return err
		}
		if uint64(pageHeader.InitializedOffset)+needed > mem.PageSize {
			continue
		}
		offset := pageHeader.InitializedOffset
		id := v.header.NodeCountEver
		if err := v.writeFreshSlot(page, offset, id, obj, payloadSize); err != nil {
			return err
		}
		if pageHeader.FreeOffset == pageHeader.InitializedOffset {
			pageHeader.FreeOffset += uint16(needed)
		}
		pageHeader.InitializedOffset += uint16(needed)
		if err := mem.WritePageHeader(v.f, page, pageHeader); err != nil {
			return err
		}
		v.header.NodeCount++
		v.header.NodeCountEver++
		return v.cat.SaveHeader(v.header)
	}

	newList := v.header.DataPageList
	idx, err := mem.PushBack(v.f, v.alloc, &newList)
	if err != nil {
		return err
	}
	v.header.DataPageList = newList
	return v.addToFreshPage(idx, obj, payloadSize)
}

func (v *VarStore) addToFreshPage(page mem.PageIndex, obj *typesystem.ObjectValue, payloadSize uint64) error {
	ops := v.ops.(*varOps)
	pageHeader, err := mem.ReadPageHeader(v.f, page)
	if err != nil {
		return err
	}
	offset := pageHeader.InitializedOffset
	id := v.header.NodeCountEver
	if err := v.writeFreshSlot(page, offset, id, obj, payloadSize); err != nil {
		return err
	}
	pageHeader.InitializedOffset += uint16(ops.NeededSize(obj))
	pageHeader.FreeOffset = pageHeader.InitializedOffset
	if err := mem.WritePageHeader(v.f, page, pageHeader); err != nil {
		return err
	}
	v.header.NodeCount++
	v.header.NodeCountEver++
	return v.cat.SaveHeader(v.header)
}

// popFreeFit scans page's free-slot chain for the first entry whose
// recorded capacity is at least needed, unlinks it from the chain (fixing
// up either the previous entry's next pointer or pageHeader.FreeOffset),
// and returns its offset. ok is false if no entry in the chain fits;
// the chain itself is left untouched in that case. Reused slots are never
// split, so first-fit here trades some internal fragmentation for a
// simple singly-linked free list, matching spec §4.8's literal fit test.
func (v *VarStore) popFreeFit(page mem.PageIndex, pageHeader *mem.PageHeader, needed uint64) (uint16, bool, error) {
	ops := v.ops.(*varOps)
	var prev uint16
	hasPrev := false
	cur := pageHeader.FreeOffset

	for cur != pageHeader.InitializedOffset {
		size, err := ops.SlotSize(v.f, page, cur)
		if err != nil {
			return 0, false, err
		}
		nextRaw, err := v.readFreeNext(page, cur)
		if err != nil {
			return 0, false, err
		}

		if size >= needed {
			if hasPrev {
				next := mem.NoOffset
				if nextRaw != uint32(mem.NoOffset) {
					next = uint16(nextRaw)
				}
				if err := v.writeFreeNext(page, prev, next); err != nil {
					return 0, false, err
				}
			} else if nextRaw == uint32(mem.NoOffset) {
				pageHeader.FreeOffset = pageHeader.InitializedOffset
			} else {
				pageHeader.FreeOffset = uint16(nextRaw)
			}
			return cur, true, nil
		}

		prev = cur
		hasPrev = true
		if nextRaw == uint32(mem.NoOffset) {
			cur = pageHeader.InitializedOffset
		} else {
			cur = uint16(nextRaw)
		}
	}
	return 0, false, nil
}

// writeFreshSlot carves a never-before-used slot, establishing its
// size_hint capacity for as long as it lives (including future first-fit
// reuse after being freed).
func (v *VarStore) writeFreshSlot(page mem.PageIndex, offset uint16, id uint64, obj *typesystem.ObjectValue, payloadSize uint64) error {
	base := mem.GetOffset(page, offset)
	off, err := mem.WriteScalar(v.f, base, v.magic())
	if err != nil {
		return err
	}
	if off, err = mem.WriteScalar(v.f, off, id); err != nil {
		return err
	}
	if _, err = mem.WriteScalar(v.f, off, uint32(payloadSize)); err != nil {
		return err
	}
	if _, err := v.ops.WritePayload(v.f, page, v.payloadOffset(offset), obj); err != nil {
		return err
	}
	return nil
}

// writeReusedSlot writes into a slot recovered from a page's free-slot
// chain, leaving its size_hint capacity exactly as it was.
func (v *VarStore) writeReusedSlot(page mem.PageIndex, offset uint16, id uint64, obj *typesystem.ObjectValue) error {
	base := mem.GetOffset(page, offset)
	off, err := mem.WriteScalar(v.f, base, v.magic())
	if err != nil {
		return err
	}
	if _, err = mem.WriteScalar(v.f, off, id); err != nil {
		return err
	}
	if _, err := v.ops.WritePayload(v.f, page, v.payloadOffset(offset), obj); err != nil {
		return err
	}
	return nil
}
