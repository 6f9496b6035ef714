package nodestore

import (
	"github.com/mpiechota/classgraph/catalog"
	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/typesystem"
)

// ValStore is the fixed-size node storage of spec §4.7, applicable
// whenever class.Size() is determinate.
type ValStore struct {
	*store
}

type valOps struct {
	class       *typesystem.Class
	payloadSize uint64 // class.Size(), padded to at least 4 bytes for the free-list pointer
}

// minFreePointerWidth is the width of the in-place free-list pointer
// spec §4.6 threads through a freed slot's payload.
const minFreePointerWidth uint64 = 4

func newValOps(class *typesystem.Class) (*valOps, error) {
	size, ok := class.Size()
	if !ok {
		return nil, errkind.Errorf(errkind.TypeError, "class %q is not fixed-size", class.Name)
	}
	payload := size
	if payload < minFreePointerWidth {
		payload = minFreePointerWidth
	}
	return &valOps{class: class, payloadSize: payload}, nil
}

func (o *valOps) slotSize() uint64 { return slotHeaderSize + o.payloadSize }

func (o *valOps) SlotSize(_ *mem.File, _ mem.PageIndex, _ uint16) (uint64, error) {
	return o.slotSize(), nil
}

func (o *valOps) NeededSize(_ *typesystem.ObjectValue) uint64 { return o.slotSize() }

func (o *valOps) ExtraHeaderSize() uint64 { return 0 }

func (o *valOps) WritePayload(f *mem.File, page mem.PageIndex, offset uint16, obj *typesystem.ObjectValue) (uint64, error) {
	if _, err := obj.Write(f, mem.GetOffset(page, offset)); err != nil {
		return 0, err
	}
	return o.slotSize(), nil
}

func (o *valOps) ReadPayload(f *mem.File, page mem.PageIndex, offset uint16) (*typesystem.ObjectValue, error) {
	obj, _, err := typesystem.Read(f, o.class, mem.GetOffset(page, offset))
	return obj, err
}

// NewValStore opens a fixed-size node-storage view over header.
func NewValStore(f *mem.File, alloc *mem.Allocator, cat *catalog.Storage, header *catalog.ClassHeader, class *typesystem.Class, logger logx.Logger) (*ValStore, error) {
	ops, err := newValOps(class)
	if err != nil {
		return nil, err
	}
	if ops.slotSize()+mem.HeaderSize > mem.PageSize {
		return nil, errkind.Errorf(errkind.NotImplemented, "class %q's object is too large for a page (val storage)", class.Name)
	}
	return &ValStore{store: newStore(f, alloc, cat, header, class, ops, logger)}, nil
}

// Begin returns an iterator to the first live node.
func (v *ValStore) Begin() (*Iterator, error) { return v.store.begin() }

// End returns the end sentinel.
func (v *ValStore) End() (*Iterator, error) { return v.store.end(), nil }

// VisitNodes calls fn with the id and decoded object of every live node
// matching pred.
func (v *ValStore) VisitNodes(pred func(*Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error {
	return v.store.VisitNodes(pred, fn)
}

// RemoveNodesIf removes every live node matching pred and returns the count removed.
func (v *ValStore) RemoveNodesIf(pred func(*Iterator) bool) (int, error) {
	return v.store.RemoveNodesIf(pred)
}

// Drop frees all data pages and resets the class's node count to zero.
func (v *ValStore) Drop() error { return v.store.Drop() }

// AddNode persists obj, per the algorithm of spec §4.7.
func (v *ValStore) AddNode(obj *typesystem.ObjectValue) error {
	ops := v.ops.(*valOps)
	list := v.header.DataPageList

	if list.Count == 0 {
		idx, err := mem.PushBack(v.f, v.alloc, &list)
		if err != nil {
			return err
		}
		v.header.DataPageList = list
		_ = idx
	}

	tail := v.header.DataPageList.Tail
	pageHeader, err := mem.ReadPageHeader(v.f, tail)
	if err != nil {
		return err
	}

	slotOffset, reused, err := v.popFree(tail, &pageHeader)
	if err != nil {
		return err
	}
	if !reused {
		if uint64(pageHeader.InitializedOffset)+ops.slotSize() > mem.PageSize {
			newList := v.header.DataPageList
			idx, err := mem.PushBack(v.f, v.alloc, &newList)
			if err != nil {
				return err
			}
			v.header.DataPageList = newList
			return v.addToFreshPage(idx, obj)
		}
		slotOffset = pageHeader.InitializedOffset
		pageHeader.InitializedOffset += uint16(ops.slotSize())
		pageHeader.FreeOffset = pageHeader.InitializedOffset
	}

	id, err := v.derivedID(tail, slotOffset, ops)
	if err != nil {
		return err
	}
	if err := v.writeSlot(tail, slotOffset, id, obj); err != nil {
		return err
	}
	if err := mem.WritePageHeader(v.f, tail, pageHeader); err != nil {
		return err
	}

	v.header.NodeCount++
	return v.cat.SaveHeader(v.header)
}

func (v *ValStore) addToFreshPage(page mem.PageIndex, obj *typesystem.ObjectValue) error {
	ops := v.ops.(*valOps)
	pageHeader, err := mem.ReadPageHeader(v.f, page)
	if err != nil {
		return err
	}
	slotOffset := pageHeader.InitializedOffset
	id, err := v.derivedID(page, slotOffset, ops)
	if err != nil {
		return err
	}
	if err := v.writeSlot(page, slotOffset, id, obj); err != nil {
		return err
	}
	pageHeader.InitializedOffset += uint16(ops.slotSize())
	pageHeader.FreeOffset = pageHeader.InitializedOffset
	if err := mem.WritePageHeader(v.f, page, pageHeader); err != nil {
		return err
	}
	v.header.NodeCount++
	return v.cat.SaveHeader(v.header)
}

// derivedID computes id = page_ordinal*nodes_per_page + in_page_index,
// per spec §4.7.
func (v *ValStore) derivedID(page mem.PageIndex, offset uint16, ops *valOps) (uint64, error) {
	nodesPerPage := (mem.PageSize - mem.HeaderSize) / ops.slotSize()
	pages, err := mem.Pages(v.f, v.header.DataPageList)
	if err != nil {
		return 0, err
	}
	var ordinal uint64
	for i, p := range pages {
		if p == page {
			ordinal = uint64(i)
			break
		}
	}
	inPageIndex := (uint64(offset) - mem.HeaderSize) / ops.slotSize()
	return ordinal*nodesPerPage + inPageIndex, nil
}

func (v *ValStore) writeSlot(page mem.PageIndex, offset uint16, id uint64, obj *typesystem.ObjectValue) error {
	base := mem.GetOffset(page, offset)
	off, err := mem.WriteScalar(v.f, base, v.magic())
	if err != nil {
		return err
	}
	if _, err := mem.WriteScalar(v.f, off, id); err != nil {
		return err
	}
	if _, err := v.ops.WritePayload(v.f, page, v.payloadOffset(offset), obj); err != nil {
		return err
	}
	return nil
}
