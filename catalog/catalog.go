// Package catalog implements the class catalog of spec §4.4: a page list
// rooted in the superblock holding one ClassHeader plus a length-prefixed
// serialized descriptor per registered class. Grounded on
// original_source/src/db_struct/class_storage.hpp's responsibilities and
// on the teacher's objectstore.ObjectStore for the catalog-as-a-dedicated-
// page-list shape, generalized from its open-addressing hash trie to the
// simpler append-only record layout spec §4.4/§6.2 calls for.
package catalog

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/outofforest/photon"

	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/typesystem"
)

// classHeaderSize is sizeof(ClassHeader): magic(8) + free_offset(2) +
// index(8) + data_list_head(8) + data_list_tail(8) + data_list_count(8) +
// node_count(8) + node_count_ever(8).
const classHeaderSize uint64 = 8 + 2 + 8 + 8 + 8 + 8 + 8 + 8

// ClassHeader is the per-class catalog record, per spec §4.4/§6.2. Beyond
// the fields spec §6.2 enumerates, NodeCountEver persists the monotonic
// id counter spec §4.8 requires for variable-size storage's id assignment
// (distinct from NodeCount, the live count); there is no other durable
// home for it. See DESIGN.md.
type ClassHeader struct {
	Magic         uint64
	FreeOffset    uint16 // written as mem.NoOffset and not updated; the catalog page's InitializedOffset marks its first free byte
	Index         mem.PageIndex
	DataPageList  mem.PageListHead
	NodeCount     uint64
	NodeCountEver uint64

	// catalog-internal bookkeeping, not persisted as part of ClassHeader
	// itself: where the header and the descriptor bytes following it live.
	page   mem.PageIndex
	offset uint64 // absolute file offset of this header's first byte
}

// NewMagic returns a fresh, unpredictable 64-bit value for use as a new
// class's liveness tag, per spec §9 ("pick magic... from a sufficiently
// wide PRNG"). It seeds a random UUIDv4, views its 16 bytes through
// photon the way the teacher's ComputeChecksum views a block, and folds
// the halves together with xxhash.
func NewMagic() uint64 {
	id := uuid.New()
	raw := [16]byte(id)
	halves := photon.NewFromBytes[[2]uint64](raw[:])
	return xxhash.Sum64(raw[:]) ^ halves.V[0] ^ (halves.V[1] * 0x9E3779B97F4A7C15)
}

// Storage is the class catalog: a page list rooted in the superblock,
// per spec §4.4.
type Storage struct {
	f      *mem.File
	sb     *mem.Superblock
	alloc  *mem.Allocator
	logger logx.Logger
}

// New returns a catalog view over sb's class-list page list.
func New(f *mem.File, sb *mem.Superblock, alloc *mem.Allocator, logger logx.Logger) *Storage {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Storage{f: f, sb: sb, alloc: alloc, logger: logger}
}

// AddClass persists a class descriptor and returns its fresh ClassHeader.
// Fails with AlreadyExists if an equal descriptor is already registered.
func (s *Storage) AddClass(class *typesystem.Class) (*ClassHeader, error) {
	if _, err := s.Find(class); err == nil {
		return nil, errkind.Errorf(errkind.AlreadyExists, "class %q already registered", class.Name)
	} else if !errkind.Is(err, errkind.NotFound) {
		return nil, err
	}

	text := typesystem.Serialize(class)
	need := recordSize(len(text))

	list := s.sb.ClassList()
	page, offset, err := s.reserveRecordSpace(&list, need)
	if err != nil {
		return nil, err
	}

	header := &ClassHeader{
		Magic:         NewMagic(),
		FreeOffset:    mem.NoOffset,
		Index:         page,
		DataPageList:  mem.NewPageListHead(),
		NodeCount:     0,
		NodeCountEver: 0,
		page:          page,
		offset:        offset,
	}
	if err := s.writeRecord(header, text); err != nil {
		return nil, err
	}

	s.sb.SetClassList(list)
	if err := s.sb.Persist(s.f); err != nil {
		return nil, err
	}

	s.logger.Info("class registered", "class", class.Name, "magic", header.Magic)
	return header, nil
}

// reserveRecordSpace grows the tail page of the catalog's list (allocating
// a fresh one if the list is empty or the record would not fit) and
// returns the page and absolute offset the record should be written at.
func (s *Storage) reserveRecordSpace(list *mem.PageListHead, recordSize uint64) (mem.PageIndex, uint64, error) {
	if list.Count == 0 {
		idx, err := mem.PushBack(s.f, s.alloc, list)
		if err != nil {
			return mem.NoPage, 0, err
		}
		header, err := mem.ReadPageHeader(s.f, idx)
		if err != nil {
			return mem.NoPage, 0, err
		}
		return idx, mem.GetOffset(idx, header.InitializedOffset), nil
	}

	tail := list.Tail
	header, err := mem.ReadPageHeader(s.f, tail)
	if err != nil {
		return mem.NoPage, 0, err
	}
	if uint64(header.InitializedOffset)+recordSize <= mem.PageSize {
		return tail, mem.GetOffset(tail, header.InitializedOffset), nil
	}

	idx, err := mem.PushBack(s.f, s.alloc, list)
	if err != nil {
		return mem.NoPage, 0, err
	}
	fresh, err := mem.ReadPageHeader(s.f, idx)
	if err != nil {
		return mem.NoPage, 0, err
	}
	return idx, mem.GetOffset(idx, fresh.InitializedOffset), nil
}

// writeRecord encodes header followed by the length-prefixed descriptor
// text at header.offset, and advances the owning page's initialized/free
// offsets.
func (s *Storage) writeRecord(header *ClassHeader, text string) error {
	off := header.offset
	var err error
	if off, err = mem.WriteScalar(s.f, off, header.Magic); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.FreeOffset); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint64(header.Index)); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint64(header.DataPageList.Head)); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint64(header.DataPageList.Tail)); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.DataPageList.Count); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.NodeCount); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.NodeCountEver); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint32(len(text))); err != nil {
		return err
	}
	if off, err = s.f.WriteString(off, []byte(text)); err != nil {
		return err
	}

	pageHeader, err := mem.ReadPageHeader(s.f, header.page)
	if err != nil {
		return err
	}
	pageHeader.InitializedOffset = uint16(off - mem.GetOffset(header.page, 0))
	return mem.WritePageHeader(s.f, header.page, pageHeader)
}

func readRecord(f *mem.File, page mem.PageIndex, offset uint64) (*ClassHeader, string, error) {
	h := &ClassHeader{page: page, offset: offset}
	off := offset
	var err error

	if h.Magic, err = mem.ReadScalar[uint64](f, off); err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()
	if h.FreeOffset, err = mem.ReadScalar[uint16](f, off); err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint16]()
	idx, err := mem.ReadScalar[uint64](f, off)
	if err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()
	h.Index = mem.PageIndex(idx)

	head, err := mem.ReadScalar[uint64](f, off)
	if err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()
	tail, err := mem.ReadScalar[uint64](f, off)
	if err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()
	count, err := mem.ReadScalar[uint64](f, off)
	if err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()
	h.DataPageList = mem.PageListHead{Head: mem.PageIndex(head), Tail: mem.PageIndex(tail), Count: count}

	if h.NodeCount, err = mem.ReadScalar[uint64](f, off); err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()

	if h.NodeCountEver, err = mem.ReadScalar[uint64](f, off); err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint64]()

	length, err := mem.ReadScalar[uint32](f, off)
	if err != nil {
		return nil, "", err
	}
	off += mem.SizeOf[uint32]()
	text, err := f.ReadString(off, length)
	if err != nil {
		return nil, "", err
	}

	return h, string(text), nil
}

// recordSize returns the total on-disk byte width of header's record,
// including its descriptor text.
func recordSize(textLen int) uint64 {
	return classHeaderSize + 4 + uint64(textLen)
}

// VisitClasses calls fn with the ClassHeader and parsed Class of every
// registered class, in catalog insertion order.
func (s *Storage) VisitClasses(fn func(*ClassHeader, *typesystem.Class) error) error {
	list := s.sb.ClassList()
	pages, err := mem.Pages(s.f, list)
	if err != nil {
		return err
	}
	for _, page := range pages {
		pageHeader, err := mem.ReadPageHeader(s.f, page)
		if err != nil {
			return err
		}
		off := mem.GetOffset(page, uint16(mem.HeaderSize))
		end := mem.GetOffset(page, pageHeader.InitializedOffset)
		for off < end {
			header, text, err := readRecord(s.f, page, off)
			if err != nil {
				return err
			}
			class, err := typesystem.Parse(text)
			if err != nil {
				return err
			}
			if err := fn(header, class); err != nil {
				return err
			}
			off += recordSize(len(text))
		}
	}
	return nil
}

// Find locates the ClassHeader of class by its serialized form.
func (s *Storage) Find(class *typesystem.Class) (*ClassHeader, error) {
	text := typesystem.Serialize(class)
	var found *ClassHeader
	err := s.VisitClasses(func(h *ClassHeader, c *typesystem.Class) error {
		if typesystem.Serialize(c) == text {
			found = h
			return errStop
		}
		return nil
	})
	if err == errStop {
		return found, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, errkind.Errorf(errkind.NotFound, "class %q not registered", class.Name)
}

// SaveHeader rewrites header's fixed-width fields in place. It must only
// be called with a header obtained from this Storage (Find/VisitClasses),
// since the rewrite targets the exact offset that header was read from;
// the header's descriptor text and record length never change as a
// result, so no other record in the page is disturbed.
func (s *Storage) SaveHeader(header *ClassHeader) error {
	off := header.offset
	var err error
	if off, err = mem.WriteScalar(s.f, off, header.Magic); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.FreeOffset); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint64(header.Index)); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint64(header.DataPageList.Head)); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, uint64(header.DataPageList.Tail)); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.DataPageList.Count); err != nil {
		return err
	}
	if off, err = mem.WriteScalar(s.f, off, header.NodeCount); err != nil {
		return err
	}
	if _, err = mem.WriteScalar(s.f, off, header.NodeCountEver); err != nil {
		return err
	}
	return nil
}

// Contains reports whether class is registered.
func (s *Storage) Contains(class *typesystem.Class) bool {
	_, err := s.Find(class)
	return err == nil
}

// errStop is a private sentinel used to short-circuit VisitClasses.
var errStop = errkind.New(errkind.RuntimeError, "stop")

// RemoveClass frees all of class's data pages via the allocator and
// erases its catalog record. Fails NotFound if class is not registered.
func (s *Storage) RemoveClass(class *typesystem.Class) error {
	header, err := s.Find(class)
	if err != nil {
		return err
	}

	dataList := header.DataPageList
	if err := mem.FreePageList(s.f, s.alloc, &dataList); err != nil {
		return err
	}

	if err := s.eraseRecord(header); err != nil {
		return err
	}

	s.logger.Info("class removed", "class", class.Name)
	return nil
}

// eraseRecord overwrites header's record by compacting every later record
// in its page leftward over it, then shrinking the page's initialized
// offset. This keeps catalog storage append-only-simple without needing
// a dedicated tombstone scheme, at the cost of an O(page) shift per
// removal — acceptable since class registration churn is expected to be
// rare relative to node churn.
func (s *Storage) eraseRecord(header *ClassHeader) error {
	pageHeader, err := mem.ReadPageHeader(s.f, header.page)
	if err != nil {
		return err
	}

	_, text, err := readRecord(s.f, header.page, header.offset)
	if err != nil {
		return err
	}
	size := recordSize(len(text))

	tailStart := header.offset + size
	tailEnd := mem.GetOffset(header.page, pageHeader.InitializedOffset)
	if tailStart < tailEnd {
		buf := make([]byte, tailEnd-tailStart)
		if err := s.f.ReadBytes(tailStart, buf); err != nil {
			return err
		}
		if _, err := s.f.WriteBytes(header.offset, buf); err != nil {
			return err
		}
	}

	pageHeader.InitializedOffset -= uint16(size)
	return mem.WritePageHeader(s.f, header.page, pageHeader)
}
