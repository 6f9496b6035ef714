package mem

import (
	"github.com/mpiechota/classgraph/errkind"
)

// PageSize is the fixed size of every page in the file (kPageSize in spec
// §2).
const PageSize uint64 = 4096

// NoOffset is the terminal marker a node store writes into the oldest
// entry of a page's free-slot chain (see nodestore). It never appears as
// a PageHeader.FreeOffset value itself — per spec §8's invariant
// free_offset ≤ initialized_offset ≤ kPageSize, a page's free list is
// empty exactly when FreeOffset == InitializedOffset, not when FreeOffset
// equals this marker. See DESIGN.md.
const NoOffset uint16 = 0xFFFF

// PageIndex addresses a page within the file.
type PageIndex uint64

// NoPage is the sentinel PageIndex meaning "no page" — the end of a page
// list, or an unset prev/next link.
const NoPage PageIndex = ^PageIndex(0)

// PageType is the kind of a page, per spec §3.
type PageType uint8

// Page types.
const (
	PageFree PageType = iota
	PageClassCatalog
	PageData
)

// HeaderSize is sizeof(PageHeader): 1 (type) + 2 (free_offset) +
// 2 (initialized_offset) + 8 (prev_page_index) + 8 (next_page_index).
const HeaderSize uint64 = 1 + 2 + 2 + 8 + 8

// PageHeader is the fixed layout stored at the start of every page,
// per spec §4.2.
type PageHeader struct {
	Type              PageType
	FreeOffset        uint16
	InitializedOffset uint16
	PrevPageIndex     PageIndex
	NextPageIndex     PageIndex
}

// GetOffset computes the absolute file offset of inPageOffset within
// page index, per spec §4.2.
func GetOffset(index PageIndex, inPageOffset uint16) uint64 {
	return uint64(index)*PageSize + uint64(inPageOffset)
}

// ReadPageHeader decodes the header of the page at index.
func ReadPageHeader(f *File, index PageIndex) (PageHeader, error) {
	var h PageHeader
	off := GetOffset(index, 0)

	typ, err := ReadScalar[uint8](f, off)
	if err != nil {
		return h, err
	}
	off += SizeOf[uint8]()
	h.Type = PageType(typ)

	if h.FreeOffset, err = ReadScalar[uint16](f, off); err != nil {
		return h, err
	}
	off += SizeOf[uint16]()

	if h.InitializedOffset, err = ReadScalar[uint16](f, off); err != nil {
		return h, err
	}
	off += SizeOf[uint16]()

	prev, err := ReadScalar[uint64](f, off)
	if err != nil {
		return h, err
	}
	off += SizeOf[uint64]()
	h.PrevPageIndex = PageIndex(prev)

	next, err := ReadScalar[uint64](f, off)
	if err != nil {
		return h, err
	}
	h.NextPageIndex = PageIndex(next)

	return h, nil
}

// WritePageHeader encodes h at the start of the page at index.
func WritePageHeader(f *File, index PageIndex, h PageHeader) error {
	off := GetOffset(index, 0)
	var err error
	if off, err = WriteScalar(f, off, uint8(h.Type)); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, h.FreeOffset); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, h.InitializedOffset); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, uint64(h.PrevPageIndex)); err != nil {
		return err
	}
	if _, err = WriteScalar(f, off, uint64(h.NextPageIndex)); err != nil {
		return err
	}
	return nil
}

// ValidateHeader checks the bounds invariant of spec §3/§8:
// sizeof(PageHeader) ≤ free_offset ≤ initialized_offset ≤ kPageSize.
// free_offset == initialized_offset means the page's free-slot chain is
// empty; it is never a distinguished sentinel value.
func ValidateHeader(h PageHeader) error {
	if h.InitializedOffset < uint16(HeaderSize) || uint64(h.InitializedOffset) > PageSize {
		return errkind.Errorf(errkind.RuntimeError,
			"initialized_offset %d out of bounds [%d, %d]", h.InitializedOffset, HeaderSize, PageSize)
	}
	if h.FreeOffset < uint16(HeaderSize) || h.FreeOffset > h.InitializedOffset {
		return errkind.Errorf(errkind.RuntimeError,
			"free_offset %d out of bounds [%d, %d]", h.FreeOffset, HeaderSize, h.InitializedOffset)
	}
	return nil
}
