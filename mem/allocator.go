package mem

import (
	"github.com/mpiechota/classgraph/logx"
)

// Allocator hands out, frees and swaps pages from the global free list
// rooted in the superblock, per spec §4.3. It mutates sb in place and
// persists it after every state change, mirroring the collaborator named
// in original_source/src/mem/allocator.hpp (PageAllocator holds cr3_,
// pages_count_ and the shared File).
type Allocator struct {
	f      *File
	sb     *Superblock
	logger logx.Logger
}

// NewAllocator returns an allocator operating on sb through f.
func NewAllocator(f *File, sb *Superblock, logger logx.Logger) *Allocator {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Allocator{f: f, sb: sb, logger: logger}
}

// PagesCount returns the total number of pages the file currently holds,
// including the reserved superblock page.
func (a *Allocator) PagesCount() uint64 { return a.sb.PagesCount }

// Allocate pops the free-list head if non-empty, otherwise grows the file
// by one page. The returned page's header is initialized to
// (type=data, free_offset=initialized_offset=sizeof(header), prev=next=NoPage).
func (a *Allocator) Allocate() (PageIndex, error) {
	freshHeader := PageHeader{
		Type:              PageData,
		FreeOffset:        uint16(HeaderSize),
		InitializedOffset: uint16(HeaderSize),
		PrevPageIndex:     NoPage,
		NextPageIndex:     NoPage,
	}

	if a.sb.FreeListHead != NoPage {
		idx := a.sb.FreeListHead
		freed, err := ReadPageHeader(a.f, idx)
		if err != nil {
			return NoPage, err
		}
		a.sb.FreeListHead = freed.NextPageIndex
		if err := WritePageHeader(a.f, idx, freshHeader); err != nil {
			return NoPage, err
		}
		if err := a.sb.Persist(a.f); err != nil {
			return NoPage, err
		}
		a.logger.Debug("allocated page from free list", "page", uint64(idx))
		return idx, nil
	}

	idx := PageIndex(a.sb.PagesCount)
	if err := a.f.Grow(GetOffset(idx, 0) + PageSize); err != nil {
		return NoPage, err
	}
	if err := WritePageHeader(a.f, idx, freshHeader); err != nil {
		return NoPage, err
	}
	a.sb.PagesCount++
	if err := a.sb.Persist(a.f); err != nil {
		return NoPage, err
	}
	a.logger.Debug("allocated new page", "page", uint64(idx))
	return idx, nil
}

// Free marks a page free and links it to the head of the free list.
func (a *Allocator) Free(index PageIndex) error {
	header, err := ReadPageHeader(a.f, index)
	if err != nil {
		return err
	}
	header.Type = PageFree
	header.PrevPageIndex = NoPage
	header.NextPageIndex = a.sb.FreeListHead
	if err := WritePageHeader(a.f, index, header); err != nil {
		return err
	}
	a.sb.FreeListHead = index
	if err := a.sb.Persist(a.f); err != nil {
		return err
	}
	a.logger.Debug("freed page", "page", uint64(index))
	return nil
}

// Swap exchanges the raw byte contents of two pages and fixes up the
// prev/next links of each page's list neighbors to point at the new
// location. It does not update any owner's head/tail pointers — a caller
// relying on Swap to relocate a list's head or tail page must update that
// pointer itself.
func (a *Allocator) Swap(x, y PageIndex) error {
	if x == y {
		return nil
	}

	bufX := make([]byte, PageSize)
	bufY := make([]byte, PageSize)
	if err := a.f.ReadBytes(GetOffset(x, 0), bufX); err != nil {
		return err
	}
	if err := a.f.ReadBytes(GetOffset(y, 0), bufY); err != nil {
		return err
	}

	if _, err := a.f.WriteBytes(GetOffset(x, 0), bufY); err != nil {
		return err
	}
	if _, err := a.f.WriteBytes(GetOffset(y, 0), bufX); err != nil {
		return err
	}

	headerAtX, err := ReadPageHeader(a.f, x)
	if err != nil {
		return err
	}
	headerAtY, err := ReadPageHeader(a.f, y)
	if err != nil {
		return err
	}

	// headerAtX now holds the content that used to live at y (and vice
	// versa), so each one's recorded neighbors must be pointed at its new
	// home, not its old one.
	if err := a.relink(headerAtX, x); err != nil {
		return err
	}
	if err := a.relink(headerAtY, y); err != nil {
		return err
	}

	a.logger.Debug("swapped pages", "a", uint64(x), "b", uint64(y))
	return nil
}

// relink points the prev/next neighbors recorded in header at newIndex.
func (a *Allocator) relink(header PageHeader, newIndex PageIndex) error {
	if header.PrevPageIndex != NoPage {
		prev, err := ReadPageHeader(a.f, header.PrevPageIndex)
		if err != nil {
			return err
		}
		prev.NextPageIndex = newIndex
		if err := WritePageHeader(a.f, header.PrevPageIndex, prev); err != nil {
			return err
		}
	}
	if header.NextPageIndex != NoPage {
		next, err := ReadPageHeader(a.f, header.NextPageIndex)
		if err != nil {
			return err
		}
		next.PrevPageIndex = newIndex
		if err := WritePageHeader(a.f, header.NextPageIndex, next); err != nil {
			return err
		}
	}
	return nil
}

// FreePageList frees every page in h and resets it to empty.
func FreePageList(f *File, alloc *Allocator, h *PageListHead) error {
	for idx := h.Head; idx != NoPage; {
		header, err := ReadPageHeader(f, idx)
		if err != nil {
			return err
		}
		next := header.NextPageIndex
		if err := alloc.Free(idx); err != nil {
			return err
		}
		idx = next
	}
	*h = NewPageListHead()
	return nil
}
