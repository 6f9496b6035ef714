package mem

// PageListHead is the metadata of a doubly-linked page list, persisted
// inside its owner (the Superblock for the class catalog, a ClassHeader
// for a class's data pages), per spec §4.2.
type PageListHead struct {
	Head  PageIndex
	Tail  PageIndex
	Count uint64
}

// NewPageListHead returns an empty page list.
func NewPageListHead() PageListHead {
	return PageListHead{Head: NoPage, Tail: NoPage, Count: 0}
}

// Begin returns the first page of the list, or NoPage if empty.
func (h PageListHead) Begin() PageIndex { return h.Head }

// End is the sentinel one-past-the-last page index.
func (h PageListHead) End() PageIndex { return NoPage }

// PushBack allocates a new page, appends it to the list and returns its
// index. h is mutated in place; the caller is responsible for persisting
// h back into its owning record.
func PushBack(f *File, alloc *Allocator, h *PageListHead) (PageIndex, error) {
	idx, err := alloc.Allocate()
	if err != nil {
		return NoPage, err
	}

	newHeader, err := ReadPageHeader(f, idx)
	if err != nil {
		return NoPage, err
	}
	newHeader.PrevPageIndex = h.Tail
	newHeader.NextPageIndex = NoPage
	if err := WritePageHeader(f, idx, newHeader); err != nil {
		return NoPage, err
	}

	if h.Count == 0 {
		h.Head = idx
	} else {
		tailHeader, err := ReadPageHeader(f, h.Tail)
		if err != nil {
			return NoPage, err
		}
		tailHeader.NextPageIndex = idx
		if err := WritePageHeader(f, h.Tail, tailHeader); err != nil {
			return NoPage, err
		}
	}
	h.Tail = idx
	h.Count++

	return idx, nil
}

// Erase removes the page at index from the list and returns it to the
// allocator. h is mutated in place.
func Erase(f *File, alloc *Allocator, h *PageListHead, index PageIndex) error {
	header, err := ReadPageHeader(f, index)
	if err != nil {
		return err
	}

	if header.PrevPageIndex != NoPage {
		prevHeader, err := ReadPageHeader(f, header.PrevPageIndex)
		if err != nil {
			return err
		}
		prevHeader.NextPageIndex = header.NextPageIndex
		if err := WritePageHeader(f, header.PrevPageIndex, prevHeader); err != nil {
			return err
		}
	} else {
		h.Head = header.NextPageIndex
	}

	if header.NextPageIndex != NoPage {
		nextHeader, err := ReadPageHeader(f, header.NextPageIndex)
		if err != nil {
			return err
		}
		nextHeader.PrevPageIndex = header.PrevPageIndex
		if err := WritePageHeader(f, header.NextPageIndex, nextHeader); err != nil {
			return err
		}
	} else {
		h.Tail = header.PrevPageIndex
	}

	h.Count--

	return alloc.Free(index)
}

// Pages returns every page index in the list, head to tail.
func Pages(f *File, h PageListHead) ([]PageIndex, error) {
	pages := make([]PageIndex, 0, h.Count)
	for idx := h.Head; idx != NoPage; {
		pages = append(pages, idx)
		header, err := ReadPageHeader(f, idx)
		if err != nil {
			return nil, err
		}
		idx = header.NextPageIndex
	}
	return pages, nil
}
