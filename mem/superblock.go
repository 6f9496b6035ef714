package mem

import (
	"github.com/mpiechota/classgraph/errkind"
)

// SuperblockMagic is the fixed constant identifying a classgraph file,
// per spec §6.2 (kDDB_MAGIC).
const SuperblockMagic uint64 = 0xDDB00000DDB00042

// superblockOffset is the fixed offset of the superblock, per spec §2.
const superblockOffset uint64 = 0

// superblockSize is sizeof(Superblock): six u64 fields.
const superblockSize uint64 = 6 * 8

// Page index 0 is reserved for the superblock; it is pre-sized to a full
// page so that GetOffset(pageIndex, inPageOffset) = pageIndex*PageSize +
// inPageOffset holds for every page handed out by the allocator, which
// starts counting from index 1.
const reservedSuperblockPages uint64 = 1

// Superblock is the fixed-offset-0 record holding the allocator root and
// the head of the class-catalog page list, per spec §3/§6.2.
type Superblock struct {
	Magic          uint64
	FreeListHead   PageIndex // cr3
	PagesCount     uint64
	ClassListHead  PageIndex
	ClassListTail  PageIndex
	ClassListCount uint64
}

// ClassList returns the superblock's class-catalog page list head.
func (sb *Superblock) ClassList() PageListHead {
	return PageListHead{Head: sb.ClassListHead, Tail: sb.ClassListTail, Count: sb.ClassListCount}
}

// SetClassList writes h back into the superblock's class-catalog fields.
func (sb *Superblock) SetClassList(h PageListHead) {
	sb.ClassListHead = h.Head
	sb.ClassListTail = h.Tail
	sb.ClassListCount = h.Count
}

// ReadSuperblock reads and validates the superblock at offset 0. It fails
// with StructureError if the magic does not match.
func ReadSuperblock(f *File) (*Superblock, error) {
	if f.Size() < PageSize {
		return nil, errkind.Errorf(errkind.StructureError, "file too small for superblock: %d bytes", f.Size())
	}

	sb := &Superblock{}
	off := superblockOffset
	var err error

	if sb.Magic, err = ReadScalar[uint64](f, off); err != nil {
		return nil, err
	}
	off += SizeOf[uint64]()
	if sb.Magic != SuperblockMagic {
		return nil, errkind.Errorf(errkind.StructureError, "superblock magic mismatch: got %#x, want %#x", sb.Magic, SuperblockMagic)
	}

	var freeListHead, classListHead, classListTail uint64
	if freeListHead, err = ReadScalar[uint64](f, off); err != nil {
		return nil, err
	}
	off += SizeOf[uint64]()
	sb.FreeListHead = PageIndex(freeListHead)

	if sb.PagesCount, err = ReadScalar[uint64](f, off); err != nil {
		return nil, err
	}
	off += SizeOf[uint64]()

	if classListHead, err = ReadScalar[uint64](f, off); err != nil {
		return nil, err
	}
	off += SizeOf[uint64]()
	sb.ClassListHead = PageIndex(classListHead)

	if classListTail, err = ReadScalar[uint64](f, off); err != nil {
		return nil, err
	}
	off += SizeOf[uint64]()
	sb.ClassListTail = PageIndex(classListTail)

	if sb.ClassListCount, err = ReadScalar[uint64](f, off); err != nil {
		return nil, err
	}

	return sb, nil
}

// InitSuperblock clears f and writes a fresh, empty superblock.
func InitSuperblock(f *File) (*Superblock, error) {
	if err := f.Clear(); err != nil {
		return nil, err
	}
	sb := &Superblock{
		Magic:          SuperblockMagic,
		FreeListHead:   NoPage,
		PagesCount:     reservedSuperblockPages,
		ClassListHead:  NoPage,
		ClassListTail:  NoPage,
		ClassListCount: 0,
	}
	if err := sb.Persist(f); err != nil {
		return nil, err
	}
	return sb, nil
}

// Persist writes the superblock's current in-memory state back to offset 0.
func (sb *Superblock) Persist(f *File) error {
	if err := f.Grow(PageSize); err != nil {
		return err
	}
	off := superblockOffset
	var err error
	if off, err = WriteScalar(f, off, sb.Magic); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, uint64(sb.FreeListHead)); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, sb.PagesCount); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, uint64(sb.ClassListHead)); err != nil {
		return err
	}
	if off, err = WriteScalar(f, off, uint64(sb.ClassListTail)); err != nil {
		return err
	}
	if _, err = WriteScalar(f, off, sb.ClassListCount); err != nil {
		return err
	}
	return nil
}
