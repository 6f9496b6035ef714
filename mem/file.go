// Package mem implements the byte-addressable file abstraction, the page
// layer, the page allocator and the superblock — layers 1 through 4 of
// spec §2.
package mem

import (
	"encoding/binary"
	"io"

	"github.com/mpiechota/classgraph/errkind"
)

// File is the byte-addressable random-access store every other layer of
// classgraph reads and writes through. All scalar values are little-endian
// and fixed-width; strings and bulk byte ranges carry no implicit framing,
// exactly as spec §4.1 requires.
type File struct {
	dev Device
}

// NewFile wraps dev as a File.
func NewFile(dev Device) *File {
	return &File{dev: dev}
}

// Size returns the current byte length of the underlying device.
func (f *File) Size() uint64 {
	return uint64(f.dev.Size())
}

// Clear truncates the device to zero length.
func (f *File) Clear() error {
	if err := f.dev.Truncate(0); err != nil {
		return errkind.Wrap(errkind.IoError, err, "clear file")
	}
	return nil
}

// Grow ensures the device is at least size bytes long.
func (f *File) Grow(size uint64) error {
	if int64(size) <= f.dev.Size() {
		return nil
	}
	if err := f.dev.Truncate(int64(size)); err != nil {
		return errkind.Wrap(errkind.IoError, err, "grow file")
	}
	return nil
}

// ReadBytes reads exactly len(p) raw bytes starting at offset.
func (f *File) ReadBytes(offset uint64, p []byte) error {
	if _, err := f.dev.Seek(int64(offset), io.SeekStart); err != nil {
		return errkind.Wrap(errkind.IoError, err, "seek")
	}
	if _, err := io.ReadFull(f.dev, p); err != nil {
		return errkind.Wrap(errkind.IoError, err, "read bytes")
	}
	return nil
}

// WriteBytes writes the raw bytes of p starting at offset and returns the
// offset immediately following the written range.
func (f *File) WriteBytes(offset uint64, p []byte) (uint64, error) {
	if _, err := f.dev.Seek(int64(offset), io.SeekStart); err != nil {
		return offset, errkind.Wrap(errkind.IoError, err, "seek")
	}
	if _, err := f.dev.Write(p); err != nil {
		return offset, errkind.Wrap(errkind.IoError, err, "write bytes")
	}
	return offset + uint64(len(p)), nil
}

// ReadString reads length raw bytes starting at offset. The length is
// carried by the caller's framing, not by a trailing NUL.
func (f *File) ReadString(offset uint64, length uint32) ([]byte, error) {
	p := make([]byte, length)
	if err := f.ReadBytes(offset, p); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteString writes the raw bytes of b starting at offset and returns the
// offset immediately following the written range.
func (f *File) WriteString(offset uint64, b []byte) (uint64, error) {
	return f.WriteBytes(offset, b)
}

// Scalar is the closed set of fixed-width values File can read and write
// directly.
type Scalar interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64 | ~bool
}

// SizeOf returns the on-disk byte width of a Scalar type.
func SizeOf[T Scalar]() uint64 {
	var v T
	return uint64(binary.Size(v))
}

// ReadScalar reads a single little-endian fixed-width value of type T from
// offset.
func ReadScalar[T Scalar](f *File, offset uint64) (T, error) {
	var v T
	if _, err := f.dev.Seek(int64(offset), io.SeekStart); err != nil {
		return v, errkind.Wrap(errkind.IoError, err, "seek")
	}
	if err := binary.Read(f.dev, binary.LittleEndian, &v); err != nil {
		return v, errkind.Wrap(errkind.IoError, err, "read scalar")
	}
	return v, nil
}

// WriteScalar writes v as a little-endian fixed-width value at offset and
// returns the offset immediately following it.
func WriteScalar[T Scalar](f *File, offset uint64, v T) (uint64, error) {
	if _, err := f.dev.Seek(int64(offset), io.SeekStart); err != nil {
		return offset, errkind.Wrap(errkind.IoError, err, "seek")
	}
	if err := binary.Write(f.dev, binary.LittleEndian, v); err != nil {
		return offset, errkind.Wrap(errkind.IoError, err, "write scalar")
	}
	return offset + SizeOf[T](), nil
}
