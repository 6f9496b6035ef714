package mem

import (
	"io"

	"github.com/pkg/errors"
)

var _ Device = &MemDevice{}

// MemDevice simulates device IO in memory; it is used by tests and by
// short-lived in-process databases that never need to touch disk.
type MemDevice struct {
	offset int64
	data   []byte
}

// NewMemDevice returns an empty, zero-length in-memory device.
func NewMemDevice() *MemDevice {
	return &MemDevice{}
}

// Seek seeks the position.
func (d *MemDevice) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += d.offset
	case io.SeekEnd:
		offset += int64(len(d.data))
	default:
		return 0, errors.Errorf("invalid whence: %d", whence)
	}
	if offset < 0 {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}
	d.offset = offset
	return offset, nil
}

// Read reads from the in-memory buffer.
func (d *MemDevice) Read(p []byte) (int, error) {
	if d.offset >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[d.offset:])
	d.offset += int64(n)
	return n, nil
}

// Write writes to the in-memory buffer, growing it if needed.
func (d *MemDevice) Write(p []byte) (int, error) {
	end := d.offset + int64(len(p))
	if end > int64(len(d.data)) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	n := copy(d.data[d.offset:end], p)
	d.offset += int64(n)
	return n, nil
}

// Sync is a no-op for an in-memory device.
func (d *MemDevice) Sync() error { return nil }

// Size returns the current byte length of the buffer.
func (d *MemDevice) Size() int64 { return int64(len(d.data)) }

// Truncate grows or shrinks the buffer to exactly size bytes.
func (d *MemDevice) Truncate(size int64) error {
	if size < 0 {
		return errors.Errorf("invalid size: %d", size)
	}
	if size <= int64(len(d.data)) {
		d.data = d.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, d.data)
	d.data = grown
	return nil
}
