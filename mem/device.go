package mem

import "io"

// Device is the byte-addressable backing store a File is opened on. It is
// the same shape as the teacher's persistence.Dev collaborator: a seekable
// stream plus Sync and Size, so both a real file and an in-memory buffer
// can serve as the storage behind a Database.
type Device interface {
	io.ReadWriteSeeker
	// Sync flushes any OS-level buffering. No-op for in-memory devices.
	Sync() error
	// Size returns the current byte length of the device.
	Size() int64
	// Truncate grows or shrinks the device to exactly size bytes.
	Truncate(size int64) error
}
