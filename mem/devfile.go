package mem

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

var _ Device = &FileDevice{}

// FileDevice uses an *os.File as the backing device for a File.
type FileDevice struct {
	file *os.File
	size int64
}

// NewFileDevice wraps an already-open *os.File.
func NewFileDevice(file *os.File) (*FileDevice, error) {
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &FileDevice{file: file, size: size}, nil
}

// Seek seeks the position.
func (d *FileDevice) Seek(offset int64, whence int) (int64, error) {
	n, err := d.file.Seek(offset, whence)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Read reads from the file.
func (d *FileDevice) Read(p []byte) (int, error) {
	n, err := d.file.Read(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Write writes to the file.
func (d *FileDevice) Write(p []byte) (int, error) {
	n, err := d.file.Write(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	if end, _ := d.file.Seek(0, io.SeekCurrent); end > d.size {
		d.size = end
	}
	return n, nil
}

// Sync flushes the file to disk.
func (d *FileDevice) Sync() error {
	return errors.WithStack(d.file.Sync())
}

// Size returns the current byte length of the file.
func (d *FileDevice) Size() int64 {
	return d.size
}

// Truncate grows or shrinks the file to exactly size bytes.
func (d *FileDevice) Truncate(size int64) error {
	if err := d.file.Truncate(size); err != nil {
		return errors.WithStack(err)
	}
	d.size = size
	return nil
}
