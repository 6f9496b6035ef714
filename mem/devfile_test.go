package mem_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/mem"
)

func TestFileDeviceTracksSizeAcrossWritesAndTruncate(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "classgraph-*.db")
	require.NoError(t, err)
	defer tmp.Close()

	dev, err := mem.NewFileDevice(tmp)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dev.Size())

	n, err := dev.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), dev.Size())

	require.NoError(t, dev.Truncate(2))
	assert.Equal(t, int64(2), dev.Size())

	pos, err := dev.Seek(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	got := make([]byte, 2)
	rn, err := dev.Read(got)
	require.NoError(t, err)
	assert.Equal(t, 2, rn)
	assert.Equal(t, "he", string(got))

	require.NoError(t, dev.Sync())
}

func TestMemDeviceSeekWhenceVariants(t *testing.T) {
	d := mem.NewMemDevice()
	_, err := d.Write([]byte("0123456789"))
	require.NoError(t, err)

	pos, err := d.Seek(2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	pos, err = d.Seek(3, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	pos, err = d.Seek(-1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	_, err = d.Seek(-1000, 0)
	require.Error(t, err)
}
