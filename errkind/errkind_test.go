package errkind_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpiechota/classgraph/errkind"
)

func TestErrorfCarriesKind(t *testing.T) {
	err := errkind.Errorf(errkind.NotFound, "class %q missing", "Point")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NotFound))
	assert.False(t, errkind.Is(err, errkind.BadArgument))
	assert.Equal(t, `class "Point" missing`, err.Error())
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, errkind.Wrap(errkind.IoError, nil, "context"))
	assert.Nil(t, errkind.Wrapf(errkind.IoError, nil, "context %d", 1))
}

func TestWrapPreservesKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := errkind.Wrap(errkind.IoError, cause, "writing superblock")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.IoError))

	unwrapped, ok := err.(interface{ Unwrap() error })
	require.True(t, ok)
	assert.Equal(t, cause, unwrapped.Unwrap())
}

func TestOfUnknownError(t *testing.T) {
	_, ok := errkind.Of(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindStringNames(t *testing.T) {
	cases := map[errkind.Kind]string{
		errkind.IoError:        "IoError",
		errkind.StructureError: "StructureError",
		errkind.BadArgument:    "BadArgument",
		errkind.TypeError:      "TypeError",
		errkind.NotFound:       "NotFound",
		errkind.AlreadyExists:  "AlreadyExists",
		errkind.NotImplemented: "NotImplemented",
		errkind.RuntimeError:   "RuntimeError",
	}
	for kind, name := range cases {
		assert.Equal(t, name, kind.String())
	}
}

func TestIsThroughWrapChain(t *testing.T) {
	base := errkind.New(errkind.StructureError, "bad magic")
	wrapped := errors.Wrap(base, "reading superblock")
	assert.True(t, errkind.Is(wrapped, errkind.StructureError))
}
