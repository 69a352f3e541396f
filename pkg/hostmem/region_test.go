package hostmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionWriteReadRoundTrip(t *testing.T) {
	r := NewRegion(32)

	n, err := r.WriteAt([]byte{1, 2, 3, 4}, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 4)
	n, err = r.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestRegionWriteOutOfRange(t *testing.T) {
	r := NewRegion(4)
	_, err := r.WriteAt([]byte{1, 2, 3, 4, 5}, 0)
	assert.Error(t, err)

	_, err = r.WriteAt([]byte{1}, 10)
	assert.Error(t, err)
}

func TestRegionReadOutOfRange(t *testing.T) {
	r := NewRegion(4)
	_, err := r.ReadAt(make([]byte, 1), -1)
	assert.Error(t, err)

	_, err = r.ReadAt(make([]byte, 1), 10)
	assert.Error(t, err)
}

func TestRegionSnapshotIsACopy(t *testing.T) {
	r := NewRegion(4)
	_, _ = r.WriteAt([]byte{9, 9, 9, 9}, 0)

	snap := r.Snapshot()
	assert.Equal(t, []byte{9, 9, 9, 9}, snap)

	snap[0] = 0
	buf := make([]byte, 4)
	_, _ = r.ReadAt(buf, 0)
	assert.Equal(t, []byte{9, 9, 9, 9}, buf, "mutating the snapshot must not affect the region")
}
