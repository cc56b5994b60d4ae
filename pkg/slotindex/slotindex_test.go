package slotindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cronfleet/pkg/types"
)

func fp(b byte) types.Fingerprint {
	var f types.Fingerprint
	f[0] = b
	return f
}

func TestFloorKeyReturnsGreatestNotAfterQuery(t *testing.T) {
	idx := New()
	idx.Insert(100, fp(1))
	idx.Insert(200, fp(2))

	slot, ok := idx.FloorKey(150)
	require.True(t, ok)
	assert.Equal(t, uint64(100), slot)

	slot, ok = idx.FloorKey(200)
	require.True(t, ok)
	assert.Equal(t, uint64(200), slot)

	_, ok = idx.FloorKey(50)
	assert.False(t, ok)
}

func TestPopIsLIFOAndSweepsEmptyBuckets(t *testing.T) {
	idx := New()
	idx.Insert(100, fp(1))
	idx.Insert(100, fp(2))

	got, ok := idx.Pop(100)
	require.True(t, ok)
	assert.Equal(t, fp(2), got)

	got, ok = idx.Pop(100)
	require.True(t, ok)
	assert.Equal(t, fp(1), got)

	assert.Equal(t, 0, idx.Len())
	_, ok = idx.Pop(100)
	assert.False(t, ok)
}

func TestRemoveFingerprintUnlinksSpecificEntry(t *testing.T) {
	idx := New()
	idx.Insert(100, fp(1))
	idx.Insert(100, fp(2))
	idx.Insert(100, fp(3))

	ok := idx.RemoveFingerprint(100, fp(2))
	require.True(t, ok)

	bucket, ok := idx.Get(100)
	require.True(t, ok)
	assert.Equal(t, []types.Fingerprint{fp(1), fp(3)}, bucket)
}

func TestAlignDownAndAlignUp(t *testing.T) {
	const gran = uint64(60_000_000_000)
	assert.Equal(t, uint64(1_624_151_460_000_000_000), AlignDown(1_624_151_504_447_000_000, gran))
	assert.Equal(t, uint64(1_624_151_520_000_000_000), AlignUp(1_624_151_510_000_000_000, gran))
	assert.Equal(t, uint64(1_624_151_520_000_000_000), AlignUp(1_624_151_520_000_000_000, gran))
}
