package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse("* * * *")
	require.ErrorIs(t, err, ErrInvalidCadence)
}

func TestNextIsStrictlyAfterReference(t *testing.T) {
	c, err := Parse("*/10 * * * * *")
	require.NoError(t, err)

	ref := time.Unix(0, 1_624_151_504_447_000_000).UTC()
	next, err := c.Next(ref)
	require.NoError(t, err)
	assert.True(t, next.After(ref))
}

func TestNextNanosScenario2(t *testing.T) {
	c, err := Parse("*/10 * * * * *")
	require.NoError(t, err)

	next, err := c.NextNanos(1_624_151_504_447_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_624_151_510_000_000_000), next)
}

func TestNextIdempotenceLaw(t *testing.T) {
	c, err := Parse("0 0 */1 * * *")
	require.NoError(t, err)

	ref := time.Unix(0, 1_624_151_504_447_000_000).UTC()
	n1, err := c.Next(ref)
	require.NoError(t, err)

	n2, err := c.Next(n1.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
}

func TestYearFieldFiltersCandidates(t *testing.T) {
	c, err := Parse("0 0 0 1 1 * 2030")
	require.NoError(t, err)

	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := c.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, 2030, next.Year())
}

func TestYearFieldUnsatisfiableWithinBound(t *testing.T) {
	c, err := Parse("0 0 0 1 1 * 1900")
	require.NoError(t, err)

	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = c.Next(ref)
	require.ErrorIs(t, err, ErrInvalidCadence)
}
