package amount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimalExceedsUint64(t *testing.T) {
	a, err := FromDecimal("1000000000020000000100")
	require.NoError(t, err)
	assert.Equal(t, "1000000000020000000100", a.String())
}

func TestAddRefillScenario(t *testing.T) {
	deposit := MustFromDecimal("1000000000020000000100")
	total := deposit.Add(deposit)
	assert.Equal(t, "2000000000040000000200", total.String())
}

func TestSubUnderflow(t *testing.T) {
	small := FromUint64(5)
	big := FromUint64(10)
	_, ok := small.Sub(big)
	assert.False(t, ok)

	result, ok := big.Sub(small)
	require.True(t, ok)
	assert.Equal(t, "5", result.String())
}

func TestMulUint64(t *testing.T) {
	gasPrice := FromUint64(3)
	gas := uint64(200)
	assert.Equal(t, "600", gasPrice.MulUint64(gas).String())
}

func TestJSONRoundTrip(t *testing.T) {
	a := MustFromDecimal("1000000000020000000100")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"1000000000020000000100"`, string(data))

	var b Amount
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, 0, a.Cmp(b))
}
