package taskregistry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/storage"
	"github.com/cuemby/cronfleet/pkg/types"
)

func newTestRegistry(t *testing.T) (*Registry, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	reg, err := New(store)
	require.NoError(t, err)
	return reg, store
}

func TestFingerprintIsStableAndContentAddressed(t *testing.T) {
	a := Fingerprint("counter", "increment", "0 0 */1 * * *", "alice")
	b := Fingerprint("counter", "increment", "0 0 */1 * * *", "alice")
	assert.Equal(t, a, b)

	c := Fingerprint("counter", "increment", "0 0 */1 * * *", "bob")
	assert.NotEqual(t, a, c)
}

func TestCreateRejectsCollision(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fp := Fingerprint("counter", "increment", "0 0 */1 * * *", "alice")
	task := types.Task{Fingerprint: fp, Owner: "alice", TotalDeposit: amount.FromUint64(100)}

	require.NoError(t, reg.Create(task))
	err := reg.Create(task)
	assert.ErrorIs(t, err, ErrFingerprintExists)
}

func TestRefillScenario(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fp := Fingerprint("counter", "increment", "0 0 */1 * * *", "alice")
	deposit := amount.MustFromDecimal("1000000000020000000100")
	task := types.Task{Fingerprint: fp, Owner: "alice", TotalDeposit: deposit}
	require.NoError(t, reg.Create(task))

	got, ok := reg.Get(fp)
	require.True(t, ok)
	require.NoError(t, reg.SetTotalDeposit(fp, got.TotalDeposit.Add(deposit)))

	got, ok = reg.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "2000000000040000000200", got.TotalDeposit.String())
}

func TestDeleteThenMissing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	fp := Fingerprint("counter", "increment", "* * * * * *", "alice")
	require.NoError(t, reg.Create(types.Task{Fingerprint: fp, Owner: "alice"}))
	require.NoError(t, reg.Delete(fp))

	_, ok := reg.Get(fp)
	assert.False(t, ok)
	assert.ErrorIs(t, reg.Delete(fp), ErrNotFound)
}

func TestListFilteredByOwnerAndPaginated(t *testing.T) {
	reg, _ := newTestRegistry(t)
	alice := types.Principal("alice")
	bob := types.Principal("bob")
	for i := 0; i < 3; i++ {
		fp := Fingerprint("counter", fmt.Sprintf("increment-%d", i), "* * * * * *", alice)
		require.NoError(t, reg.Create(types.Task{Fingerprint: fp, Owner: alice}))
	}
	fp := Fingerprint("counter", "increment", "* * * * * *", bob)
	require.NoError(t, reg.Create(types.Task{Fingerprint: fp, Owner: bob}))

	aliceTasks := reg.ListFiltered(0, 10, &alice)
	assert.Len(t, aliceTasks, 3)

	all := reg.ListFiltered(0, 2, nil)
	assert.Len(t, all, 2)
}
