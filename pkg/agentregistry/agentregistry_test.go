package agentregistry

import (
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

func TestRegisterFirstAgentIsActiveSecondIsPending(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)

	first, refund, err := reg.Register("agent-a", "payout-a", amount.FromUint64(1000), quota)
	require.NoError(t, err)
	assert.Equal(t, types.AgentStatusActive, first.Status)
	assert.True(t, refund.IsZero())

	second, _, err := reg.Register("agent-b", "payout-b", amount.FromUint64(1500), quota)
	require.NoError(t, err)
	assert.Equal(t, types.AgentStatusPending, second.Status)

	assert.Equal(t, []types.Principal{"agent-a"}, reg.ActiveQueue())
}

func TestRegisterRejectsDepositBelowQuota(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, _, err := reg.Register("agent-a", "payout-a", amount.FromUint64(50), amount.FromUint64(1000))
	assert.ErrorIs(t, err, ErrInsufficientDeposit)
}

// TestAgentTurnTakingCreditsAgent covers scenario 3: dispatch credits
// an agent gas*gas_price+agent_fee and clears any missed-slot mark.
func TestAgentTurnTakingCreditsAgent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)

	require.NoError(t, reg.MarkMissed("agent-a", 42))
	agent, ok := reg.Get("agent-a")
	require.True(t, ok)
	assert.Equal(t, uint64(42), agent.LastMissedSlot)

	credit := amount.FromUint64(300)
	require.NoError(t, reg.CreditDispatch("agent-a", credit))

	agent, ok = reg.Get("agent-a")
	require.True(t, ok)
	assert.Equal(t, uint64(0), agent.LastMissedSlot)
	assert.Equal(t, uint64(1), agent.TotalTasksExecuted)
	assert.Equal(t, quota.Add(credit).String(), agent.Balance.String())
}

// TestLateSlotMarksOnlyFirstMiss covers scenario 4: a later dispatch
// marks the cursor agent's last_missed_slot only if it was still zero.
func TestLateSlotMarksOnlyFirstMiss(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)

	require.NoError(t, reg.MarkMissed("agent-a", 100))
	require.NoError(t, reg.MarkMissed("agent-a", 200))

	agent, ok := reg.Get("agent-a")
	require.True(t, ok)
	assert.Equal(t, uint64(100), agent.LastMissedSlot, "first miss sticks until cleared by a credit")
}

// TestEvictionRemovesStaleAgentButNeverTheLastOne covers scenario 5.
func TestEvictionRemovesStaleAgentButNeverTheLastOne(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)
	_, _, err = reg.Register("agent-b", "payout-b", quota, quota)
	require.NoError(t, err)
	// agent-b registered second lands Pending (active queue had agent-a
	// already); promote it to active directly for this eviction test.
	reg.active = append(reg.active, "agent-b")
	reg.pending = nil

	require.NoError(t, reg.MarkMissed("agent-a", 100))
	evicted, _, debit, err := reg.Heartbeat(100+5*60+1, 5, 60, quota, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.Principal{"agent-a"}, evicted)
	assert.Equal(t, quota.Add(quota).String(), debit.String())
	assert.Equal(t, []types.Principal{"agent-b"}, reg.ActiveQueue())

	// Evicting the sole remaining active agent must not happen.
	require.NoError(t, reg.MarkMissed("agent-b", 100))
	evicted, _, debit, err = reg.Heartbeat(100+5*60+1, 5, 60, quota, 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.True(t, debit.IsZero())
	assert.Equal(t, []types.Principal{"agent-b"}, reg.ActiveQueue())
}

func TestEvictionSkipsCleanAgent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)

	evicted, _, _, err := reg.Heartbeat(1_000_000, 5, 60, quota, 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, evicted, "last_missed_slot == 0 means never missed, not overdue")
}

// TestPromotionRatioFloorDivision covers scenario 6: ratio [A=2, T=5]
// with 5 tasks, 1 active and 1 pending agent promotes the pending one.
func TestPromotionRatioFloorDivision(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)
	_, _, err = reg.Register("agent-b", "payout-b", quota, quota)
	require.NoError(t, err)
	require.Equal(t, []types.Principal{"agent-b"}, reg.pending)

	_, promoted, _, err := reg.Heartbeat(0, 5, 60, quota, 5, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []types.Principal{"agent-b"}, promoted)
	assert.ElementsMatch(t, []types.Principal{"agent-a", "agent-b"}, reg.ActiveQueue())
}

func TestPromotionStallsOnIntegerDivisionFloor(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)
	_, _, err = reg.Register("agent-b", "payout-b", quota, quota)
	require.NoError(t, err)

	// ratio_tasks(1) / ratio_agents(2) floors to 0, so promotion never
	// fires regardless of total_tasks.
	_, promoted, _, err := reg.Heartbeat(0, 5, 60, quota, 1000, 2, 1)
	require.NoError(t, err)
	assert.Empty(t, promoted)
}

func TestWithdrawTaskBalanceLeavesQuotaBehind(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)
	require.NoError(t, reg.CreditDispatch("agent-a", amount.FromUint64(500)))

	withdrawal, err := reg.WithdrawTaskBalance("agent-a", quota)
	require.NoError(t, err)
	assert.Equal(t, "500", withdrawal.String())

	agent, ok := reg.Get("agent-a")
	require.True(t, ok)
	assert.Equal(t, quota.String(), agent.Balance.String())
}

func TestWithdrawTaskBalanceRejectsWhenNothingAboveQuota(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)

	_, err = reg.WithdrawTaskBalance("agent-a", quota)
	assert.ErrorIs(t, err, ErrNoWithdrawableBalance)
}

func TestUnregisterRefundsFullBalanceIncludingQuota(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)
	require.NoError(t, reg.CreditDispatch("agent-a", amount.FromUint64(500)))

	payout, err := reg.Unregister("agent-a", true)
	require.NoError(t, err)
	assert.Equal(t, "1500", payout.String())
	_, ok := reg.Get("agent-a")
	assert.False(t, ok)
}

func TestEvictLeavesQuotaPortionUnrefunded(t *testing.T) {
	reg, _ := newTestRegistry(t)
	quota := amount.FromUint64(1000)
	_, _, err := reg.Register("agent-a", "payout-a", quota, quota)
	require.NoError(t, err)
	require.NoError(t, reg.CreditDispatch("agent-a", amount.FromUint64(500)))

	withdrawal, err := reg.Evict("agent-a", quota)
	require.NoError(t, err)
	assert.Equal(t, "500", withdrawal.String(), "only the above-quota balance is paid out on forced eviction")
	_, ok := reg.Get("agent-a")
	assert.False(t, ok)
}
