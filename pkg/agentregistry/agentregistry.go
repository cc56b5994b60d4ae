// Package agentregistry implements the agent record store, the
// active/pending queues and rotation cursor, and the storage-quota
// adapter semantics (register/withdraw/unregister) that gate agent
// membership. Fair-share evaluation and the dispatch state machine
// itself live in pkg/engine; this package only owns agent bookkeeping.
package agentregistry

import (
	"errors"
	"fmt"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/storage"
	"github.com/cuemby/cronfleet/pkg/types"
)

var (
	// ErrAlreadyRegistered is returned by Register for a known principal.
	ErrAlreadyRegistered = errors.New("agentregistry: already registered")
	// ErrNotRegistered is returned when a principal has no agent record.
	ErrNotRegistered = errors.New("agentregistry: not registered")
	// ErrInsufficientDeposit is returned when a registration deposit is
	// below the configured storage quota.
	ErrInsufficientDeposit = errors.New("agentregistry: deposit below storage quota")
	// ErrNoWithdrawableBalance is returned when an agent has no balance
	// above the storage quota to withdraw.
	ErrNoWithdrawableBalance = errors.New("agentregistry: no balance above storage quota")
	// ErrPositiveBalance is returned by a non-forced unregister when the
	// agent still holds a balance.
	ErrPositiveBalance = errors.New("agentregistry: positive balance, use force")
)

// Registry is the in-memory, store-backed agent index.
type Registry struct {
	store   storage.Store
	agents  map[types.Principal]*types.Agent
	active  []types.Principal
	pending []types.Principal
	cursor  int
}

// New loads agents, both queues, and the cursor from store.
func New(store storage.Store) (*Registry, error) {
	agents, err := store.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("agentregistry: load agents: %w", err)
	}
	active, err := store.GetActiveQueue()
	if err != nil {
		return nil, fmt.Errorf("agentregistry: load active queue: %w", err)
	}
	pending, err := store.GetPendingQueue()
	if err != nil {
		return nil, fmt.Errorf("agentregistry: load pending queue: %w", err)
	}
	cursor, err := store.GetCursor()
	if err != nil {
		return nil, fmt.Errorf("agentregistry: load cursor: %w", err)
	}

	r := &Registry{
		store:   store,
		agents:  make(map[types.Principal]*types.Agent, len(agents)),
		active:  active,
		pending: pending,
		cursor:  cursor,
	}
	for _, a := range agents {
		r.agents[a.Principal] = a
	}
	return r, nil
}

// Get returns the agent record for principal, if any.
func (r *Registry) Get(principal types.Principal) (*types.Agent, bool) {
	a, ok := r.agents[principal]
	return a, ok
}

// List returns every agent record.
func (r *Registry) List() []*types.Agent {
	out := make([]*types.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// ActiveQueue returns a copy of the active queue.
func (r *Registry) ActiveQueue() []types.Principal {
	out := make([]types.Principal, len(r.active))
	copy(out, r.active)
	return out
}

// ActiveLen reports the number of agents currently in the active queue.
func (r *Registry) ActiveLen() int {
	return len(r.active)
}

// Cursor returns the current rotation cursor.
func (r *Registry) Cursor() int {
	return r.cursor
}

// CursorPrincipal returns the principal the cursor currently points at.
func (r *Registry) CursorPrincipal() (types.Principal, bool) {
	if len(r.active) == 0 {
		return "", false
	}
	return r.active[r.cursor%len(r.active)], true
}

// AdvanceCursor moves the rotation cursor to the next active-queue slot.
func (r *Registry) AdvanceCursor() error {
	if len(r.active) == 0 {
		return nil
	}
	r.cursor = (r.cursor + 1) % len(r.active)
	return r.store.PutCursor(r.cursor)
}

// Register creates a new agent, requiring deposit >= storageQuota. A
// fresh agent is placed Active if the active queue is empty, otherwise
// Pending, per the placement rule. The excess over storageQuota is
// returned as a refund the caller owes back to the registrant.
func (r *Registry) Register(principal, payableAccount types.Principal, deposit, storageQuota amount.Amount) (types.Agent, amount.Amount, error) {
	if _, ok := r.agents[principal]; ok {
		return types.Agent{}, amount.Zero, ErrAlreadyRegistered
	}
	if deposit.Cmp(storageQuota) < 0 {
		return types.Agent{}, amount.Zero, ErrInsufficientDeposit
	}

	status := types.AgentStatusPending
	if len(r.active) == 0 {
		status = types.AgentStatusActive
	}

	agent := types.Agent{
		Principal:      principal,
		Status:         status,
		PayableAccount: payableAccount,
		Balance:        storageQuota,
	}
	if err := r.store.PutAgent(&agent); err != nil {
		return types.Agent{}, amount.Zero, fmt.Errorf("agentregistry: register: %w", err)
	}
	r.agents[principal] = &agent

	if status == types.AgentStatusActive {
		r.active = append(r.active, principal)
		if err := r.store.PutActiveQueue(r.active); err != nil {
			return types.Agent{}, amount.Zero, fmt.Errorf("agentregistry: persist active queue: %w", err)
		}
	} else {
		r.pending = append(r.pending, principal)
		if err := r.store.PutPendingQueue(r.pending); err != nil {
			return types.Agent{}, amount.Zero, fmt.Errorf("agentregistry: persist pending queue: %w", err)
		}
	}

	refund, _ := deposit.Sub(storageQuota)
	return agent, refund, nil
}

// UpdatePayableAccount mutates only the payable account of an existing
// agent.
func (r *Registry) UpdatePayableAccount(principal, payableAccount types.Principal) error {
	agent, ok := r.agents[principal]
	if !ok {
		return ErrNotRegistered
	}
	updated := *agent
	updated.PayableAccount = payableAccount
	if err := r.store.PutAgent(&updated); err != nil {
		return fmt.Errorf("agentregistry: update: %w", err)
	}
	r.agents[principal] = &updated
	return nil
}

// CreditDispatch adds amt to an agent's balance, increments its executed
// counter, and clears last_missed_slot — the bookkeeping for a
// successful proxy_call.
func (r *Registry) CreditDispatch(principal types.Principal, amt amount.Amount) error {
	agent, ok := r.agents[principal]
	if !ok {
		return ErrNotRegistered
	}
	updated := *agent
	updated.Balance = updated.Balance.Add(amt)
	updated.TotalTasksExecuted++
	updated.LastMissedSlot = 0
	if err := r.store.PutAgent(&updated); err != nil {
		return fmt.Errorf("agentregistry: credit: %w", err)
	}
	r.agents[principal] = &updated
	return nil
}

// MarkMissed records slotID as missed for principal, but only if it has
// no earlier unresolved miss (last_missed_slot == 0 means "clean").
func (r *Registry) MarkMissed(principal types.Principal, slotID uint64) error {
	agent, ok := r.agents[principal]
	if !ok || agent.LastMissedSlot != 0 {
		return nil
	}
	updated := *agent
	updated.LastMissedSlot = slotID
	if err := r.store.PutAgent(&updated); err != nil {
		return fmt.Errorf("agentregistry: mark missed: %w", err)
	}
	r.agents[principal] = &updated
	return nil
}

// WithdrawTaskBalance pays out balance-storageQuota to the agent's
// payable account, keeping it registered with exactly storageQuota left.
func (r *Registry) WithdrawTaskBalance(principal types.Principal, storageQuota amount.Amount) (amount.Amount, error) {
	agent, ok := r.agents[principal]
	if !ok {
		return amount.Zero, ErrNotRegistered
	}
	withdrawal, ok := agent.Balance.Sub(storageQuota)
	if !ok || withdrawal.IsZero() {
		return amount.Zero, ErrNoWithdrawableBalance
	}
	updated := *agent
	updated.Balance = storageQuota
	if err := r.store.PutAgent(&updated); err != nil {
		return amount.Zero, fmt.Errorf("agentregistry: withdraw: %w", err)
	}
	r.agents[principal] = &updated
	return withdrawal, nil
}

// Unregister removes principal from the registry and both queues,
// returning its full balance for payout. force bypasses the
// positive-balance guard; non-forced calls only succeed when balance is
// already zero (storage_unregister semantics: min==max==storageQuota,
// so a non-evicted agent's balance is essentially always positive and
// force is the expected path).
func (r *Registry) Unregister(principal types.Principal, force bool) (amount.Amount, error) {
	agent, ok := r.agents[principal]
	if !ok {
		return amount.Zero, ErrNotRegistered
	}
	if !agent.Balance.IsZero() && !force {
		return amount.Zero, ErrPositiveBalance
	}
	payout := agent.Balance
	if err := r.remove(principal); err != nil {
		return amount.Zero, err
	}
	return payout, nil
}

// Evict forcibly removes principal as the heartbeat does: it pays out
// only balance-storageQuota, leaving the quota portion unassigned in the
// available-balance ledger rather than refunded, matching the source
// contract's forced-exit path (as opposed to a voluntary Unregister,
// which returns the full balance). The returned amount is only the
// payout; Heartbeat debits available balance by the agent's full prior
// balance plus one storage-quota share.
func (r *Registry) Evict(principal types.Principal, storageQuota amount.Amount) (amount.Amount, error) {
	agent, ok := r.agents[principal]
	if !ok {
		return amount.Zero, ErrNotRegistered
	}
	withdrawal, ok := agent.Balance.Sub(storageQuota)
	if !ok {
		withdrawal = amount.Zero
	}
	if err := r.remove(principal); err != nil {
		return amount.Zero, err
	}
	return withdrawal, nil
}

// remove deletes an agent record and swap-removes it from whichever
// queue holds it. Swap-with-last trades strict FIFO ordering for O(1)
// removal; the cursor is not re-synced, so rotation fairness is
// statistical rather than exact, which the engine accepts.
func (r *Registry) remove(principal types.Principal) error {
	if err := r.store.DeleteAgent(principal); err != nil {
		return fmt.Errorf("agentregistry: delete: %w", err)
	}
	delete(r.agents, principal)

	if idx := indexOf(r.active, principal); idx >= 0 {
		r.active = swapRemove(r.active, idx)
		if err := r.store.PutActiveQueue(r.active); err != nil {
			return fmt.Errorf("agentregistry: persist active queue: %w", err)
		}
	}
	if idx := indexOf(r.pending, principal); idx >= 0 {
		r.pending = swapRemove(r.pending, idx)
		if err := r.store.PutPendingQueue(r.pending); err != nil {
			return fmt.Errorf("agentregistry: persist pending queue: %w", err)
		}
	}
	return nil
}

func indexOf(queue []types.Principal, p types.Principal) int {
	for i, q := range queue {
		if q == p {
			return i
		}
	}
	return -1
}

func swapRemove(queue []types.Principal, idx int) []types.Principal {
	last := len(queue) - 1
	queue[idx] = queue[last]
	return queue[:last]
}

// Heartbeat evicts stale active agents and promotes pending agents when
// task volume justifies it. It never drops the active queue below one
// agent, and it treats last_missed_slot == 0 as "never missed" (an
// open defect in the source contract, which computes the threshold
// comparison even for a clean agent and would otherwise evict
// everyone).
//
// evictedDebit is the total amount the caller must remove from the
// available-balance ledger: each evicted agent's full prior balance
// plus one storage-quota share, since the agent record (and the
// agent_count term) disappears entirely, even though Evict itself only
// pays the agent the portion above storageQuota.
func (r *Registry) Heartbeat(nowSlot, evictionThreshold, granularity uint64, storageQuota amount.Amount, totalTasks, ratioAgents, ratioTasks uint64) (evicted, promoted []types.Principal, evictedDebit amount.Amount, err error) {
	for _, principal := range r.ActiveQueue() {
		if len(r.active) <= 1 {
			break
		}
		agent, ok := r.Get(principal)
		if !ok || agent.LastMissedSlot == 0 {
			continue
		}
		if nowSlot > agent.LastMissedSlot+evictionThreshold*granularity {
			balanceBefore := agent.Balance
			if _, evErr := r.Evict(principal, storageQuota); evErr != nil {
				return evicted, promoted, evictedDebit, evErr
			}
			evicted = append(evicted, principal)
			evictedDebit = evictedDebit.Add(balanceBefore).Add(storageQuota)
		}
	}

	if totalTasks == 0 || len(r.active) == 0 || ratioAgents == 0 || ratioTasks == 0 {
		return evicted, promoted, evictedDebit, nil
	}
	ratio := ratioTasks / ratioAgents
	if ratio == 0 {
		return evicted, promoted, evictedDebit, nil
	}
	totalAvailableAgents := totalTasks / ratio

	for totalAvailableAgents > uint64(len(r.active)) && len(r.pending) > 0 {
		principal := r.pending[0]
		r.pending = swapRemove(r.pending, 0)
		if err := r.store.PutPendingQueue(r.pending); err != nil {
			return evicted, promoted, evictedDebit, fmt.Errorf("agentregistry: persist pending queue: %w", err)
		}

		agent, ok := r.agents[principal]
		if !ok {
			continue
		}
		updated := *agent
		updated.Status = types.AgentStatusActive
		if err := r.store.PutAgent(&updated); err != nil {
			return evicted, promoted, evictedDebit, fmt.Errorf("agentregistry: promote: %w", err)
		}
		r.agents[principal] = &updated

		r.active = append(r.active, principal)
		if err := r.store.PutActiveQueue(r.active); err != nil {
			return evicted, promoted, evictedDebit, fmt.Errorf("agentregistry: persist active queue: %w", err)
		}
		promoted = append(promoted, principal)
	}
	return evicted, promoted, evictedDebit, nil
}
