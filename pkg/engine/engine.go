// Package engine orchestrates the scheduler's public operations: task
// and agent lifecycle, the proxy_call dispatch state machine, recurring
// reschedule, and the tick heartbeat. It is the only package that holds
// a lock spanning multiple lower-level registries, matching the "every
// public operation is a single atomic transaction" rule.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/cronfleet/pkg/agentregistry"
	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/cadence"
	"github.com/cuemby/cronfleet/pkg/events"
	"github.com/cuemby/cronfleet/pkg/host"
	"github.com/cuemby/cronfleet/pkg/log"
	"github.com/cuemby/cronfleet/pkg/metrics"
	"github.com/cuemby/cronfleet/pkg/slotindex"
	"github.com/cuemby/cronfleet/pkg/storage"
	"github.com/cuemby/cronfleet/pkg/taskregistry"
	"github.com/cuemby/cronfleet/pkg/types"
)

// rescheduleCallbackMethod is the scheduler's own self-call method name;
// create_task rejects a task that targets it directly, since a task
// dispatching into the reschedule path would corrupt slot placement.
const rescheduleCallbackMethod = "reschedule_callback"

// Engine is the scheduler's core orchestrator.
type Engine struct {
	mu sync.Mutex

	self     types.Principal
	tasks    *taskregistry.Registry
	agents   *agentregistry.Registry
	slots    *slotindex.Index
	store    storage.Store
	clock    host.Clock
	outbound *host.OutboundCaller
	transfer host.Transfer
	settings types.Settings

	// cursorSlot/cursorCount track how many consecutive dispatches the
	// current active-queue cursor holder has made within a single slot,
	// against the ratio_tasks/ratio_agents share. Reset whenever the
	// slot changes.
	cursorSlot  uint64
	cursorCount uint64

	bus *events.Broker
	log zerolog.Logger
}

// SetEventBroker attaches an event broker that Engine publishes
// lifecycle events to. Optional; a nil broker (the default) means
// publishing is skipped.
func (e *Engine) SetEventBroker(bus *events.Broker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus = bus
}

func (e *Engine) publish(eventType events.EventType, message string, metadata map[string]string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(&events.Event{
		Type:     eventType,
		Message:  message,
		Metadata: metadata,
	})
}

// New constructs an Engine from persisted state, rebuilding the
// in-memory time wheel from the store's slot buckets.
func New(store storage.Store, clock host.Clock, outbound *host.OutboundCaller, transfer host.Transfer, self types.Principal) (*Engine, error) {
	tasks, err := taskregistry.New(store)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	agents, err := agentregistry.New(store)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	idx := slotindex.New()
	slotIDs, err := store.ListSlotIDs()
	if err != nil {
		return nil, fmt.Errorf("engine: load slot ids: %w", err)
	}
	for _, slotID := range slotIDs {
		bucket, ok, err := store.GetSlot(slotID)
		if err != nil {
			return nil, fmt.Errorf("engine: load slot %d: %w", slotID, err)
		}
		if !ok {
			continue
		}
		for _, fp := range bucket {
			idx.Insert(slotID, fp)
		}
	}

	settings, err := store.GetSettings()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("engine: load settings: %w", err)
	}
	if settings == nil {
		settings = &types.Settings{}
	}

	return &Engine{
		self:     self,
		tasks:    tasks,
		agents:   agents,
		slots:    idx,
		store:    store,
		clock:    clock,
		outbound: outbound,
		transfer: transfer,
		settings: *settings,
		log:      log.WithComponent("engine"),
	}, nil
}

// Bootstrap persists an initial Settings record. It is a no-op if
// settings already exist, so it is safe to call on every process start.
func (e *Engine) Bootstrap(owner types.Principal, defaults types.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.store.GetSettings(); err == nil {
		return nil
	}
	defaults.Owner = owner
	if err := e.store.PutSettings(&defaults); err != nil {
		return fmt.Errorf("engine: bootstrap settings: %w", err)
	}
	e.settings = defaults
	return nil
}

func (e *Engine) persistSlot(slotID uint64) error {
	bucket, ok := e.slots.Get(slotID)
	if !ok || len(bucket) == 0 {
		return e.store.DeleteSlot(slotID)
	}
	return e.store.PutSlot(slotID, bucket)
}

// creditAvailable and debitAvailable keep Settings.AvailableBalance in
// step with whichever accounting term (a task's total_deposit, an
// agent's balance, or the agent_count*storage_quota term) just changed
// by the same amount, and persist the settings record immediately so
// the ledger survives a restart between two balance-affecting calls.
// Both are no-ops for a zero delta, and debitAvailable floors at zero
// rather than erroring, matching amount.Amount's own underflow
// convention elsewhere in this package.
func (e *Engine) creditAvailable(delta amount.Amount) error {
	if delta.IsZero() {
		return nil
	}
	e.settings.AvailableBalance = e.settings.AvailableBalance.Add(delta)
	return e.store.PutSettings(&e.settings)
}

func (e *Engine) debitAvailable(delta amount.Amount) error {
	if delta.IsZero() {
		return nil
	}
	updated, ok := e.settings.AvailableBalance.Sub(delta)
	if !ok {
		updated = amount.Zero
	}
	e.settings.AvailableBalance = updated
	return e.store.PutSettings(&e.settings)
}

// CreateTask validates and registers a new task, placing its fingerprint
// under the slot matching its cadence's first future occurrence.
func (e *Engine) CreateTask(rc host.RequestContext, contractID types.Principal, functionID, cadenceExpr string, recurring bool, perCallDeposit amount.Amount, gas uint64, args []byte) (types.Fingerprint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settings.Paused {
		return types.Fingerprint{}, ErrPaused
	}

	cad, err := cadence.Parse(cadenceExpr)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("%w: %v", ErrInvalidCadence, err)
	}

	if gas+e.settings.ProxyCallbackGas > e.settings.MaxGas {
		return types.Fingerprint{}, ErrGasTooHigh
	}
	if contractID == e.self && rc.Caller != e.settings.Owner {
		return types.Fingerprint{}, ErrInvalidTarget
	}
	if functionID == rescheduleCallbackMethod {
		return types.Fingerprint{}, ErrInvalidTarget
	}

	task := types.Task{
		Owner:          rc.Caller,
		ContractID:     contractID,
		FunctionID:     functionID,
		Cadence:        cadenceExpr,
		Recurring:      recurring,
		PerCallDeposit: perCallDeposit,
		Gas:            gas,
		Arguments:      args,
		TotalDeposit:   rc.AttachedDeposit,
		CreatedAtNanos: e.clock.NowNanos(),
	}

	minDeposit := types.ExecutionCost(task, e.settings)
	if recurring {
		minDeposit = minDeposit.Add(minDeposit)
	}
	if rc.AttachedDeposit.Cmp(minDeposit) < 0 {
		return types.Fingerprint{}, ErrInsufficientDeposit
	}

	fp := taskregistry.Fingerprint(contractID, functionID, cadenceExpr, rc.Caller)
	task.Fingerprint = fp

	nextNanos, err := cad.NextNanos(task.CreatedAtNanos + 1)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("%w: %v", ErrInvalidCadence, err)
	}
	slotID := slotindex.AlignUp(nextNanos, e.settings.SlotGranularityNs)

	if err := e.tasks.Create(task); err != nil {
		if err == taskregistry.ErrFingerprintExists {
			return types.Fingerprint{}, ErrTaskExists
		}
		return types.Fingerprint{}, fmt.Errorf("engine: create task: %w", err)
	}

	e.slots.Insert(slotID, fp)
	if err := e.persistSlot(slotID); err != nil {
		return types.Fingerprint{}, fmt.Errorf("engine: persist slot: %w", err)
	}
	if err := e.creditAvailable(rc.AttachedDeposit); err != nil {
		return types.Fingerprint{}, fmt.Errorf("engine: credit available balance: %w", err)
	}

	e.log.Info().Str("fingerprint", fp.String()).Uint64("slot_id", slotID).Msg("task created")
	metrics.TasksCreatedTotal.Inc()
	e.publish(events.EventTaskCreated, "task created", map[string]string{"fingerprint": fp.String()})
	return fp, nil
}

// findTaskSlot scans the time wheel for the slot currently holding fp.
// create_task/remove_task are rare relative to dispatch, so a linear
// scan over slot ids is acceptable here; the dispatch hot path never
// calls this.
func (e *Engine) findTaskSlot(fp types.Fingerprint) (uint64, bool) {
	for _, slotID := range e.slots.SlotIDs(0, 1<<31-1) {
		bucket, ok := e.slots.Get(slotID)
		if !ok {
			continue
		}
		for _, candidate := range bucket {
			if candidate == fp {
				return slotID, true
			}
		}
	}
	return 0, false
}

// RemoveTask refunds a task's remaining deposit to its owner and unlinks
// it from the registry and its scheduled slot.
func (e *Engine) RemoveTask(ctx context.Context, rc host.RequestContext, fp types.Fingerprint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks.Get(fp)
	if !ok {
		return ErrNoTaskForHash
	}
	if task.Owner != rc.Caller {
		return ErrNotTaskOwner
	}

	if slotID, ok := e.findTaskSlot(fp); ok {
		e.slots.RemoveFingerprint(slotID, fp)
		if err := e.persistSlot(slotID); err != nil {
			return fmt.Errorf("engine: persist slot: %w", err)
		}
	}

	refund := task.TotalDeposit
	if err := e.tasks.Delete(fp); err != nil {
		return fmt.Errorf("engine: delete task: %w", err)
	}
	if err := e.debitAvailable(refund); err != nil {
		return fmt.Errorf("engine: debit available balance: %w", err)
	}
	if e.transfer != nil {
		if err := e.transfer(ctx, task.Owner, refund); err != nil {
			e.log.Error().Err(err).Msg("task removal refund failed")
		}
	}
	metrics.TasksExitedTotal.WithLabelValues("removed").Inc()
	e.publish(events.EventTaskRemoved, "task removed", map[string]string{"fingerprint": fp.String()})
	return nil
}

// RefillBalance adds the caller's attached deposit to a task's remaining
// total deposit.
func (e *Engine) RefillBalance(rc host.RequestContext, fp types.Fingerprint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks.Get(fp)
	if !ok {
		return ErrNoTaskForHash
	}
	if task.Owner != rc.Caller {
		return ErrNotTaskOwner
	}
	if err := e.tasks.SetTotalDeposit(fp, task.TotalDeposit.Add(rc.AttachedDeposit)); err != nil {
		return fmt.Errorf("engine: refill: %w", err)
	}
	if err := e.creditAvailable(rc.AttachedDeposit); err != nil {
		return fmt.Errorf("engine: credit available balance: %w", err)
	}
	return nil
}

// RegisterAgent enrolls a new agent, refunding any deposit in excess of
// the storage quota.
func (e *Engine) RegisterAgent(ctx context.Context, rc host.RequestContext, payable types.Principal) (types.Agent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settings.Paused {
		return types.Agent{}, ErrPaused
	}
	if payable == "" {
		payable = rc.Caller
	}
	agent, refund, err := e.agents.Register(rc.Caller, payable, rc.AttachedDeposit, e.settings.StorageQuota)
	if err != nil {
		switch err {
		case agentregistry.ErrAlreadyRegistered:
			return types.Agent{}, ErrAgentAlreadyExists
		case agentregistry.ErrInsufficientDeposit:
			return types.Agent{}, ErrInsufficientDeposit
		default:
			return types.Agent{}, fmt.Errorf("engine: register agent: %w", err)
		}
	}
	// Registration grows the ledger by two storage-quota shares: one for
	// the new agent's own Balance (seeded at storageQuota) and one for
	// the agent_count*storage_quota term the invariant also tracks.
	if err := e.creditAvailable(e.settings.StorageQuota.Add(e.settings.StorageQuota)); err != nil {
		return types.Agent{}, fmt.Errorf("engine: credit available balance: %w", err)
	}
	if e.transfer != nil && !refund.IsZero() {
		if err := e.transfer(ctx, rc.Caller, refund); err != nil {
			e.log.Error().Err(err).Msg("registration refund failed")
		}
	}
	metrics.AgentsRegisteredTotal.Inc()
	e.publish(events.EventAgentRegistered, "agent registered", map[string]string{"principal": string(rc.Caller)})
	return agent, nil
}

// UpdateAgent mutates the caller's payable account. The source
// contract's "1 yoctoⓃ attached deposit" proof-of-full-access-key
// convention has no HTTP-service equivalent; authorization here is the
// caller principal matching the target agent principal directly.
func (e *Engine) UpdateAgent(rc host.RequestContext, principal, payable types.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rc.Caller != principal {
		return ErrAgentNotRegistered
	}
	if err := e.agents.UpdatePayableAccount(principal, payable); err != nil {
		if err == agentregistry.ErrNotRegistered {
			return ErrAgentNotRegistered
		}
		return fmt.Errorf("engine: update agent: %w", err)
	}
	return nil
}

// UnregisterAgent removes an agent and pays out its full balance. force
// bypasses the positive-balance guard.
func (e *Engine) UnregisterAgent(ctx context.Context, rc host.RequestContext, principal types.Principal, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rc.Caller != principal {
		return ErrAgentNotRegistered
	}
	agent, ok := e.agents.Get(principal)
	if !ok {
		return ErrAgentNotRegistered
	}
	payout, err := e.agents.Unregister(principal, force)
	if err != nil {
		if err == agentregistry.ErrPositiveBalance {
			return ErrStorageUnderflow
		}
		return fmt.Errorf("engine: unregister agent: %w", err)
	}
	// The agent's full balance leaves the registry, and the agent_count
	// term drops by one storage-quota share.
	if err := e.debitAvailable(payout.Add(e.settings.StorageQuota)); err != nil {
		return fmt.Errorf("engine: debit available balance: %w", err)
	}
	if e.transfer != nil && !payout.IsZero() {
		if err := e.transfer(ctx, agent.PayableAccount, payout); err != nil {
			e.log.Error().Err(err).Msg("unregister payout failed")
		}
	}
	e.publish(events.EventAgentUnregistered, "agent unregistered", map[string]string{"principal": string(principal)})
	return nil
}

// WithdrawTaskBalance pays out an agent's balance above the storage
// quota, keeping it registered.
func (e *Engine) WithdrawTaskBalance(ctx context.Context, rc host.RequestContext, principal types.Principal) (amount.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rc.Caller != principal {
		return amount.Zero, ErrAgentNotRegistered
	}
	agent, ok := e.agents.Get(principal)
	if !ok {
		return amount.Zero, ErrAgentNotRegistered
	}
	withdrawal, err := e.agents.WithdrawTaskBalance(principal, e.settings.StorageQuota)
	if err != nil {
		if err == agentregistry.ErrNoWithdrawableBalance {
			return amount.Zero, ErrStorageUnderflow
		}
		return amount.Zero, fmt.Errorf("engine: withdraw: %w", err)
	}
	if err := e.debitAvailable(withdrawal); err != nil {
		return amount.Zero, fmt.Errorf("engine: debit available balance: %w", err)
	}
	if e.transfer != nil {
		if err := e.transfer(ctx, agent.PayableAccount, withdrawal); err != nil {
			e.log.Error().Err(err).Msg("withdraw payout failed")
		}
	}
	return withdrawal, nil
}

// exitTaskLocked refunds a task's remaining deposit and deletes it,
// without touching slot placement (the caller has already popped the
// fingerprint out of its bucket).
func (e *Engine) exitTaskLocked(ctx context.Context, task *types.Task, reason string) error {
	refund := task.TotalDeposit
	if err := e.tasks.Delete(task.Fingerprint); err != nil {
		return fmt.Errorf("engine: exit task: %w", err)
	}
	if err := e.debitAvailable(refund); err != nil {
		return fmt.Errorf("engine: debit available balance: %w", err)
	}
	if e.transfer != nil && !refund.IsZero() {
		if err := e.transfer(ctx, task.Owner, refund); err != nil {
			e.log.Error().Err(err).Msg("task exit refund failed")
		}
	}
	metrics.TasksExitedTotal.WithLabelValues(reason).Inc()
	e.publish(events.EventTaskExited, reason, map[string]string{"fingerprint": task.Fingerprint.String()})
	return nil
}

// ProxyCall is the dispatch entry point, invoked by a caller claiming to
// be an active agent.
func (e *Engine) ProxyCall(ctx context.Context, rc host.RequestContext) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DispatchDuration)

	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Guard.
	if e.settings.Paused {
		return ErrPaused
	}
	if _, ok := e.agents.Get(rc.Caller); !ok {
		return ErrAgentNotRegistered
	}

	// 2. Locate slot.
	nowSlot := slotindex.AlignDown(e.clock.NowNanos(), e.settings.SlotGranularityNs)
	bucketSlot, ok := e.slots.FloorKey(nowSlot)
	if !ok {
		return ErrNoSlotTasks
	}

	// 3. Empty bucket sweep.
	bucket, ok := e.slots.Get(bucketSlot)
	if !ok || len(bucket) == 0 {
		e.slots.Remove(bucketSlot)
		_ = e.store.DeleteSlot(bucketSlot)
		return nil
	}

	// 4. Fair-share check.
	if bucketSlot == nowSlot {
		if err := e.enforceTurn(rc.Caller); err != nil {
			return err
		}
	} else if e.agents.ActiveLen() > 1 {
		if prev, ok := e.previousCursorPrincipal(); ok {
			if err := e.agents.MarkMissed(prev, bucketSlot); err != nil {
				return fmt.Errorf("engine: mark missed: %w", err)
			}
			e.publish(events.EventAgentMissedTurn, "agent missed dispatch turn", map[string]string{"principal": string(prev), "slot": fmt.Sprint(bucketSlot)})
		}
	}

	// 5. Pop fingerprint.
	fp, ok := e.slots.Pop(bucketSlot)
	if !ok {
		return ErrNoSlotTasks
	}
	if err := e.persistSlot(bucketSlot); err != nil {
		return fmt.Errorf("engine: persist slot: %w", err)
	}

	task, ok := e.tasks.Get(fp)
	if !ok {
		return ErrNoTaskForHash
	}
	taskCopy := *task

	// 6. Affordability.
	required := types.ExecutionCost(taskCopy, e.settings)
	if required.Cmp(taskCopy.TotalDeposit) > 0 {
		metrics.DispatchesTotal.WithLabelValues("exited").Inc()
		return e.exitTaskLocked(ctx, &taskCopy, "exhausted")
	}

	// 7. Credit agent.
	dispatchCredit := types.DispatchCredit(taskCopy, e.settings)
	if err := e.agents.CreditDispatch(rc.Caller, dispatchCredit); err != nil {
		return fmt.Errorf("engine: credit agent: %w", err)
	}
	if err := e.creditAvailable(dispatchCredit); err != nil {
		return fmt.Errorf("engine: credit available balance: %w", err)
	}

	// 8. Debit task.
	preDispatchDeposit := taskCopy.TotalDeposit
	remaining, ok := preDispatchDeposit.Sub(required)
	if !ok {
		remaining = amount.Zero
	}
	if err := e.tasks.SetTotalDeposit(fp, remaining); err != nil {
		return fmt.Errorf("engine: debit task: %w", err)
	}
	// The task's total_deposit only ever falls by as much as it actually
	// held, even when required exceeds it (the preceding affordability
	// check already rejects that case, but remaining floors at zero
	// rather than going negative, same as amount.Amount.Sub elsewhere).
	actualDebit, _ := preDispatchDeposit.Sub(remaining)
	if err := e.debitAvailable(actualDebit); err != nil {
		return fmt.Errorf("engine: debit available balance: %w", err)
	}
	taskCopy.TotalDeposit = remaining

	// 9. Emit outbound call.
	handle, invokeErr := e.outbound.Create(ctx, taskCopy.ContractID, taskCopy.FunctionID, taskCopy.Arguments, taskCopy.PerCallDeposit, taskCopy.Gas)
	if invokeErr != nil {
		e.log.Warn().Err(invokeErr).Str("fingerprint", fp.String()).Msg("dispatch delivery failed, callback still scheduled")
		metrics.DispatchesTotal.WithLabelValues("invocation_failed").Inc()
	}

	e.publish(events.EventTaskDispatched, "task dispatched", map[string]string{"fingerprint": fp.String(), "agent": string(rc.Caller)})

	// 10. Post-call branch.
	canAffordAgain := types.ExecutionCost(taskCopy, e.settings).Cmp(remaining) <= 0
	if !taskCopy.Recurring || !canAffordAgain {
		if invokeErr == nil {
			metrics.DispatchesTotal.WithLabelValues("exited").Inc()
		}
		reason := "exhausted"
		if !taskCopy.Recurring {
			reason = "one_shot_complete"
		}
		return e.exitTaskLocked(ctx, &taskCopy, reason)
	}

	if invokeErr == nil {
		metrics.DispatchesTotal.WithLabelValues("rescheduled").Inc()
	}
	e.outbound.Then(ctx, handle, func(cbCtx context.Context) error {
		return e.RescheduleCallback(cbCtx, fp, nowSlot)
	})
	return nil
}

// enforceTurn implements can_execute for the current-slot path: the
// caller must be at the rotating cursor, and may make up to
// ratio_tasks/ratio_agents consecutive dispatches before the cursor
// advances.
func (e *Engine) enforceTurn(caller types.Principal) error {
	cursor, ok := e.agents.CursorPrincipal()
	if !ok || caller != cursor {
		return ErrNotYourTurn
	}

	nowSlot := slotindex.AlignDown(e.clock.NowNanos(), e.settings.SlotGranularityNs)
	if e.cursorSlot != nowSlot {
		e.cursorSlot = nowSlot
		e.cursorCount = 0
	}
	e.cursorCount++

	share := uint64(1)
	if e.settings.RatioAgents > 0 {
		if s := e.settings.RatioTasks / e.settings.RatioAgents; s > 0 {
			share = s
		}
	}
	if e.cursorCount >= share {
		if err := e.agents.AdvanceCursor(); err != nil {
			return fmt.Errorf("engine: advance cursor: %w", err)
		}
		e.cursorCount = 0
	}
	return nil
}

// previousCursorPrincipal returns the active-queue entry immediately
// before the current cursor, wrapping, for the late-slot miss marker.
func (e *Engine) previousCursorPrincipal() (types.Principal, bool) {
	active := e.agents.ActiveQueue()
	if len(active) == 0 {
		return "", false
	}
	idx := (e.agents.Cursor() - 1 + len(active)) % len(active)
	return active[idx], true
}

// RescheduleCallback is scheduler-private: it runs as the chained
// callback of a recurring dispatch, whether or not the outbound call was
// delivered. It tolerates the task
// having been removed between dispatch and callback delivery by
// returning cleanly instead of failing.
func (e *Engine) RescheduleCallback(ctx context.Context, fp types.Fingerprint, nowSlot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks.Get(fp)
	if !ok {
		return nil
	}

	cad, err := cadence.Parse(task.Cadence)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCadence, err)
	}
	nextNanos, err := cad.NextNanos(e.clock.NowNanos())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCadence, err)
	}
	nextSlot := slotindex.AlignUp(nextNanos, e.settings.SlotGranularityNs)
	if nextSlot <= nowSlot {
		return ErrCadenceRegression
	}

	e.slots.Insert(nextSlot, fp)
	return e.persistSlot(nextSlot)
}

// Tick runs the heartbeat: evicting stale active agents and promoting
// pending agents when task volume justifies it.
func (e *Engine) Tick() (evicted, promoted []types.Principal, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HeartbeatDuration)

	e.mu.Lock()
	defer e.mu.Unlock()

	nowSlot := slotindex.AlignDown(e.clock.NowNanos(), e.settings.SlotGranularityNs)
	totalTasks := uint64(len(e.tasks.List()))
	var evictedDebit amount.Amount
	evicted, promoted, evictedDebit, err = e.agents.Heartbeat(nowSlot, e.settings.EvictionThreshold, e.settings.SlotGranularityNs, e.settings.StorageQuota, totalTasks, e.settings.RatioAgents, e.settings.RatioTasks)
	if err == nil {
		if err = e.debitAvailable(evictedDebit); err != nil {
			return evicted, promoted, fmt.Errorf("engine: debit available balance: %w", err)
		}
		metrics.AgentsEvictedTotal.Add(float64(len(evicted)))
		metrics.AgentsPromotedTotal.Add(float64(len(promoted)))
		for _, p := range evicted {
			e.publish(events.EventAgentEvicted, "agent evicted by heartbeat", map[string]string{"principal": string(p)})
		}
		for _, p := range promoted {
			e.publish(events.EventAgentPromoted, "agent promoted to active", map[string]string{"principal": string(p)})
		}
	}
	return evicted, promoted, err
}

// UpdateSettings applies mutate to a copy of the current settings,
// owner-only.
func (e *Engine) UpdateSettings(rc host.RequestContext, mutate func(*types.Settings)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rc.Caller != e.settings.Owner {
		return ErrNotOwner
	}
	updated := e.settings
	mutate(&updated)
	updated.Owner = e.settings.Owner
	updated.AvailableBalance = e.settings.AvailableBalance

	// storage_quota feeds the invariant's agent_count*storage_quota term
	// directly, so changing it retroactively re-prices every already
	// registered agent's quota share without touching any individual
	// agent.Balance record.
	if updated.StorageQuota.Cmp(e.settings.StorageQuota) != 0 {
		agentCount := uint64(len(e.agents.List()))
		if agentCount > 0 {
			if updated.StorageQuota.Cmp(e.settings.StorageQuota) > 0 {
				delta, _ := updated.StorageQuota.Sub(e.settings.StorageQuota)
				updated.AvailableBalance = updated.AvailableBalance.Add(delta.MulUint64(agentCount))
			} else {
				delta, _ := e.settings.StorageQuota.Sub(updated.StorageQuota)
				adjusted, ok := updated.AvailableBalance.Sub(delta.MulUint64(agentCount))
				if !ok {
					adjusted = amount.Zero
				}
				updated.AvailableBalance = adjusted
			}
		}
	}

	if err := e.store.PutSettings(&updated); err != nil {
		return fmt.Errorf("engine: update settings: %w", err)
	}
	e.settings = updated
	return nil
}

// GetInfo returns the current global configuration.
func (e *Engine) GetInfo() types.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// GetTasks returns a paginated, optionally owner-filtered task list.
func (e *Engine) GetTasks(offset, limit int, owner *types.Principal) []*types.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.ListFiltered(offset, limit, owner)
}

// GetTask returns a single task by fingerprint.
func (e *Engine) GetTask(fp types.Fingerprint) (*types.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Get(fp)
}

// GetAgent returns a single agent by principal.
func (e *Engine) GetAgent(principal types.Principal) (*types.Agent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agents.Get(principal)
}

// GetAgentIDs returns a paginated slice of every known agent principal,
// active and pending combined.
func (e *Engine) GetAgentIDs(offset, limit int) []types.Principal {
	e.mu.Lock()
	defer e.mu.Unlock()
	all := e.agents.List()
	ids := make([]types.Principal, 0, len(all))
	for _, a := range all {
		ids = append(ids, a.Principal)
	}
	if offset >= len(ids) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end]
}

// GetSlotIDs returns a paginated slice of scheduled slot ids, for
// inspecting the time wheel.
func (e *Engine) GetSlotIDs(offset, limit int) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots.SlotIDs(offset, limit)
}

// ListAgents returns every known agent record, for metrics collection
// and the admin listing surface.
func (e *Engine) ListAgents() []*types.Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agents.List()
}

// SlotCount reports how many distinct slots currently hold a bucket.
func (e *Engine) SlotCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots.Len()
}

// TaskCount reports the total number of registered tasks.
func (e *Engine) TaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks.List())
}
