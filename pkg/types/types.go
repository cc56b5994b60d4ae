// Package types defines the core data structures shared across cronfleet's
// packages: task and agent records, queues, fingerprints, and global
// configuration. These types are persisted by pkg/storage, mutated by
// pkg/engine, and served read-only by pkg/api.
package types

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/cuemby/cronfleet/pkg/amount"
)

// Principal is an opaque identifier for an owner, agent, or call target.
// The host environment owns the concrete address format; cronfleet treats
// it as a comparable string.
type Principal string

// Fingerprint is a 32-byte content hash identifying a task. It is derived
// from (contract_id, function_id, cadence, owner_id) only — no
// runtime-ephemeral field is mixed in, so the same inputs always produce
// the same fingerprint.
type Fingerprint [32]byte

// String renders the fingerprint as standard base64, the wire encoding
// used in every JSON response and path parameter.
func (f Fingerprint) String() string {
	return base64.StdEncoding.EncodeToString(f[:])
}

// Hex renders the fingerprint as a hex string, used for bbolt keys where
// a sortable fixed-width encoding is convenient.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes a base64-encoded fingerprint as returned by
// Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(b) != len(fp) {
		return fp, errInvalidFingerprintLength
	}
	copy(fp[:], b)
	return fp, nil
}

type fingerprintLengthError struct{}

func (fingerprintLengthError) Error() string { return "types: fingerprint must decode to 32 bytes" }

var errInvalidFingerprintLength = fingerprintLengthError{}

// AgentStatus is the lifecycle state of a registered agent.
type AgentStatus string

const (
	AgentStatusActive  AgentStatus = "active"
	AgentStatusPending AgentStatus = "pending"
)

// Task is the content-addressed record created by create_task. Fields
// above TotalDeposit are immutable after creation; TotalDeposit is the
// sole mutable field, adjusted by refill and by dispatch.
type Task struct {
	Fingerprint    Fingerprint   `json:"fingerprint"`
	Owner          Principal     `json:"owner"`
	ContractID     Principal     `json:"contract_id"`
	FunctionID     string        `json:"function_id"`
	Cadence        string        `json:"cadence"`
	Recurring      bool          `json:"recurring"`
	PerCallDeposit amount.Amount `json:"per_call_deposit"`
	Gas            uint64        `json:"gas"`
	Arguments      []byte        `json:"arguments,omitempty"`
	TotalDeposit   amount.Amount `json:"total_deposit"`
	CreatedAtNanos uint64        `json:"created_at_nanos"`
}

// Agent is the record created by register_agent.
type Agent struct {
	Principal          Principal     `json:"principal"`
	Status             AgentStatus   `json:"status"`
	PayableAccount     Principal     `json:"payable_account"`
	Balance            amount.Amount `json:"balance"`
	TotalTasksExecuted uint64        `json:"total_tasks_executed"`
	LastMissedSlot     uint64        `json:"last_missed_slot"`
}

// Settings is the owner-mutable global configuration record.
//
// AvailableBalance is a shadow ledger, not a wallet: it is maintained by
// pkg/engine as the running sum of every task's total_deposit plus every
// agent's balance plus agent_count*storage_quota, adjusted by the exact
// same delta as whichever term changed, at the same time that term
// changes. It never moves funds itself (pkg/host.Transfer does that) —
// it exists so the accounting invariant in spec.md §8 can be asserted
// directly instead of recomputed by summing every task and agent record.
type Settings struct {
	Owner             Principal     `json:"owner"`
	Paused            bool          `json:"paused"`
	SlotGranularityNs uint64        `json:"slot_granularity_ns"`
	AgentFee          amount.Amount `json:"agent_fee"`
	GasPrice          amount.Amount `json:"gas_price"`
	ProxyCallbackGas  uint64        `json:"proxy_callback_gas"`
	RatioAgents       uint64        `json:"ratio_agents"`
	RatioTasks        uint64        `json:"ratio_tasks"`
	EvictionThreshold uint64        `json:"eviction_threshold"`
	StorageQuota      amount.Amount `json:"storage_quota"`
	MaxGas            uint64        `json:"max_gas"`
	AvailableBalance  amount.Amount `json:"available_balance"`
}

// ExecutionCost is per_call_deposit + gas*gas_price + agent_fee, the
// amount charged against a task's total deposit for a single dispatch.
func ExecutionCost(t Task, s Settings) amount.Amount {
	gasCost := s.GasPrice.MulUint64(t.Gas)
	return t.PerCallDeposit.Add(gasCost).Add(s.AgentFee)
}

// DispatchCredit is the amount credited to the dispatching agent:
// gas*gas_price + agent_fee. The per-call deposit is forwarded to the
// target contract, not kept by the agent.
func DispatchCredit(t Task, s Settings) amount.Amount {
	return s.GasPrice.MulUint64(t.Gas).Add(s.AgentFee)
}
