package api

import (
	"encoding/base64"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/types"
)

// createTaskRequest is the body of POST /v1/tasks.
type createTaskRequest struct {
	ContractID      string `json:"contract_id"`
	FunctionID      string `json:"function_id"`
	Cadence         string `json:"cadence"`
	Recurring       bool   `json:"recurring"`
	PerCallDeposit  string `json:"per_call_deposit"`
	Gas             uint64 `json:"gas"`
	Arguments       string `json:"arguments,omitempty"` // base64
	AttachedDeposit string `json:"attached_deposit"`
}

type createTaskResponse struct {
	Fingerprint string `json:"fingerprint"`
}

type depositRequest struct {
	AttachedDeposit string `json:"attached_deposit"`
}

type registerAgentRequest struct {
	PayableAccount  string `json:"payable_account,omitempty"`
	AttachedDeposit string `json:"attached_deposit"`
}

type updateAgentRequest struct {
	PayableAccount string `json:"payable_account"`
}

type withdrawResponse struct {
	Withdrawn string `json:"withdrawn"`
}

type tickResponse struct {
	Evicted  []string `json:"evicted"`
	Promoted []string `json:"promoted"`
}

// taskView is the JSON shape served for a task, rendering Fingerprint and
// every Amount field as decimal/base64 strings.
type taskView struct {
	Fingerprint    string `json:"fingerprint"`
	Owner          string `json:"owner"`
	ContractID     string `json:"contract_id"`
	FunctionID     string `json:"function_id"`
	Cadence        string `json:"cadence"`
	Recurring      bool   `json:"recurring"`
	PerCallDeposit string `json:"per_call_deposit"`
	Gas            uint64 `json:"gas"`
	Arguments      string `json:"arguments,omitempty"`
	TotalDeposit   string `json:"total_deposit"`
	CreatedAtNanos uint64 `json:"created_at_nanos"`
}

func newTaskView(t *types.Task) taskView {
	v := taskView{
		Fingerprint:    t.Fingerprint.String(),
		Owner:          string(t.Owner),
		ContractID:     string(t.ContractID),
		FunctionID:     t.FunctionID,
		Cadence:        t.Cadence,
		Recurring:      t.Recurring,
		PerCallDeposit: t.PerCallDeposit.String(),
		Gas:            t.Gas,
		TotalDeposit:   t.TotalDeposit.String(),
		CreatedAtNanos: t.CreatedAtNanos,
	}
	if len(t.Arguments) > 0 {
		v.Arguments = base64.StdEncoding.EncodeToString(t.Arguments)
	}
	return v
}

type agentView struct {
	Principal          string `json:"principal"`
	Status             string `json:"status"`
	PayableAccount     string `json:"payable_account"`
	Balance            string `json:"balance"`
	TotalTasksExecuted uint64 `json:"total_tasks_executed"`
	LastMissedSlot     uint64 `json:"last_missed_slot"`
}

func newAgentView(a *types.Agent) agentView {
	return agentView{
		Principal:          string(a.Principal),
		Status:             string(a.Status),
		PayableAccount:     string(a.PayableAccount),
		Balance:            a.Balance.String(),
		TotalTasksExecuted: a.TotalTasksExecuted,
		LastMissedSlot:     a.LastMissedSlot,
	}
}

type settingsView struct {
	Owner             string `json:"owner"`
	Paused            bool   `json:"paused"`
	SlotGranularityNs uint64 `json:"slot_granularity_ns"`
	AgentFee          string `json:"agent_fee"`
	GasPrice          string `json:"gas_price"`
	ProxyCallbackGas  uint64 `json:"proxy_callback_gas"`
	RatioAgents       uint64 `json:"ratio_agents"`
	RatioTasks        uint64 `json:"ratio_tasks"`
	EvictionThreshold uint64 `json:"eviction_threshold"`
	StorageQuota      string `json:"storage_quota"`
	MaxGas            uint64 `json:"max_gas"`
	AvailableBalance  string `json:"available_balance"`
}

func newSettingsView(s types.Settings) settingsView {
	return settingsView{
		Owner:             string(s.Owner),
		Paused:            s.Paused,
		SlotGranularityNs: s.SlotGranularityNs,
		AgentFee:          s.AgentFee.String(),
		GasPrice:          s.GasPrice.String(),
		ProxyCallbackGas:  s.ProxyCallbackGas,
		RatioAgents:       s.RatioAgents,
		RatioTasks:        s.RatioTasks,
		EvictionThreshold: s.EvictionThreshold,
		StorageQuota:      s.StorageQuota.String(),
		MaxGas:            s.MaxGas,
		AvailableBalance:  s.AvailableBalance.String(),
	}
}

// updateSettingsRequest carries only the fields update_settings permits
// changing; a nil pointer leaves the current value untouched.
type updateSettingsRequest struct {
	Paused            *bool   `json:"paused,omitempty"`
	SlotGranularityNs *uint64 `json:"slot_granularity_ns,omitempty"`
	AgentFee          *string `json:"agent_fee,omitempty"`
	GasPrice          *string `json:"gas_price,omitempty"`
	ProxyCallbackGas  *uint64 `json:"proxy_callback_gas,omitempty"`
	RatioAgents       *uint64 `json:"ratio_agents,omitempty"`
	RatioTasks        *uint64 `json:"ratio_tasks,omitempty"`
	EvictionThreshold *uint64 `json:"eviction_threshold,omitempty"`
	StorageQuota      *string `json:"storage_quota,omitempty"`
	MaxGas            *uint64 `json:"max_gas,omitempty"`
}

func parseAmount(s string, fallback amount.Amount) (amount.Amount, error) {
	if s == "" {
		return fallback, nil
	}
	return amount.FromDecimal(s)
}

func principalsToStrings(ps []types.Principal) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
