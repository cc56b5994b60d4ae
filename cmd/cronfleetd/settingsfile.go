package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/types"
)

// settingsFile is the on-disk YAML shape accepted by `serve --config` and
// `config set --from-file`. Every field is a pointer so an absent key
// leaves the corresponding setting untouched, the same optional-field
// convention pkg/api/dto.go uses for updateSettingsRequest.
type settingsFile struct {
	Paused            *bool   `yaml:"paused"`
	SlotGranularityNs *uint64 `yaml:"slot_granularity_ns"`
	AgentFee          *string `yaml:"agent_fee"`
	GasPrice          *string `yaml:"gas_price"`
	ProxyCallbackGas  *uint64 `yaml:"proxy_callback_gas"`
	RatioAgents       *uint64 `yaml:"ratio_agents"`
	RatioTasks        *uint64 `yaml:"ratio_tasks"`
	EvictionThreshold *uint64 `yaml:"eviction_threshold"`
	StorageQuota      *string `yaml:"storage_quota"`
	MaxGas            *uint64 `yaml:"max_gas"`
}

func loadSettingsFile(path string) (settingsFile, error) {
	var sf settingsFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse settings file: %w", err)
	}
	return sf, nil
}

// applyTo overlays the file's fields onto a bootstrap Settings value,
// used by `serve --config` before the first-run Bootstrap call.
func (sf settingsFile) applyTo(s *types.Settings) error {
	if sf.Paused != nil {
		s.Paused = *sf.Paused
	}
	if sf.SlotGranularityNs != nil {
		s.SlotGranularityNs = *sf.SlotGranularityNs
	}
	if sf.AgentFee != nil {
		v, err := amount.FromDecimal(*sf.AgentFee)
		if err != nil {
			return fmt.Errorf("agent_fee: %w", err)
		}
		s.AgentFee = v
	}
	if sf.GasPrice != nil {
		v, err := amount.FromDecimal(*sf.GasPrice)
		if err != nil {
			return fmt.Errorf("gas_price: %w", err)
		}
		s.GasPrice = v
	}
	if sf.ProxyCallbackGas != nil {
		s.ProxyCallbackGas = *sf.ProxyCallbackGas
	}
	if sf.RatioAgents != nil {
		s.RatioAgents = *sf.RatioAgents
	}
	if sf.RatioTasks != nil {
		s.RatioTasks = *sf.RatioTasks
	}
	if sf.EvictionThreshold != nil {
		s.EvictionThreshold = *sf.EvictionThreshold
	}
	if sf.StorageQuota != nil {
		v, err := amount.FromDecimal(*sf.StorageQuota)
		if err != nil {
			return fmt.Errorf("storage_quota: %w", err)
		}
		s.StorageQuota = v
	}
	if sf.MaxGas != nil {
		s.MaxGas = *sf.MaxGas
	}
	return nil
}

// mergeInto copies the file's fields into a PATCH /v1/settings request
// body, used by `config set --from-file`. Explicit flags are applied by
// the caller after this merge, so a flag on the command line always
// wins over the same key in the file.
func (sf settingsFile) mergeInto(body map[string]interface{}) {
	if sf.Paused != nil {
		body["paused"] = *sf.Paused
	}
	if sf.SlotGranularityNs != nil {
		body["slot_granularity_ns"] = *sf.SlotGranularityNs
	}
	if sf.AgentFee != nil {
		body["agent_fee"] = *sf.AgentFee
	}
	if sf.GasPrice != nil {
		body["gas_price"] = *sf.GasPrice
	}
	if sf.ProxyCallbackGas != nil {
		body["proxy_callback_gas"] = *sf.ProxyCallbackGas
	}
	if sf.RatioAgents != nil {
		body["ratio_agents"] = *sf.RatioAgents
	}
	if sf.RatioTasks != nil {
		body["ratio_tasks"] = *sf.RatioTasks
	}
	if sf.EvictionThreshold != nil {
		body["eviction_threshold"] = *sf.EvictionThreshold
	}
	if sf.StorageQuota != nil {
		body["storage_quota"] = *sf.StorageQuota
	}
	if sf.MaxGas != nil {
		body["max_gas"] = *sf.MaxGas
	}
}
