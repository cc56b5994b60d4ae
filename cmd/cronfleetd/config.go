package main

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change global scheduler settings",
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)

	configSetCmd.Flags().String("caller", "", "Caller principal, must be the owner (required)")
	configSetCmd.Flags().Bool("paused", false, "Pause or unpause dispatch")
	configSetCmd.Flags().Bool("set-paused", false, "Apply the --paused flag")
	configSetCmd.Flags().Uint64("slot-granularity-ns", 0, "Time wheel slot width in nanoseconds")
	configSetCmd.Flags().String("agent-fee", "", "Flat fee credited to the dispatching agent")
	configSetCmd.Flags().String("gas-price", "", "Price per gas unit")
	configSetCmd.Flags().Uint64("proxy-callback-gas", 0, "Gas reserved for the reschedule callback")
	configSetCmd.Flags().Uint64("ratio-agents", 0, "Fair-share ratio denominator")
	configSetCmd.Flags().Uint64("ratio-tasks", 0, "Fair-share ratio numerator")
	configSetCmd.Flags().Uint64("eviction-threshold", 0, "Missed slots before an active agent is evicted")
	configSetCmd.Flags().String("storage-quota", "", "Minimum balance an agent must maintain")
	configSetCmd.Flags().Uint64("max-gas", 0, "Platform gas ceiling per dispatch")
	configSetCmd.Flags().String("from-file", "", "YAML settings file merged into the request before flag overrides")
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var settings map[string]interface{}
		if err := apiRequest(cmd, "GET", "/v1/info", "", nil, &settings); err != nil {
			return err
		}
		printJSON(settings)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings (owner only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		body := map[string]interface{}{}

		if fromFile, _ := cmd.Flags().GetString("from-file"); fromFile != "" {
			sf, err := loadSettingsFile(fromFile)
			if err != nil {
				return err
			}
			sf.mergeInto(body)
		}

		if setPaused, _ := cmd.Flags().GetBool("set-paused"); setPaused {
			paused, _ := cmd.Flags().GetBool("paused")
			body["paused"] = paused
		}
		addUint64Flag(cmd, body, "slot-granularity-ns", "slot_granularity_ns")
		addStringFlag(cmd, body, "agent-fee", "agent_fee")
		addStringFlag(cmd, body, "gas-price", "gas_price")
		addUint64Flag(cmd, body, "proxy-callback-gas", "proxy_callback_gas")
		addUint64Flag(cmd, body, "ratio-agents", "ratio_agents")
		addUint64Flag(cmd, body, "ratio-tasks", "ratio_tasks")
		addUint64Flag(cmd, body, "eviction-threshold", "eviction_threshold")
		addStringFlag(cmd, body, "storage-quota", "storage_quota")
		addUint64Flag(cmd, body, "max-gas", "max_gas")

		var settings map[string]interface{}
		if err := apiRequest(cmd, "PATCH", "/v1/settings", caller, body, &settings); err != nil {
			return err
		}
		printJSON(settings)
		return nil
	},
}

func addUint64Flag(cmd *cobra.Command, body map[string]interface{}, flag, key string) {
	if !cmd.Flags().Changed(flag) {
		return
	}
	v, _ := cmd.Flags().GetUint64(flag)
	body[key] = v
}

func addStringFlag(cmd *cobra.Command, body map[string]interface{}, flag, key string) {
	if !cmd.Flags().Changed(flag) {
		return
	}
	v, _ := cmd.Flags().GetString(flag)
	body[key] = v
}
