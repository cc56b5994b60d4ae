package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage dispatching agents",
}

func init() {
	agentCmd.AddCommand(agentRegisterCmd, agentListCmd, agentGetCmd, agentUnregisterCmd, agentWithdrawCmd)

	agentRegisterCmd.Flags().String("caller", "", "Caller principal, becomes the agent's own principal (required)")
	agentRegisterCmd.Flags().String("payable-account", "", "Account payouts are sent to (defaults to caller)")
	agentRegisterCmd.Flags().String("attached-deposit", "0", "Registration deposit, must cover the storage quota")

	agentListCmd.Flags().Int("offset", 0, "Pagination offset")
	agentListCmd.Flags().Int("limit", 100, "Pagination limit")

	agentUnregisterCmd.Flags().String("caller", "", "Caller principal, must match the agent (required)")
	agentUnregisterCmd.Flags().Bool("force", false, "Bypass the positive-balance guard")

	agentWithdrawCmd.Flags().String("caller", "", "Caller principal, must match the agent (required)")
}

var agentRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		payable, _ := cmd.Flags().GetString("payable-account")
		attachedDeposit, _ := cmd.Flags().GetString("attached-deposit")

		var agent map[string]interface{}
		err := apiRequest(cmd, "POST", "/v1/agents", caller, map[string]interface{}{
			"payable_account":  payable,
			"attached_deposit": attachedDeposit,
		}, &agent)
		if err != nil {
			return err
		}
		printJSON(agent)
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent principals",
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")
		var ids []string
		path := fmt.Sprintf("/v1/agents?offset=%d&limit=%d", offset, limit)
		if err := apiRequest(cmd, "GET", path, "", nil, &ids); err != nil {
			return err
		}
		printJSON(ids)
		return nil
	},
}

var agentGetCmd = &cobra.Command{
	Use:   "get [principal]",
	Short: "Show a single agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var agent map[string]interface{}
		if err := apiRequest(cmd, "GET", "/v1/agents/"+args[0], "", nil, &agent); err != nil {
			return err
		}
		printJSON(agent)
		return nil
	},
}

var agentUnregisterCmd = &cobra.Command{
	Use:   "unregister [principal]",
	Short: "Unregister an agent and pay out its balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		force, _ := cmd.Flags().GetBool("force")
		path := "/v1/agents/" + args[0]
		if force {
			path += "?force=true"
		}
		return apiRequest(cmd, "DELETE", path, caller, nil, nil)
	},
}

var agentWithdrawCmd = &cobra.Command{
	Use:   "withdraw [principal]",
	Short: "Withdraw balance above the storage quota",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		var result struct {
			Withdrawn string `json:"withdrawn"`
		}
		if err := apiRequest(cmd, "POST", "/v1/agents/"+args[0]+"/withdraw", caller, nil, &result); err != nil {
			return err
		}
		fmt.Println(result.Withdrawn)
		return nil
	},
}
