package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
}

func init() {
	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskGetCmd, taskRemoveCmd, taskRefillCmd)

	taskCreateCmd.Flags().String("caller", "", "Caller principal (required)")
	taskCreateCmd.Flags().String("contract-id", "", "Dispatch target principal (required)")
	taskCreateCmd.Flags().String("function-id", "", "Dispatch target function name (required)")
	taskCreateCmd.Flags().String("cadence", "", "Six or seven field cron cadence expression (required)")
	taskCreateCmd.Flags().Bool("recurring", false, "Reschedule after each successful dispatch")
	taskCreateCmd.Flags().String("per-call-deposit", "0", "Amount forwarded to the target on each dispatch")
	taskCreateCmd.Flags().Uint64("gas", 0, "Gas budget for the dispatch")
	taskCreateCmd.Flags().String("attached-deposit", "0", "Deposit attached to fund the task's dispatches")

	taskListCmd.Flags().Int("offset", 0, "Pagination offset")
	taskListCmd.Flags().Int("limit", 100, "Pagination limit")
	taskListCmd.Flags().String("owner", "", "Filter by owner principal")

	taskRemoveCmd.Flags().String("caller", "", "Caller principal, must be the task owner (required)")

	taskRefillCmd.Flags().String("caller", "", "Caller principal, must be the task owner (required)")
	taskRefillCmd.Flags().String("attached-deposit", "0", "Amount to add to the task's balance (required)")
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new task",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		contractID, _ := cmd.Flags().GetString("contract-id")
		functionID, _ := cmd.Flags().GetString("function-id")
		cadence, _ := cmd.Flags().GetString("cadence")
		recurring, _ := cmd.Flags().GetBool("recurring")
		perCallDeposit, _ := cmd.Flags().GetString("per-call-deposit")
		gas, _ := cmd.Flags().GetUint64("gas")
		attachedDeposit, _ := cmd.Flags().GetString("attached-deposit")

		var created struct {
			Fingerprint string `json:"fingerprint"`
		}
		err := apiRequest(cmd, "POST", "/v1/tasks", caller, map[string]interface{}{
			"contract_id":      contractID,
			"function_id":      functionID,
			"cadence":          cadence,
			"recurring":        recurring,
			"per_call_deposit": perCallDeposit,
			"gas":              gas,
			"attached_deposit": attachedDeposit,
		}, &created)
		if err != nil {
			return err
		}
		fmt.Println(created.Fingerprint)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")
		owner, _ := cmd.Flags().GetString("owner")

		path := fmt.Sprintf("/v1/tasks?offset=%d&limit=%d", offset, limit)
		if owner != "" {
			path += "&owner=" + owner
		}
		var tasks []map[string]interface{}
		if err := apiRequest(cmd, "GET", path, "", nil, &tasks); err != nil {
			return err
		}
		printJSON(tasks)
		return nil
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get [fingerprint]",
	Short: "Show a single task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var task map[string]interface{}
		if err := apiRequest(cmd, "GET", "/v1/tasks/"+args[0], "", nil, &task); err != nil {
			return err
		}
		printJSON(task)
		return nil
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove [fingerprint]",
	Short: "Remove a task and refund its remaining balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		return apiRequest(cmd, "DELETE", "/v1/tasks/"+args[0], caller, nil, nil)
	},
}

var taskRefillCmd = &cobra.Command{
	Use:   "refill [fingerprint]",
	Short: "Add to a task's remaining balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		attachedDeposit, _ := cmd.Flags().GetString("attached-deposit")
		return apiRequest(cmd, "POST", "/v1/tasks/"+args[0]+"/refill", caller, map[string]interface{}{
			"attached_deposit": attachedDeposit,
		}, nil)
	},
}
