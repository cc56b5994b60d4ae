package main

import (
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Trigger one heartbeat cycle (agent eviction and promotion)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Evicted  []string `json:"evicted"`
			Promoted []string `json:"promoted"`
		}
		if err := apiRequest(cmd, "POST", "/v1/tick", "", nil, &result); err != nil {
			return err
		}
		printJSON(result)
		return nil
	},
}
