package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/types"
)

// webhookBody is the JSON envelope POSTed to a dispatch target. The
// target's contract_id is used verbatim as the webhook URL: cronfleet
// has no name resolution layer of its own, matching the abstract
// "target contract principal" of the task record.
type webhookBody struct {
	Function  string        `json:"function_id"`
	Arguments []byte        `json:"arguments,omitempty"`
	Attached  amount.Amount `json:"attached_deposit"`
	Gas       uint64        `json:"gas"`
}

// NewHTTPInvoker builds an Invoker that POSTs each outbound call as JSON
// to target (interpreted as a URL) and treats any 2xx response as
// delivered.
func NewHTTPInvoker(client *http.Client) Invoker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, target types.Principal, method string, payload []byte, attached amount.Amount, gas uint64) error {
		body, err := json.Marshal(webhookBody{Function: method, Arguments: payload, Attached: attached, Gas: gas})
		if err != nil {
			return fmt.Errorf("host: encode webhook body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, string(target), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("host: build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("host: webhook request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("host: webhook returned %s", resp.Status)
		}
		return nil
	}
}
