package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/engine"
	"github.com/cuemby/cronfleet/pkg/host"
	"github.com/cuemby/cronfleet/pkg/storage"
	"github.com/cuemby/cronfleet/pkg/types"
)

const testOwner = types.Principal("owner")

var testSettings = types.Settings{
	SlotGranularityNs: 60_000_000_000,
	GasPrice:          amount.FromUint64(1),
	AgentFee:          amount.FromUint64(2),
	ProxyCallbackGas:  10,
	MaxGas:            1_000_000,
	RatioAgents:       1,
	RatioTasks:        1,
	EvictionThreshold: 5,
	StorageQuota:      amount.FromUint64(1000),
}

func noopInvoke(ctx context.Context, target types.Principal, method string, payload []byte, attached amount.Amount, gas uint64) error {
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	outbound := host.NewOutboundCaller(noopInvoke, 4)
	eng, err := engine.New(store, host.SystemClock{}, outbound, nil, "cronfleet")
	require.NoError(t, err)
	require.NoError(t, eng.Bootstrap(testOwner, testSettings))

	s := NewServer(eng, "127.0.0.1:0")
	return httptest.NewServer(s.Handler())
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, caller string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateTaskThenGetTask(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodPost, "/v1/tasks", "alice", createTaskRequest{
		ContractID:      "target.contract",
		FunctionID:      "increment",
		Cadence:         "0 * * * * *",
		Recurring:       false,
		PerCallDeposit:  "0",
		Gas:             100,
		AttachedDeposit: "1000",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createTaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.Fingerprint)

	getResp := doRequest(t, srv, http.MethodGet, "/v1/tasks/"+created.Fingerprint, "", nil)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var task taskView
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&task))
	assert.Equal(t, "increment", task.FunctionID)
	assert.Equal(t, created.Fingerprint, task.Fingerprint)
}

func TestCreateTaskRejectsMissingCaller(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodPost, "/v1/tasks", "", createTaskRequest{
		ContractID: "target.contract",
		FunctionID: "increment",
		Cadence:    "0 * * * * *",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateTaskRejectsInsufficientDeposit(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodPost, "/v1/tasks", "alice", createTaskRequest{
		ContractID:      "target.contract",
		FunctionID:      "increment",
		Cadence:         "0 * * * * *",
		PerCallDeposit:  "0",
		Gas:             100,
		AttachedDeposit: "0",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterAgentThenGetAgent(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodPost, "/v1/agents", "agent-1", registerAgentRequest{
		AttachedDeposit: "1000",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var agent agentView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agent))
	assert.Equal(t, "agent-1", agent.Principal)

	getResp := doRequest(t, srv, http.MethodGet, "/v1/agents/agent-1", "", nil)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestGetAgentNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodGet, "/v1/agents/nobody", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTickReturnsEmptyResultOnFreshEngine(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodPost, "/v1/tick", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result tickResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Empty(t, result.Evicted)
	assert.Empty(t, result.Promoted)
}

func TestUpdateSettingsOwnerOnly(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	paused := true
	resp := doRequest(t, srv, http.MethodPatch, "/v1/settings", "not-owner", updateSettingsRequest{Paused: &paused})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp2 := doRequest(t, srv, http.MethodPatch, "/v1/settings", string(testOwner), updateSettingsRequest{Paused: &paused})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var settings settingsView
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&settings))
	assert.True(t, settings.Paused)
}

func TestGetInfoIsPublic(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodGet, "/v1/info", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := doRequest(t, srv, http.MethodGet, "/v1/version", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v versionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.NotEmpty(t, v.Version)
}

func TestProbeTaskReportsTargetReachability(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	createResp := doRequest(t, srv, http.MethodPost, "/v1/tasks", "alice", createTaskRequest{
		ContractID:      target.URL,
		FunctionID:      "increment",
		Cadence:         "0 * * * * *",
		PerCallDeposit:  "0",
		Gas:             100,
		AttachedDeposit: "1000",
	})
	var created createTaskResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()

	probeResp := doRequest(t, srv, http.MethodGet, "/v1/tasks/"+created.Fingerprint+"/probe", "", nil)
	defer probeResp.Body.Close()
	require.Equal(t, http.StatusOK, probeResp.StatusCode)

	var probe probeResponse
	require.NoError(t, json.NewDecoder(probeResp.Body).Decode(&probe))
	assert.True(t, probe.Healthy)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		resp := doRequest(t, srv, http.MethodGet, path, "", nil)
		resp.Body.Close()
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode, "path %s", path)
	}
}
