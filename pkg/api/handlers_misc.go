package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/types"
)

// Version, Commit and BuildTime are set via -ldflags at build time,
// mirroring the teacher's cmd/warren version injection.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type versionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: Version, Commit: Commit, BuildTime: BuildTime})
}

func (s *Server) handleProxyCall(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.ProxyCall(r.Context(), rc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	evicted, promoted, err := s.engine.Tick()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickResponse{
		Evicted:  principalsToStrings(evicted),
		Promoted: principalsToStrings(promoted),
	})
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsView(s.engine.GetInfo()))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rc, err := requestContext(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Amount fields are parsed up front so a malformed value fails the
	// whole request before engine.UpdateSettings commits anything.
	var agentFee, gasPrice, storageQuota amount.Amount
	if req.AgentFee != nil {
		if agentFee, err = amount.FromDecimal(*req.AgentFee); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid agent_fee"})
			return
		}
	}
	if req.GasPrice != nil {
		if gasPrice, err = amount.FromDecimal(*req.GasPrice); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid gas_price"})
			return
		}
	}
	if req.StorageQuota != nil {
		if storageQuota, err = amount.FromDecimal(*req.StorageQuota); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid storage_quota"})
			return
		}
	}

	mutate := func(settings *types.Settings) {
		if req.Paused != nil {
			settings.Paused = *req.Paused
		}
		if req.SlotGranularityNs != nil {
			settings.SlotGranularityNs = *req.SlotGranularityNs
		}
		if req.AgentFee != nil {
			settings.AgentFee = agentFee
		}
		if req.GasPrice != nil {
			settings.GasPrice = gasPrice
		}
		if req.ProxyCallbackGas != nil {
			settings.ProxyCallbackGas = *req.ProxyCallbackGas
		}
		if req.RatioAgents != nil {
			settings.RatioAgents = *req.RatioAgents
		}
		if req.RatioTasks != nil {
			settings.RatioTasks = *req.RatioTasks
		}
		if req.EvictionThreshold != nil {
			settings.EvictionThreshold = *req.EvictionThreshold
		}
		if req.StorageQuota != nil {
			settings.StorageQuota = storageQuota
		}
		if req.MaxGas != nil {
			settings.MaxGas = *req.MaxGas
		}
	}

	if err := s.engine.UpdateSettings(rc, mutate); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(s.engine.GetInfo()))
}
