package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/cronfleet/pkg/types"
)

func principalParam(r *http.Request) types.Principal {
	return types.Principal(chi.URLParam(r, "principal"))
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rc, err := requestContext(r, req.AttachedDeposit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	agent, err := s.engine.RegisterAgent(r.Context(), rc, types.Principal(req.PayableAccount))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAgentView(&agent))
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	principal := principalParam(r)
	var req updateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rc, err := requestContext(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.UpdateAgent(rc, principal, types.Principal(req.PayableAccount)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregisterAgent(w http.ResponseWriter, r *http.Request) {
	principal := principalParam(r)
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	rc, err := requestContext(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.UnregisterAgent(r.Context(), rc, principal, force); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdrawTaskBalance(w http.ResponseWriter, r *http.Request) {
	principal := principalParam(r)
	rc, err := requestContext(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	withdrawn, err := s.engine.WithdrawTaskBalance(r.Context(), rc, principal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{Withdrawn: withdrawn.String()})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	principal := principalParam(r)
	agent, ok := s.engine.GetAgent(principal)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "agent not registered"})
		return
	}
	writeJSON(w, http.StatusOK, newAgentView(agent))
}

func (s *Server) handleGetAgentIDs(w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	ids := s.engine.GetAgentIDs(offset, limit)
	writeJSON(w, http.StatusOK, principalsToStrings(ids))
}
