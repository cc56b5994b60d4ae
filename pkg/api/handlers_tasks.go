package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/health"
	"github.com/cuemby/cronfleet/pkg/types"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rc, err := requestContext(r, req.AttachedDeposit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	perCallDeposit, err := parseAmount(req.PerCallDeposit, amount.Zero)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid per_call_deposit"})
		return
	}
	var args []byte
	if req.Arguments != "" {
		args, err = base64.StdEncoding.DecodeString(req.Arguments)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid arguments encoding"})
			return
		}
	}

	fp, err := s.engine.CreateTask(rc, types.Principal(req.ContractID), req.FunctionID, req.Cadence, req.Recurring, perCallDeposit, req.Gas, args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createTaskResponse{Fingerprint: fp.String()})
}

func fingerprintParam(r *http.Request) (types.Fingerprint, error) {
	return types.ParseFingerprint(chi.URLParam(r, "fp"))
}

func (s *Server) handleRemoveTask(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprintParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid fingerprint"})
		return
	}
	rc, err := requestContext(r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.RemoveTask(r.Context(), rc, fp); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefillBalance(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprintParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid fingerprint"})
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rc, err := requestContext(r, req.AttachedDeposit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.RefillBalance(rc, fp); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprintParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid fingerprint"})
		return
	}
	task, ok := s.engine.GetTask(fp)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no task for fingerprint"})
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(task))
}

func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	var owner *types.Principal
	if v := r.URL.Query().Get("owner"); v != "" {
		p := types.Principal(v)
		owner = &p
	}
	tasks := s.engine.GetTasks(offset, limit, owner)
	views := make([]taskView, len(tasks))
	for i, t := range tasks {
		views[i] = newTaskView(t)
	}
	writeJSON(w, http.StatusOK, views)
}

// probeResponse reports whether a task's dispatch target currently
// answers over HTTP. It is a diagnostic only; it never touches task or
// agent accounting.
type probeResponse struct {
	Healthy    bool   `json:"healthy"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

func (s *Server) handleProbeTask(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprintParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid fingerprint"})
		return
	}
	task, ok := s.engine.GetTask(fp)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no task for fingerprint"})
		return
	}
	checker := health.NewHTTPChecker(string(task.ContractID)).WithMethod(http.MethodHead)
	result := checker.Check(r.Context())
	writeJSON(w, http.StatusOK, probeResponse{
		Healthy:    result.Healthy,
		Message:    result.Message,
		DurationMs: result.Duration.Milliseconds(),
	})
}

func (s *Server) handleGetSlotIDs(w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	writeJSON(w, http.StatusOK, s.engine.GetSlotIDs(offset, limit))
}
