package api

import (
	"errors"
	"net/http"

	"github.com/cuemby/cronfleet/pkg/engine"
)

// errorResponse is the JSON body written for any non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps err to an HTTP status via errors.Is against pkg/engine's
// sentinels and writes an errorResponse. Unrecognized errors are treated
// as internal and logged at error level rather than echoed verbatim, to
// avoid leaking storage-layer detail to callers.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingCaller):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, engine.ErrNotOwner),
		errors.Is(err, engine.ErrNotTaskOwner),
		errors.Is(err, engine.ErrAgentNotRegistered),
		errors.Is(err, engine.ErrNotYourTurn):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, engine.ErrInvalidCadence),
		errors.Is(err, engine.ErrCadenceRegression),
		errors.Is(err, engine.ErrGasTooHigh),
		errors.Is(err, engine.ErrInvalidTarget),
		errors.Is(err, engine.ErrInsufficientDeposit),
		errors.Is(err, engine.ErrStorageUnderflow):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, engine.ErrTaskExists),
		errors.Is(err, engine.ErrAgentAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, engine.ErrNoTaskForHash),
		errors.Is(err, engine.ErrNoSlotTasks):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
