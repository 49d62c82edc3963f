package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/TimurManjosov/flagdeck/internal/flags"
	"github.com/TimurManjosov/flagdeck/internal/telemetry"
)

// evaluateRequest is the body for POST /v1/evaluate. When FlagIDs is empty
// every registered flag is evaluated. When Context is nil, the container's
// current context applies.
type evaluateRequest struct {
	Context *flags.Context `json:"context,omitempty"`
	FlagIDs []string       `json:"flagIds,omitempty"`
}

type evaluateResponse struct {
	Results     map[string]flags.Evaluation `json:"results"`
	EvaluatedAt string                      `json:"evaluatedAt"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var results map[string]flags.Evaluation
	if len(req.FlagIDs) > 0 {
		results = make(map[string]flags.Evaluation, len(req.FlagIDs))
		for _, id := range req.FlagIDs {
			results[id] = s.container.Evaluate(id, req.Context)
		}
	} else {
		results = s.container.EvaluateAll(req.Context)
	}

	for _, ev := range results {
		telemetry.Evaluations.WithLabelValues(string(ev.Reason)).Inc()
	}

	writeJSON(w, http.StatusOK, evaluateResponse{
		Results:     results,
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
