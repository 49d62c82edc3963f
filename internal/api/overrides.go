package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/flagdeck/internal/flags"
)

type setOverrideRequest struct {
	Value     any        `json:"value"`
	VariantID string     `json:"variantId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.container.GetFlag(id) == nil {
		writeError(w, http.StatusNotFound, "flag not found")
		return
	}

	var req setOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.container.SetOverride(flags.Override{
		FlagID:    id,
		Value:     req.Value,
		VariantID: req.VariantID,
		ExpiresAt: req.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, upsertResponse{OK: true})
}

func (s *Server) handleRemoveOverride(w http.ResponseWriter, r *http.Request) {
	s.container.RemoveOverride(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, upsertResponse{OK: true})
}

func (s *Server) handleClearOverrides(w http.ResponseWriter, _ *http.Request) {
	s.container.ClearOverrides()
	writeJSON(w, http.StatusOK, upsertResponse{OK: true})
}
