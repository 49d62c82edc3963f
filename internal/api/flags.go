package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/flagdeck/internal/flags"
	"github.com/TimurManjosov/flagdeck/internal/telemetry"
)

type listFlagsResponse struct {
	Flags []flags.Definition `json:"flags"`
}

func (s *Server) handleListFlags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listFlagsResponse{Flags: s.container.Flags()})
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flag := s.container.GetFlag(id)
	if flag == nil {
		writeError(w, http.StatusNotFound, "flag not found")
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

type upsertResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleUpsertFlag(w http.ResponseWriter, r *http.Request) {
	var def flags.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if result := def.Validate(); !result.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  http.StatusText(http.StatusBadRequest),
			"fields": result.Errors,
		})
		return
	}

	exists := s.container.GetFlag(def.ID) != nil
	if exists {
		s.container.UpdateFlag(def)
	} else {
		s.container.AddFlag(def)
	}
	telemetry.RegisteredFlags.Set(float64(len(s.container.Flags())))

	code := http.StatusCreated
	if exists {
		code = http.StatusOK
	}
	writeJSON(w, code, upsertResponse{OK: true})
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	s.container.RemoveFlag(chi.URLParam(r, "id"))
	telemetry.RegisteredFlags.Set(float64(len(s.container.Flags())))
	writeJSON(w, http.StatusOK, upsertResponse{OK: true})
}

func (s *Server) handleListSegments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"segments": s.container.Segments()})
}

func (s *Server) handleSetSegments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Segments []flags.UserSegment `json:"segments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.container.SetSegments(body.Segments)
	writeJSON(w, http.StatusOK, upsertResponse{OK: true})
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var ctx flags.Context
	if err := json.NewDecoder(r.Body).Decode(&ctx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.container.SetContext(ctx)
	writeJSON(w, http.StatusOK, upsertResponse{OK: true})
}
