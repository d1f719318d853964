package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

type captureRequest struct {
	Devices []string `json:"devices,omitempty"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeNotFound(w, "profiles are disabled")
		return
	}
	names, err := s.profiles.Names()
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": names})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeNotFound(w, "profiles are disabled")
		return
	}
	p, err := s.profiles.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCaptureProfile serves POST /profiles/{name} with an optional
// {"devices": [...]} body restricting the capture.
func (s *Server) handleCaptureProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeNotFound(w, "profiles are disabled")
		return
	}

	var req captureRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var f mystic.Filter
	if len(req.Devices) > 0 {
		f = mystic.Names(req.Devices...)
	}

	p, err := s.profiles.Capture(chi.URLParam(r, "name"), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleApplyProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeNotFound(w, "profiles are disabled")
		return
	}
	res, err := s.profiles.Apply(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		writeNotFound(w, "profiles are disabled")
		return
	}
	if err := s.profiles.Delete(chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
