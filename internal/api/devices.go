package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

// handleListDevices serves GET /devices[?name=a&name=b].
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.ctrl.Devices(nameFilter(r)),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.ctrl.Device(chi.URLParam(r, "device"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListZones serves GET /devices/{device}/zones[?name=...].
func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	d, err := s.ctrl.Device(chi.URLParam(r, "device"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device": d.Name(),
		"zones":  d.ZonesFiltered(nameFilter(r)),
	})
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, err := s.ctrl.Zone(chi.URLParam(r, "device"), chi.URLParam(r, "zone"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.State(chi.URLParam(r, "device"), chi.URLParam(r, "zone"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSetState serves PUT .../state. Every field is required.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var patch mystic.ZoneStatePatch
	if err := decodeJSON(r, &patch, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if patch.Style == nil || patch.Color == nil || patch.Bright == nil || patch.Speed == nil {
		writeBadRequest(w, "style, color, bright and speed are required; use PATCH for a partial update")
		return
	}

	st, err := s.ctrl.SetState(r.Context(), chi.URLParam(r, "device"), chi.URLParam(r, "zone"), patch.Apply(mystic.ZoneState{}))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleMergeState serves PATCH .../state. An empty object only reads.
func (s *Server) handleMergeState(w http.ResponseWriter, r *http.Request) {
	var patch mystic.ZoneStatePatch
	if err := decodeJSON(r, &patch, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	st, err := s.ctrl.MergeState(r.Context(), chi.URLParam(r, "device"), chi.URLParam(r, "zone"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// nameFilter builds a filter from repeated ?name= parameters. None means all.
func nameFilter(r *http.Request) mystic.Filter {
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		return nil
	}
	return mystic.Names(names...)
}

// decodeJSON decodes the request body into v, rejecting unknown fields. With
// allowEmpty an absent body leaves v untouched.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
