package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/mystic"
)

type healthResponse struct {
	Status   string `json:"status"`
	Session  string `json:"session"`
	Poisoned bool   `json:"poisoned"`
	Devices  int    `json:"devices"`
	Policy   string `json:"level_policy"`
	Dropped  uint64 `json:"events_dropped"`
}

// handleHealth reports 503 once the session is closed or poisoned.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sdk := s.ctrl.SDK()
	resp := healthResponse{
		Status:   "ok",
		Session:  sdk.State().String(),
		Poisoned: sdk.Poisoned(),
		Devices:  len(sdk.Devices()),
		Policy:   sdk.LevelPolicy().String(),
	}
	if s.events != nil {
		resp.Dropped = s.events.Dropped()
	}

	status := http.StatusOK
	if resp.Poisoned || sdk.State() == mystic.SessionClosed {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reload(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.ctrl.Devices(nil),
	})
}

// handleLedger serves GET /ledger?event_type=&device=&zone=&since=&limit=.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeNotFound(w, "ledger is disabled")
		return
	}

	q := r.URL.Query()
	query := ledger.Query{
		EventType: ledger.EventType(q.Get("event_type")),
		Device:    q.Get("device"),
		Zone:      q.Get("zone"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since: want an RFC 3339 timestamp")
			return
		}
		query.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit: want a positive integer")
			return
		}
		query.Limit = limit
	}

	entries, err := s.ledger.Find(query)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
