package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/mysticd/internal/actions"
	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/scheduler"
)

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	infos := []actions.Info{}
	if s.actionNames != nil {
		infos = s.actionNames.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": infos})
}

// handleInvokeAction serves POST /actions/{name}. The JSON body, if any, is passed
// to the action as its args.
func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeNotFound(w, "scripting is disabled")
		return
	}

	args := map[string]any{}
	if err := decodeJSON(r, &args, true); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	if timeout := s.cfg.RequestTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name := chi.URLParam(r, "name")
	if err := s.actions.InvokeAction(ctx, name, args); err != nil {
		switch {
		case ctx.Err() != nil:
			writeDomainError(w, ctx.Err())
		case errors.Is(err, actions.ErrNotFound), control.KindOf(err) != control.KindSDK:
			writeDomainError(w, err)
		default:
			writeError(w, http.StatusInternalServerError, ErrCodeActionFailed, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action":         name,
		"correlation_id": requestIDFrom(r.Context()),
	})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	entries := []scheduler.Entry{}
	if s.schedules != nil {
		entries = s.schedules.Entries()
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": entries})
}
