package handlers

import (
	"net/http"

	"extgov/core/governance"
	"extgov/core/store"
)

type LogsHandler struct {
	svc *governance.Service
}

func NewLogsHandler(svc *governance.Service) *LogsHandler {
	return &LogsHandler{svc: svc}
}

func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AuditLog(r.Context(), parseLimit(r.URL.Query().Get("limit"), 100, 1000))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []store.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
