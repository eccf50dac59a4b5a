package handlers

import (
	"net/http"
	"strings"

	"extgov/core/governance"
	"extgov/core/store"
	"github.com/go-chi/chi/v5"
)

type ExtensionsHandler struct {
	svc *governance.Service
}

func NewExtensionsHandler(svc *governance.Service) *ExtensionsHandler {
	return &ExtensionsHandler{svc: svc}
}

type extensionPayload struct {
	Name         string            `json:"name"`
	Author       string            `json:"author"`
	Version      string            `json:"version"`
	Kind         string            `json:"kind"`
	Status       string            `json:"status"`
	Files        []string          `json:"files"`
	Routes       []string          `json:"routes"`
	Components   []string          `json:"components"`
	Stylesheets  []string          `json:"stylesheets"`
	Dependencies map[string]string `json:"dependencies"`
	APIEndpoints []string          `json:"api_endpoints"`
	Migrations   []string          `json:"migrations"`
	GlobalState  []string          `json:"global_state"`
}

func (p extensionPayload) extension() store.Extension {
	return store.Extension{
		Name:    p.Name,
		Author:  p.Author,
		Version: p.Version,
		Kind:    store.ExtensionKind(p.Kind),
		Status:  store.ExtensionStatus(p.Status),
		Surface: store.Surface{
			Files:        p.Files,
			Routes:       p.Routes,
			Components:   p.Components,
			Stylesheets:  p.Stylesheets,
			Dependencies: p.Dependencies,
			APIEndpoints: p.APIEndpoints,
			Migrations:   p.Migrations,
			GlobalState:  p.GlobalState,
		},
	}
}

func (h *ExtensionsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := store.ExtensionStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	items, err := h.svc.ListExtensions(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []store.Extension{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ExtensionsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload extensionPayload
	if err := decodeBody(r, &payload); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	ext, created, err := h.svc.RegisterExtension(r.Context(), actor(r), payload.extension())
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"extension": ext, "created": created})
}

func (h *ExtensionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ext, err := h.svc.GetExtension(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extension": ext})
}

func (h *ExtensionsHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, store.StatusDisabled)
}

func (h *ExtensionsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, store.StatusActive)
}

func (h *ExtensionsHandler) setStatus(w http.ResponseWriter, r *http.Request, status store.ExtensionStatus) {
	ext, err := h.svc.SetExtensionStatus(r.Context(), actor(r), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extension": ext})
}
