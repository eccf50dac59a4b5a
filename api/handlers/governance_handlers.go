package handlers

import (
	"net/http"

	"extgov/core/governance"
	"extgov/core/stress"
	"github.com/go-chi/chi/v5"
)

type GovernanceHandler struct {
	svc *governance.Service
}

func NewGovernanceHandler(svc *governance.Service) *GovernanceHandler {
	return &GovernanceHandler{svc: svc}
}

func (h *GovernanceHandler) Scan(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Scan(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *GovernanceHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Analyze(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StressTest accepts an optional matrix override; every omitted dimension
// keeps its default set.
func (h *GovernanceHandler) StressTest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TestTypes []string `json:"test_types"`
		Devices   []string `json:"devices"`
		Networks  []string `json:"networks"`
	}
	if err := decodeBody(r, &payload); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if q := r.URL.Query(); len(payload.TestTypes)+len(payload.Devices)+len(payload.Networks) == 0 {
		payload.TestTypes = splitCSV(q.Get("test_types"))
		payload.Devices = splitCSV(q.Get("devices"))
		payload.Networks = splitCSV(q.Get("networks"))
	}
	var matrix *stress.MatrixConfig
	if len(payload.TestTypes)+len(payload.Devices)+len(payload.Networks) > 0 {
		m, err := stress.ParseMatrix(payload.TestTypes, payload.Devices, payload.Networks)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		matrix = &m
	}
	res, err := h.svc.StressTest(r.Context(), actor(r), chi.URLParam(r, "id"), matrix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *GovernanceHandler) ConflictCheck(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ConflictCheck(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *GovernanceHandler) RiskAssess(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RiskAssess(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *GovernanceHandler) GuardEvaluate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Evaluate(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *GovernanceHandler) GuardRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GuardRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"guard": rec})
}

func (h *GovernanceHandler) RunSimulation(w http.ResponseWriter, r *http.Request) {
	var req governance.SimulationRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	res, err := h.svc.RunSimulation(r.Context(), actor(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
