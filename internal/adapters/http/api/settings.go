package api

import (
	"net/http"
	"strconv"

	"github.com/okian/runboard/internal/domain/model"
)

// SettingsHandler handles points configuration, references and maintenance.
type SettingsHandler struct {
	deps SettingsDependencies
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(deps SettingsDependencies) *SettingsHandler {
	return &SettingsHandler{deps: deps}
}

// HandleGetPoints handles GET /points-config.
func (h *SettingsHandler) HandleGetPoints(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.deps.PointsConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandlePutPoints handles PUT /points-config. Missing fields keep their
// current value.
func (h *SettingsHandler) HandlePutPoints(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.deps.PointsConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := decode(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.UpdatePointsConfig(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleListReferences handles GET /references?kind=category.
func (h *SettingsHandler) HandleListReferences(w http.ResponseWriter, r *http.Request) {
	kind := model.ReferenceKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = model.KindCategory
	}
	if !kind.Valid() {
		writeError(w, ErrBadRequest)
		return
	}
	refs, err := h.deps.References(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	if refs == nil {
		refs = []model.Reference{}
	}
	writeJSON(w, http.StatusOK, refs)
}

// HandlePostReference handles POST /references.
func (h *SettingsHandler) HandlePostReference(w http.ResponseWriter, r *http.Request) {
	var ref model.Reference
	if err := decode(r, &ref); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.RegisterReference(r.Context(), ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// HandleSweep handles POST /admin/sweep[?resume=true]. The sweep runs in
// the background.
func (h *SettingsHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	resume := false
	if raw := r.URL.Query().Get("resume"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, ErrBadRequest)
			return
		}
		resume = v
	}
	if err := h.deps.StartSweep(resume); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "resume": resume})
}

// HandleMigrateThresholds handles POST /admin/migrate-thresholds.
func (h *SettingsHandler) HandleMigrateThresholds(w http.ResponseWriter, r *http.Request) {
	changed, err := h.deps.MigrateThresholds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if changed == nil {
		changed = []model.Reference{}
	}
	writeJSON(w, http.StatusOK, changed)
}
