package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/runboard/internal/domain/model"
)

type playerRequest struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	NameColor   string `json:"name_color"`
	SRCUsername string `json:"src_username"`
}

// PlayersHandler handles player requests.
type PlayersHandler struct {
	deps PlayerDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// HandleRegister handles POST /players.
func (h *PlayersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.deps.RegisterPlayer(r.Context(), model.Player{
		UID:         req.UID,
		DisplayName: req.DisplayName,
		NameColor:   req.NameColor,
		SRCUsername: req.SRCUsername,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /players/{id}.
func (h *PlayersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.deps.Player(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleChart handles GET /players/{id}/chart.png.
func (h *PlayersHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	png, err := h.deps.PlayerChart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleRecompute handles POST /players/{id}/recompute.
func (h *PlayersHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Recompute(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, model.ErrPartialBatch):
		writeJSON(w, http.StatusMultiStatus, res)
	default:
		writeError(w, err)
	}
}
