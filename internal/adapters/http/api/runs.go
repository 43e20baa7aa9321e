package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/runboard/internal/domain/model"
)

// submitRequest is the body of POST /runs.
type submitRequest struct {
	PlayerID        string `json:"player_id"`
	Player2ID       string `json:"player2_id"`
	PlayerName      string `json:"player_name"`
	Player2Name     string `json:"player2_name"`
	Category        string `json:"category"`
	Platform        string `json:"platform"`
	Level           string `json:"level"`
	RunType         string `json:"run_type"`
	LeaderboardType string `json:"leaderboard_type"`
	Time            string `json:"time"`
	Date            string `json:"date"`

	ImportedFromSRC bool   `json:"imported_from_src"`
	SRCRunID        string `json:"src_run_id"`
	SRCCategoryName string `json:"src_category_name"`
	SRCPlatformName string `json:"src_platform_name"`
	SRCLevelName    string `json:"src_level_name"`
	SRCPlayerName   string `json:"src_player_name"`
	SRCPlayer2Name  string `json:"src_player2_name"`

	// Lenient stores imports that fail validation with defaulted fields.
	Lenient bool `json:"lenient"`
}

func (s submitRequest) run() model.Run {
	return model.Run{
		PlayerID:        s.PlayerID,
		Player2ID:       s.Player2ID,
		PlayerName:      s.PlayerName,
		Player2Name:     s.Player2Name,
		Category:        s.Category,
		Platform:        s.Platform,
		Level:           s.Level,
		RunType:         model.RunType(s.RunType),
		LeaderboardType: model.LeaderboardType(s.LeaderboardType),
		Time:            s.Time,
		Date:            s.Date,
		ImportedFromSRC: s.ImportedFromSRC,
		SRCRunID:        s.SRCRunID,
		SRCCategoryName: s.SRCCategoryName,
		SRCPlatformName: s.SRCPlatformName,
		SRCLevelName:    s.SRCLevelName,
		SRCPlayerName:   s.SRCPlayerName,
		SRCPlayer2Name:  s.SRCPlayer2Name,
	}
}

type obsoleteRequest struct {
	Obsolete *bool `json:"obsolete"`
}

type claimRequest struct {
	PlayerID string `json:"player_id"`
}

// RunsHandler handles run requests.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleSubmit handles POST /runs. Submitted runs always start unverified.
func (h *RunsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.SubmitRun(r.Context(), req.run(), req.Lenient)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusCreated, out)
}

// HandleGet handles GET /runs/{id}.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleEdit handles PUT /runs/{id} with a partial field document.
func (h *RunsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decode(r, &fields); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.EditRun(r.Context(), chi.URLParam(r, "id"), model.Fields(fields))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /runs/{id}.
func (h *RunsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.DeleteRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// HandleVerify handles POST /runs/{id}/verify. The caller is the verifier.
func (h *RunsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	verifier := ""
	if claims != nil {
		verifier = claims.Subject
	}
	out, err := h.deps.Verify(r.Context(), chi.URLParam(r, "id"), verifier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// HandleUnverify handles POST /runs/{id}/unverify.
func (h *RunsHandler) HandleUnverify(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Unverify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// HandleObsolete handles POST /runs/{id}/obsolete. An empty body marks
// the run obsolete; {"obsolete": false} clears the flag.
func (h *RunsHandler) HandleObsolete(w http.ResponseWriter, r *http.Request) {
	obsolete := true
	if r.ContentLength != 0 {
		var req obsoleteRequest
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Obsolete != nil {
			obsolete = *req.Obsolete
		}
	}
	out, err := h.deps.MarkObsolete(r.Context(), chi.URLParam(r, "id"), obsolete)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// HandleClaim handles POST /runs/{id}/claim. Players claim for themselves;
// admins may claim on behalf of any player.
func (h *RunsHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized)
		return
	}
	var req claimRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	playerID := req.PlayerID
	switch {
	case playerID == "":
		playerID = claims.Subject
	case playerID != claims.Subject && !claims.IsAdmin():
		writeError(w, ErrForbidden)
		return
	}
	if playerID == "" {
		writeError(w, ErrBadRequest)
		return
	}

	out, err := h.deps.Claim(r.Context(), chi.URLParam(r, "id"), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}
