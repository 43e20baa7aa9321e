package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/normalize"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BoardsHandler handles leaderboard requests.
type BoardsHandler struct {
	deps BoardDependencies
}

// NewBoardsHandler creates a new boards handler.
func NewBoardsHandler(deps BoardDependencies) *BoardsHandler {
	return &BoardsHandler{deps: deps}
}

// HandleGet handles GET /leaderboards. With a key (either ?key=type|level|
// category|platform|runType or the separate parameters) it returns one
// board, otherwise every board.
func (h *BoardsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("key") == "" && q.Get("category") == "" {
		boards, err := h.deps.Leaderboards(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, boards)
		return
	}

	key, err := keyFromQuery(q)
	if err != nil {
		writeError(w, err)
		return
	}
	board, err := h.deps.Leaderboard(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandleExport handles GET /leaderboards/export.xlsx.
func (h *BoardsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.deps.ExportWorkbook(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboards.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func keyFromQuery(q url.Values) (grouping.Key, error) {
	if raw := q.Get("key"); raw != "" {
		return grouping.ParseKey(raw)
	}
	key := grouping.Key{
		LeaderboardType: normalize.LeaderboardType(q.Get("type")),
		Category:        q.Get("category"),
		Platform:        q.Get("platform"),
		RunType:         normalize.RunType(q.Get("run_type")),
	}
	if key.LeaderboardType.LevelScoped() {
		key.Level = q.Get("level")
	}
	if key.Platform == "" {
		return grouping.Key{}, fmt.Errorf("%w: %s", model.ErrValidation, normalize.ProblemPlatform)
	}
	return key, nil
}
