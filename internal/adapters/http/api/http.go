// Package api serves the leaderboard over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/lifecycle"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/types"
	"github.com/okian/runboard/pkg/logger"
)

// RoleAdmin may moderate runs and change settings.
const RoleAdmin = "admin"

const maxBodyBytes = 1 << 20

// RunDependencies covers run submission and moderation.
type RunDependencies interface {
	SubmitRun(ctx context.Context, run model.Run, lenient bool) (lifecycle.Outcome, error)
	Run(ctx context.Context, id string) (model.Run, error)
	EditRun(ctx context.Context, id string, fields model.Fields) (lifecycle.Outcome, error)
	DeleteRun(ctx context.Context, id string) (lifecycle.Outcome, error)
	Verify(ctx context.Context, id, verifier string) (lifecycle.Outcome, error)
	Unverify(ctx context.Context, id string) (lifecycle.Outcome, error)
	MarkObsolete(ctx context.Context, id string, obsolete bool) (lifecycle.Outcome, error)
	Claim(ctx context.Context, id, playerID string) (lifecycle.Outcome, error)
}

// PlayerDependencies covers player registration and reads.
type PlayerDependencies interface {
	RegisterPlayer(ctx context.Context, p model.Player) (model.Player, error)
	Player(ctx context.Context, uid string) (types.PlayerProfile, error)
	PlayerChart(ctx context.Context, uid string) ([]byte, error)
	Recompute(ctx context.Context, uid string) (aggregate.Result, error)
}

// BoardDependencies covers leaderboard reads and exports.
type BoardDependencies interface {
	Leaderboard(ctx context.Context, key grouping.Key) (types.Board, error)
	Leaderboards(ctx context.Context) ([]types.Board, error)
	ExportWorkbook(ctx context.Context, w io.Writer) error
}

// SettingsDependencies covers points configuration, references and sweeps.
type SettingsDependencies interface {
	PointsConfig(ctx context.Context) (model.PointsConfig, error)
	UpdatePointsConfig(ctx context.Context, cfg model.PointsConfig) error
	RegisterReference(ctx context.Context, ref model.Reference) error
	References(ctx context.Context, kind model.ReferenceKind) ([]model.Reference, error)
	MigrateThresholds(ctx context.Context) ([]model.Reference, error)
	StartSweep(resume bool) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RunDependencies
	PlayerDependencies
	BoardDependencies
	SettingsDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	runsHandler     *RunsHandler
	playersHandler  *PlayersHandler
	boardsHandler   *BoardsHandler
	settingsHandler *SettingsHandler

	auth        *Authenticator
	submitRate  rate.Limit
	submitBurst int
	logger      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		runsHandler:     NewRunsHandler(deps),
		playersHandler:  NewPlayersHandler(deps),
		boardsHandler:   NewBoardsHandler(deps),
		settingsHandler: NewSettingsHandler(deps),
		submitRate:      rate.Inf,
		logger:          logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.Metrics())
	r.Get("/stats", s.statsHandler.HandleStats)

	admin := func(r chi.Router) chi.Router {
		return r.With(s.authenticate, RequireRole(RoleAdmin))
	}

	r.Route("/runs", func(r chi.Router) {
		r.With(RateLimitMiddleware(NewIPRateLimiter(s.submitRate, s.submitBurst))).
			Post("/", s.runsHandler.HandleSubmit)
		r.Get("/{id}", s.runsHandler.HandleGet)
		admin(r).Put("/{id}", s.runsHandler.HandleEdit)
		admin(r).Delete("/{id}", s.runsHandler.HandleDelete)
		admin(r).Post("/{id}/verify", s.runsHandler.HandleVerify)
		admin(r).Post("/{id}/unverify", s.runsHandler.HandleUnverify)
		admin(r).Post("/{id}/obsolete", s.runsHandler.HandleObsolete)
		r.With(s.authenticate).Post("/{id}/claim", s.runsHandler.HandleClaim)
	})

	r.Get("/leaderboards", s.boardsHandler.HandleGet)
	r.Get("/leaderboards/export.xlsx", s.boardsHandler.HandleExport)

	r.Route("/players", func(r chi.Router) {
		admin(r).Post("/", s.playersHandler.HandleRegister)
		r.Get("/{id}", s.playersHandler.HandleGet)
		r.Get("/{id}/chart.png", s.playersHandler.HandleChart)
		admin(r).Post("/{id}/recompute", s.playersHandler.HandleRecompute)
	})

	r.Get("/points-config", s.settingsHandler.HandleGetPoints)
	admin(r).Put("/points-config", s.settingsHandler.HandlePutPoints)
	r.Get("/references", s.settingsHandler.HandleListReferences)
	admin(r).Post("/references", s.settingsHandler.HandlePostReference)
	admin(r).Post("/admin/sweep", s.settingsHandler.HandleSweep)
	admin(r).Post("/admin/migrate-thresholds", s.settingsHandler.HandleMigrateThresholds)

	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.auth == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, ErrUnauthorized)
		})
	}
	return s.auth.Middleware(next)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Code: code, Message: err.Error()}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Problems = verr.Problems
	}
	var perr *model.PartialBatchFailure
	if errors.As(err, &perr) {
		resp.Failed = perr.Failed
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

// writeOutcome reports a transition. Follow-up failures do not undo the
// change, so they are returned alongside a success status.
func writeOutcome(w http.ResponseWriter, status int, out lifecycle.Outcome) {
	if !out.OK() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, out)
}
