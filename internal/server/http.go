package server

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/yottachain/mena/internal/ingestion"
	"github.com/yottachain/mena/internal/observability"
	"github.com/yottachain/mena/internal/persistence"
	"github.com/yottachain/mena/internal/projection"
	"github.com/yottachain/mena/internal/query"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxActionBody    = 64 * 1024
)

// Server is the HTTP read API. Everything under /v1 is served from the
// projection tables, so responses can trail the engine by however far
// the projection worker is behind. Writes go through /v1/admin/actions,
// which only queues: acceptance here does not mean the action applied.
type Server struct {
	echo     *echo.Echo
	queries  *query.Service
	injector *ingestion.Injector
	dupes    *persistence.PostgresIdempotencyChecker
	forfeits *projection.ForfeitHistory
	health   *observability.HealthChecker
	logger   zerolog.Logger
}

func New(
	queries *query.Service,
	injector *ingestion.Injector,
	dupes *persistence.PostgresIdempotencyChecker,
	forfeits *projection.ForfeitHistory,
	health *observability.HealthChecker,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		queries:  queries,
		injector: injector,
		dupes:    dupes,
		forfeits: forfeits,
		health:   health,
		logger:   observability.NewLogger("server"),
	}

	e.GET("/healthz", s.healthz)
	e.GET("/readyz", s.readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.GET("/params", s.getParams)
	v1.GET("/accounts/:name", s.getAccount)
	v1.GET("/deposits/:owner", s.getDeposit)
	v1.GET("/miners", s.listMiners)
	v1.GET("/miners/:id", s.getMiner)
	v1.GET("/miners/:id/forfeits", s.getMinerForfeits)
	v1.GET("/pools", s.listPools)
	v1.GET("/pools/:id", s.getPool)
	v1.GET("/tokens/:symbol", s.getTokenStats)
	v1.GET("/balances/:account", s.listBalances)
	v1.GET("/balances/:account/:symbol", s.getBalance)
	v1.GET("/actions", s.getActionHistory)
	v1.GET("/admin/integrity", s.verifyIntegrity)
	v1.POST("/admin/actions", s.submitAction)

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.health.Uptime().String(),
	})
}

func (s *Server) readyz(ctx echo.Context) error {
	if !s.health.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// respond maps query errors to HTTP statuses. sql.ErrNoRows means the
// projection has no such row, which the API reports as 404.
func respond(ctx echo.Context, payload interface{}, err error) error {
	if err == sql.ErrNoRows {
		return ctx.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	}
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return ctx.JSON(http.StatusOK, payload)
}

func (s *Server) getParams(ctx echo.Context) error {
	p, err := s.queries.GetParams(ctx.Request().Context())
	return respond(ctx, p, err)
}

func (s *Server) getAccount(ctx echo.Context) error {
	a, err := s.queries.GetAccount(ctx.Request().Context(), ctx.Param("name"))
	return respond(ctx, a, err)
}

func (s *Server) getDeposit(ctx echo.Context) error {
	d, err := s.queries.GetDeposit(ctx.Request().Context(), ctx.Param("owner"))
	return respond(ctx, d, err)
}

func (s *Server) getMiner(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "miner id must be numeric"})
	}
	m, err := s.queries.GetMiner(ctx.Request().Context(), id)
	return respond(ctx, m, err)
}

func (s *Server) listMiners(ctx echo.Context) error {
	var owner, pool *string
	if v := ctx.QueryParam("owner"); v != "" {
		owner = &v
	}
	if v := ctx.QueryParam("pool"); v != "" {
		pool = &v
	}
	var afterID *uint64
	if v := ctx.QueryParam("after"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "after must be numeric"})
		}
		afterID = &id
	}

	miners, err := s.queries.ListMiners(ctx.Request().Context(), owner, pool, listLimit(ctx), afterID)
	return respond(ctx, miners, err)
}

func (s *Server) getMinerForfeits(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "miner id must be numeric"})
	}
	entries := s.forfeits.QueryByMiner(id, listLimit(ctx))
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"miner_id": id,
		"total":    s.forfeits.Total(id),
		"entries":  entries,
	})
}

func (s *Server) getPool(ctx echo.Context) error {
	p, err := s.queries.GetPool(ctx.Request().Context(), ctx.Param("id"))
	return respond(ctx, p, err)
}

func (s *Server) listPools(ctx echo.Context) error {
	pools, err := s.queries.ListPools(ctx.Request().Context())
	return respond(ctx, pools, err)
}

func (s *Server) getTokenStats(ctx echo.Context) error {
	t, err := s.queries.GetTokenStats(ctx.Request().Context(), ctx.Param("symbol"))
	return respond(ctx, t, err)
}

func (s *Server) getBalance(ctx echo.Context) error {
	b, err := s.queries.GetBalance(ctx.Request().Context(), ctx.Param("account"), ctx.Param("symbol"))
	return respond(ctx, b, err)
}

func (s *Server) listBalances(ctx echo.Context) error {
	balances, err := s.queries.ListBalances(ctx.Request().Context(), ctx.Param("account"))
	return respond(ctx, balances, err)
}

func (s *Server) getActionHistory(ctx echo.Context) error {
	caller := ctx.QueryParam("caller")
	if caller == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "caller query parameter is required"})
	}
	var afterSeq *int64
	if v := ctx.QueryParam("after"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "after must be numeric"})
		}
		afterSeq = &seq
	}

	entries, err := s.queries.GetActionHistory(ctx.Request().Context(), caller, listLimit(ctx), afterSeq)
	return respond(ctx, entries, err)
}

func (s *Server) verifyIntegrity(ctx echo.Context) error {
	report, err := s.queries.VerifyIntegrity(ctx.Request().Context())
	return respond(ctx, report, err)
}

// submitAction accepts the same {kind, body} envelope carried on NATS
// and queues the parsed action for the engine. 202 means queued, not
// applied; callers watch the projections or the outbound stream for
// the result.
func (s *Server) submitAction(ctx echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxActionBody))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "read body: " + err.Error()})
	}

	act, err := ingestion.ParseRawAction(ingestion.RawAction{Data: data})
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	// The engine's dedup cache would drop a resubmission silently;
	// checking the durable log here lets the operator see a 409.
	if dup, err := s.dupes.IsDuplicate(act.Kind().String(), act.IdempotencyKey()); err == nil && dup {
		return ctx.JSON(http.StatusConflict, errorResponse{Error: "action already applied"})
	}

	if err := s.injector.InjectParsed(ctx.Request().Context(), act); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}

	s.logger.Info().
		Str("kind", act.Kind().String()).
		Str("caller", act.ActorName()).
		Msg("action queued via http")
	return ctx.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

func listLimit(ctx echo.Context) int {
	limit := defaultListLimit
	if v := ctx.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
