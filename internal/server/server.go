// Package server is the HTTP adapter over the query service and the
// refresh orchestrator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/metrics"
	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/refresh"
)

// Querier answers read requests.
type Querier interface {
	Query(ctx context.Context, q model.QueryParams) (*model.Page, error)
	TopPerformers(ctx context.Context, f model.TopFilter) ([]model.StatRow, error)
	SearchPlayers(ctx context.Context, name string, season, limit int) ([]model.PlayerMatch, error)
	PlayerTrend(ctx context.Context, f model.TrendFilter) ([]model.StatRow, error)
	Slate(ctx context.Context, f model.SlateFilter) ([]model.SlateEntry, error)
	Compare(ctx context.Context, f model.CompareFilter) (*model.Comparison, error)
	Summary(ctx context.Context, season int) (*model.SeasonSummary, error)
	Injuries(ctx context.Context, f model.InjuryFilter) ([]model.InjuryRecord, error)
	InjurySummary(ctx context.Context) (model.InjurySummary, error)
	Cache() *cache.Cache[any]
}

// Refresher runs refreshes on demand.
type Refresher interface {
	Run(ctx context.Context, req refresh.Request) (*model.RefreshReport, error)
	Last() *model.RefreshReport
}

// StatsSource reports warehouse contents.
type StatsSource interface {
	Stats(ctx context.Context) (*model.WarehouseStats, error)
}

// Deps are the services the routes call. Metrics may be nil.
type Deps struct {
	Query     Querier
	Refresher Refresher
	Warehouse StatsSource
	Metrics   *metrics.Manager
}

// Server serves the JSON API.
type Server struct {
	deps    Deps
	origins []string
	log     *zap.Logger
}

// New creates a server. origins lists the allowed CORS origins.
func New(deps Deps, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		deps:    deps,
		origins: origins,
		log:     zap.L().With(zap.String("component", "server")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Get("/top", s.top)
		r.Get("/players/search", s.search)
		r.Get("/players/trend", s.trend)
		r.Get("/players/compare", s.compare)
		r.Get("/summary", s.summary)
		r.Get("/injuries", s.injuries)
		r.Get("/injuries/summary", s.injurySummary)
		r.Get("/slates/{season}/{week}", s.slate)
		r.Get("/status", s.status)
		r.Post("/refresh", s.refresh)
		r.Delete("/cache", s.clearCache)
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

// observe records request metrics and logs by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		s.deps.Metrics.ObserveHTTP(route, r.Method, ww.Status(), elapsed)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	q := model.QueryParams{
		Season:    p.num("season"),
		Week:      p.num("week"),
		WeekStart: p.num("week_start"),
		WeekEnd:   p.num("week_end"),
		Position:  p.str("position"),
		Team:      p.str("team"),
		Player:    p.str("player"),
		Page:      p.num("page"),
		PageSize:  p.num("page_size"),
		Sort:      p.str("sort"),
	}
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	page, err := s.deps.Query.Query(r.Context(), q)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.publishCache()
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) top(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	f := model.TopFilter{
		Season:   p.num("season"),
		Position: p.str("position"),
		Stat:     p.str("stat"),
		Limit:    p.num("limit"),
	}
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	rows, err := s.deps.Query.TopPerformers(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	name, season, limit := p.str("name"), p.num("season"), p.num("limit")
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	matches, err := s.deps.Query.SearchPlayers(r.Context(), name, season, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": matches})
}

func (s *Server) trend(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	f := model.TrendFilter{
		Names:     p.list("name"),
		Season:    p.num("season"),
		WeekStart: p.num("week_start"),
		WeekEnd:   p.num("week_end"),
	}
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	rows, err := s.deps.Query.PlayerTrend(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	f := model.CompareFilter{
		Names:  p.list("name"),
		Season: p.num("season"),
		Stats:  p.list("stats"),
	}
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	out, err := s.deps.Query.Compare(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	season := p.num("season")
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	out, err := s.deps.Query.Summary(r.Context(), season)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) injuries(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	f := model.InjuryFilter{
		Team:     p.str("team"),
		Position: p.str("position"),
		All:      p.flag("all"),
	}
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	report, err := s.deps.Query.Injuries(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"injuries": report, "total": len(report)})
}

func (s *Server) injurySummary(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Query.InjurySummary(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) slate(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	f := model.SlateFilter{
		Season:   p.path("season"),
		Week:     p.path("week"),
		SlateID:  p.str("slate_id"),
		Position: p.str("position"),
	}
	if p.err != nil {
		s.fail(w, p.err)
		return
	}
	entries, err := s.deps.Query.Slate(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type statusResponse struct {
	Warehouse   *model.WarehouseStats `json:"warehouse,omitempty"`
	Cache       cache.Stats           `json:"cache"`
	LastRefresh *model.RefreshReport  `json:"last_refresh,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Cache: s.deps.Query.Cache().Stats()}
	if s.deps.Warehouse != nil {
		stats, err := s.deps.Warehouse.Stats(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		resp.Warehouse = stats
	}
	if s.deps.Refresher != nil {
		resp.LastRefresh = s.deps.Refresher.Last()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("refresh is not enabled"))
		return
	}
	var req refresh.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if len(req.Seasons) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("seasons is required"))
		return
	}
	report, err := s.deps.Refresher.Run(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s.publishCache()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) clearCache(w http.ResponseWriter, _ *http.Request) {
	c := s.deps.Query.Cache()
	cleared := c.Len()
	c.InvalidateAll()
	s.log.Info("cache cleared", zap.Int("entries", cleared))
	s.publishCache()
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared, "cache": c.Stats()})
}

func (s *Server) publishCache() {
	s.deps.Metrics.SetCacheStats(s.deps.Query.Cache().Stats())
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrInvalidQuery) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s.log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// params reads integer and string parameters, keeping the first error.
type params struct {
	r   *http.Request
	err error
}

func (p *params) str(name string) string {
	return strings.TrimSpace(p.r.URL.Query().Get(name))
}

func (p *params) num(name string) int {
	return p.parse(name, p.str(name))
}

// list splits repeated and comma-separated values, dropping blanks.
func (p *params) list(name string) []string {
	var out []string
	for _, v := range p.r.URL.Query()[name] {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (p *params) flag(name string) bool {
	raw := p.str(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil && p.err == nil {
		p.err = eris.Wrapf(model.ErrInvalidQuery, "%s must be a boolean", name)
	}
	return v
}

func (p *params) path(name string) int {
	return p.parse(name, chi.URLParam(p.r, name))
}

func (p *params) parse(name, raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = eris.Wrapf(model.ErrInvalidQuery, "%s must be an integer", name)
	}
	return v
}
