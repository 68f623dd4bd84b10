// Package query answers stats reads from the read cache, falling back to
// the warehouse. Reads never fail because a refresh is missing or broken:
// store errors are logged and an empty result is returned.
package query

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/model"
)

// Reader is the warehouse read surface the service needs.
type Reader interface {
	ReadWeekly(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error)
	ReadSeasonTotals(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error)
	SumWeekly(ctx context.Context, q model.QueryParams) ([]model.StatRow, int, error)
	TopPerformers(ctx context.Context, f model.TopFilter) ([]model.StatRow, error)
	SearchPlayers(ctx context.Context, name string, season, limit int) ([]model.PlayerMatch, error)
	PlayerTrend(ctx context.Context, f model.TrendFilter) ([]model.StatRow, error)
	ReadSlate(ctx context.Context, f model.SlateFilter) ([]model.SlateEntry, error)
	ReadInjuries(ctx context.Context, f model.InjuryFilter) ([]model.InjuryRecord, error)
}

// Service is the cached query façade.
type Service struct {
	store  Reader
	cache  *cache.Cache[any]
	policy model.SeasonPolicy
	log    *zap.Logger
}

// New creates a query service reading through c.
func New(store Reader, c *cache.Cache[any], policy model.SeasonPolicy) *Service {
	return &Service{
		store:  store,
		cache:  c,
		policy: policy,
		log:    zap.L().With(zap.String("component", "query")),
	}
}

// Cache returns the cache the service reads through.
func (s *Service) Cache() *cache.Cache[any] {
	return s.cache
}

// Query returns one page of stat rows. Historical seasons are answered from
// season totals whatever the week filter. For current seasons a full-season
// request reads the recomputed totals, a single week reads weekly rows and
// a week range sums weekly rows per player.
func (s *Service) Query(ctx context.Context, params model.QueryParams) (*model.Page, error) {
	q, err := params.Normalize(s.policy.MaxWeek)
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidSeason(q.Season); err != nil {
		return nil, eris.Wrap(model.ErrInvalidQuery, err.Error())
	}

	key := cache.KeyFor(q)
	if v, ok := s.cache.Get(key); ok {
		if page, ok := v.(*model.Page); ok {
			return page, nil
		}
	}
	gen := s.cache.Generation()

	var (
		rows  []model.StatRow
		total int
		src   model.Source
	)
	switch {
	case s.policy.Historical(q.Season):
		q.WeekStart, q.WeekEnd = 0, 0
		src = model.SourceSeasonTotals
		rows, total, err = s.store.ReadSeasonTotals(ctx, q)
	case !q.HasWeekRange():
		src = model.SourceSeasonTotals
		rows, total, err = s.store.ReadSeasonTotals(ctx, q)
	case q.SingleWeek():
		src = model.SourceWeekly
		rows, total, err = s.store.ReadWeekly(ctx, q)
	default:
		src = model.SourceWeeklyRange
		rows, total, err = s.store.SumWeekly(ctx, q)
	}
	if err != nil {
		s.log.Error("stats read failed, returning empty page",
			zap.Int("season", q.Season),
			zap.String("source", string(src)),
			zap.Error(err),
		)
		return model.NewPage(nil, 0, q, src), nil
	}

	page := model.NewPage(rows, total, q, src)
	s.cache.SetIfCurrent(gen, key, page)
	return page, nil
}

// TopPerformers returns the season leaders of one stat column.
func (s *Service) TopPerformers(ctx context.Context, f model.TopFilter) ([]model.StatRow, error) {
	if f.Season <= 0 {
		return nil, eris.Wrap(model.ErrInvalidQuery, "season is required")
	}
	f.Position = strings.ToUpper(strings.TrimSpace(f.Position))
	return cached(ctx, s, cache.Key("top", f.Season, f.Position, f.Stat, f.Limit), "top performers",
		func(ctx context.Context) ([]model.StatRow, error) {
			return s.store.TopPerformers(ctx, f)
		})
}

// SearchPlayers finds players whose name contains name.
func (s *Service) SearchPlayers(ctx context.Context, name string, season, limit int) ([]model.PlayerMatch, error) {
	name = strings.TrimSpace(name)
	return cached(ctx, s, cache.Key("search", strings.ToLower(name), season, limit), "search players",
		func(ctx context.Context) ([]model.PlayerMatch, error) {
			return s.store.SearchPlayers(ctx, name, season, limit)
		})
}

// PlayerTrend returns week-by-week lines for the named players.
func (s *Service) PlayerTrend(ctx context.Context, f model.TrendFilter) ([]model.StatRow, error) {
	if f.Season <= 0 {
		return nil, eris.Wrap(model.ErrInvalidQuery, "season is required")
	}
	if f.WeekStart > 0 && f.WeekEnd > 0 && f.WeekStart > f.WeekEnd {
		return nil, eris.Wrapf(model.ErrInvalidQuery, "bad week range %d..%d", f.WeekStart, f.WeekEnd)
	}
	names := make([]string, 0, len(f.Names))
	for _, n := range f.Names {
		names = append(names, strings.ToLower(strings.TrimSpace(n)))
	}
	return cached(ctx, s, cache.Key("trend", strings.Join(names, ","), f.Season, f.WeekStart, f.WeekEnd), "player trend",
		func(ctx context.Context) ([]model.StatRow, error) {
			return s.store.PlayerTrend(ctx, f)
		})
}

// Slate returns the priced entries of one slate.
func (s *Service) Slate(ctx context.Context, f model.SlateFilter) ([]model.SlateEntry, error) {
	if f.Season <= 0 || f.Week <= 0 {
		return nil, eris.Wrap(model.ErrInvalidQuery, "season and week are required")
	}
	return cached(ctx, s, cache.Key("slate", f.Season, f.Week, f.SlateID, strings.ToUpper(f.Position)), "slate",
		func(ctx context.Context) ([]model.SlateEntry, error) {
			return s.store.ReadSlate(ctx, f)
		})
}

// Injuries returns the stored injury report, skill positions only unless
// f.All is set.
func (s *Service) Injuries(ctx context.Context, f model.InjuryFilter) ([]model.InjuryRecord, error) {
	f = f.Normalize()
	return cached(ctx, s, cache.Key("injuries", f.Team, f.Position, f.All), "injuries",
		func(ctx context.Context) ([]model.InjuryRecord, error) {
			return s.store.ReadInjuries(ctx, f)
		})
}

// InjurySummary counts the full stored injury report.
func (s *Service) InjurySummary(ctx context.Context) (model.InjurySummary, error) {
	report, err := s.Injuries(ctx, model.InjuryFilter{All: true})
	if err != nil {
		return model.InjurySummary{}, err
	}
	return model.SummarizeInjuries(report), nil
}

// Compare returns the season totals of 2 to 10 named players side by side,
// projected onto f.Stats. A name matches like the player filter of Query and
// the top scorer among matches wins. Unknown names are skipped.
func (s *Service) Compare(ctx context.Context, f model.CompareFilter) (*model.Comparison, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidSeason(f.Season); err != nil {
		return nil, eris.Wrap(model.ErrInvalidQuery, err.Error())
	}

	key := cache.Key("compare", strings.ToLower(strings.Join(f.Names, ",")), f.Season, strings.Join(f.Stats, ","))
	if v, ok := s.cache.Get(key); ok {
		if out, ok := v.(*model.Comparison); ok {
			return out, nil
		}
	}
	gen := s.cache.Generation()

	out := &model.Comparison{
		Season:    f.Season,
		Players:   make([]model.ComparedPlayer, 0, len(f.Names)),
		Requested: len(f.Names),
	}
	failed := false
	for _, name := range f.Names {
		rows, _, err := s.store.ReadSeasonTotals(ctx, model.QueryParams{
			Season: f.Season, Player: name, Page: 1, PageSize: 1, Sort: "fantasy_points",
		})
		if err != nil {
			s.log.Warn("compare read failed, skipping player",
				zap.String("player", name),
				zap.Int("season", f.Season),
				zap.Error(err),
			)
			failed = true
			continue
		}
		if len(rows) == 0 {
			continue
		}
		out.Players = append(out.Players, model.NewComparedPlayer(rows[0], f.Stats))
	}
	out.Found = len(out.Players)
	if !failed {
		s.cache.SetIfCurrent(gen, key, out)
	}
	return out, nil
}

// Summary returns per-position totals, averages and leaders for a season.
func (s *Service) Summary(ctx context.Context, season int) (*model.SeasonSummary, error) {
	if err := s.policy.ValidSeason(season); err != nil {
		return nil, eris.Wrap(model.ErrInvalidQuery, err.Error())
	}

	key := cache.Key("summary", season)
	if v, ok := s.cache.Get(key); ok {
		if out, ok := v.(*model.SeasonSummary); ok {
			return out, nil
		}
	}
	gen := s.cache.Generation()

	out := &model.SeasonSummary{Season: season, Positions: make([]model.PositionSummary, 0, len(model.SummaryPositions))}
	failed := false
	for _, pos := range model.SummaryPositions {
		rows, err := s.allSeasonTotals(ctx, season, pos)
		if err != nil {
			s.log.Error("summary read failed, skipping position",
				zap.Int("season", season),
				zap.String("position", string(pos)),
				zap.Error(err),
			)
			failed = true
			continue
		}
		ps := model.SummarizePosition(pos, rows)
		out.TotalPlayers += ps.TotalPlayers
		out.Positions = append(out.Positions, ps)
	}
	if !failed {
		s.cache.SetIfCurrent(gen, key, out)
	}
	return out, nil
}

// allSeasonTotals pages through every season-total row of one position.
func (s *Service) allSeasonTotals(ctx context.Context, season int, pos model.Position) ([]model.StatRow, error) {
	var all []model.StatRow
	for page := 1; ; page++ {
		rows, total, err := s.store.ReadSeasonTotals(ctx, model.QueryParams{
			Season: season, Position: string(pos), Page: page, PageSize: model.MaxPageSize, Sort: "fantasy_points",
		})
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// cached runs a cache-first read. Validation errors reach the caller;
// store errors degrade to an empty, uncached result.
func cached[T any](ctx context.Context, s *Service, key, op string, load func(context.Context) ([]T, error)) ([]T, error) {
	if v, ok := s.cache.Get(key); ok {
		if out, ok := v.([]T); ok {
			return out, nil
		}
	}
	gen := s.cache.Generation()

	out, err := load(ctx)
	if err != nil {
		if errors.Is(err, model.ErrInvalidQuery) {
			return nil, err
		}
		s.log.Error(op+" read failed, returning empty result", zap.Error(err))
		return []T{}, nil
	}
	if out == nil {
		out = []T{}
	}
	s.cache.SetIfCurrent(gen, key, out)
	return out, nil
}
