// Package query contains read operations following CQRS pattern.
package query

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/schoolhub/progress-hub/internal/domain/analytics"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/pkg/logger"
	"github.com/schoolhub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS TRENDS QUERY
// Динамика прогресса по календарным месяцам за скользящее окно последних
// шести месяцев. Месяц записи определяется моментом её создания.
// Отчёт кешируется только с абсолютным TTL - без скользящего окна.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressTrendsQuery содержит параметры запроса динамики прогресса.
type GetProgressTrendsQuery struct {
	// Page - параметры пагинации по месячным группам.
	Page shared.PageRequest
}

// Validate проверяет корректность параметров запроса.
func (q *GetProgressTrendsQuery) Validate() error {
	if q.Page.PageNumber == 0 {
		q.Page.PageNumber = 1
	}
	if q.Page.PageSize == 0 {
		q.Page.PageSize = 20
	}
	if q.Page.PageSize > 100 {
		q.Page.PageSize = 100
	}
	return q.Page.Validate()
}

// ProgressTrendDTO - DTO динамики одного месяца.
type ProgressTrendDTO struct {
	// Period - календарный месяц в формате "YYYY-MM".
	Period string `json:"period"`

	// AvgCompletion - средний процент выполнения за месяц.
	AvgCompletion float64 `json:"avg_completion"`

	// RecordCount - количество записей прогресса за месяц.
	RecordCount int `json:"record_count"`
}

// GetProgressTrendsResult содержит результат запроса динамики.
type GetProgressTrendsResult struct {
	// Trends - страница месячных групп в хронологическом порядке.
	Trends []ProgressTrendDTO `json:"trends"`

	// TotalCount - общее количество групп до пагинации.
	TotalCount int `json:"total_count"`

	// Page - текущая страница (1-based).
	Page int `json:"page"`

	// PageSize - размер страницы.
	PageSize int `json:"page_size"`

	// HasMore - есть ли ещё группы после текущей страницы.
	HasMore bool `json:"has_more"`

	// FromCache - отдан ли отчёт из кеша.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - время формирования результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressTrendsHandler обрабатывает запросы динамики прогресса.
type GetProgressTrendsHandler struct {
	students *student.Repository
	cache    analytics.ReportCache
	policy   analytics.Policy
	window   int
	flight   singleflight.Group
	log      *logger.Logger

	// clock фиксирует "сейчас" для границы скользящего окна.
	clock func() time.Time
}

// NewGetProgressTrendsHandler создаёт новый обработчик динамики прогресса.
// Записи прогресса берутся из коллекций не удалённых студентов, поэтому
// прогресс мягко удалённого студента в отчёт не попадает.
func NewGetProgressTrendsHandler(
	students *student.Repository,
	cache analytics.ReportCache,
	log *logger.Logger,
) *GetProgressTrendsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetProgressTrendsHandler{
		students: students,
		cache:    cache,
		policy:   analytics.ProgressTrendsPolicy(),
		window:   analytics.TrendWindowMonths,
		log:      log,
		clock:    timeutil.Now,
	}
}

// WithPolicy переопределяет политику кеширования динамики.
// Политика без абсолютного TTL игнорируется.
func (h *GetProgressTrendsHandler) WithPolicy(policy analytics.Policy) *GetProgressTrendsHandler {
	if policy.AbsoluteTTL > 0 {
		h.policy = policy
	}
	return h
}

// WithTrendWindow переопределяет ширину скользящего окна в месяцах.
// Неположительное значение игнорируется.
func (h *GetProgressTrendsHandler) WithTrendWindow(months int) *GetProgressTrendsHandler {
	if months > 0 {
		h.window = months
	}
	return h
}

// Handle выполняет запрос динамики прогресса.
func (h *GetProgressTrendsHandler) Handle(ctx context.Context, query GetProgressTrendsQuery) (*GetProgressTrendsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProgressTrends", shared.ErrValidation, err.Error(), err)
	}

	var trends []analytics.ProgressTrend
	hit, err := h.cache.Get(ctx, analytics.KeyProgressTrends, &trends)
	if err != nil {
		h.log.Warn("report cache read failed",
			logger.ReportKey(analytics.KeyProgressTrends), logger.Err(err))
		hit = false
	}
	if hit {
		return h.buildResult(trends, query, true), nil
	}

	computed, err := h.computeShared(ctx)
	if err != nil {
		return nil, err
	}

	return h.buildResult(computed, query, false), nil
}

// computeShared считает отчёт не более одного раза на все конкурентные
// промахи и заполняет кеш, если контекст ещё жив.
func (h *GetProgressTrendsHandler) computeShared(ctx context.Context) ([]analytics.ProgressTrend, error) {
	v, err, _ := h.flight.Do(flightKey(ctx, analytics.KeyProgressTrends), func() (interface{}, error) {
		trends, err := h.compute(ctx)
		if err != nil {
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, shared.WrapError("query", "GetProgressTrends", shared.ErrComputation,
				"computation cancelled", ctx.Err())
		}

		if err := h.cache.Set(ctx, analytics.KeyProgressTrends, trends, h.policy); err != nil {
			h.log.Warn("report cache populate failed",
				logger.ReportKey(analytics.KeyProgressTrends), logger.Err(err))
		}
		return trends, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]analytics.ProgressTrend), nil
}

// compute группирует записи прогресса по календарному месяцу их создания.
// Источник - коллекции не удалённых студентов, так что записи студента,
// удалённого без каскада, не учитываются. Записи старше окна отбрасываются;
// месяц без записей не порождает группу.
func (h *GetProgressTrendsHandler) compute(ctx context.Context) ([]analytics.ProgressTrend, error) {
	students, err := h.students.GetAllWithProgress(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetProgressTrends", shared.ErrPersistence,
			"failed to load progress records", err)
	}

	now := h.clock()

	type monthGroup struct {
		sum   float64
		count int
	}

	groups := make(map[string]*monthGroup)
	for _, s := range students {
		for _, p := range s.ProgressRecords {
			if !timeutil.InTrailingMonths(p.InsertedAt, now, h.window) {
				continue
			}
			period := timeutil.PeriodLabel(p.InsertedAt)
			g, ok := groups[period]
			if !ok {
				g = &monthGroup{}
				groups[period] = g
			}
			g.sum += p.CompletionPercent
			g.count++
		}
	}

	trends := make([]analytics.ProgressTrend, 0, len(groups))
	for period, g := range groups {
		trends = append(trends, analytics.ProgressTrend{
			Period:        period,
			AvgCompletion: g.sum / float64(g.count),
			RecordCount:   g.count,
		})
	}

	// "2006-01" сортируется лексикографически в хронологическом порядке.
	sort.Slice(trends, func(i, j int) bool {
		return trends[i].Period < trends[j].Period
	})

	return trends, nil
}

func (h *GetProgressTrendsHandler) buildResult(trends []analytics.ProgressTrend, query GetProgressTrendsQuery, fromCache bool) *GetProgressTrendsResult {
	page := shared.Paginate(trends, query.Page)

	dtos := make([]ProgressTrendDTO, 0, len(page.Items))
	for _, t := range page.Items {
		dtos = append(dtos, ProgressTrendDTO{
			Period:        t.Period,
			AvgCompletion: t.AvgCompletion,
			RecordCount:   t.RecordCount,
		})
	}

	return &GetProgressTrendsResult{
		Trends:      dtos,
		TotalCount:  page.TotalCount,
		Page:        page.PageNumber,
		PageSize:    page.PageSize,
		HasMore:     page.HasMore(),
		FromCache:   fromCache,
		GeneratedAt: timeutil.Now(),
	}
}
