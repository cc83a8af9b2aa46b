// Package query contains read operations following CQRS pattern.
package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/schoolhub/progress-hub/internal/domain/analytics"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
	"github.com/schoolhub/progress-hub/pkg/logger"
	"github.com/schoolhub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS SUMMARY QUERY
// Сводка по классам: количество студентов и средние показатели прогресса
// на класс. Отчёт кешируется целиком; пагинация применяется поверх кеша.
// Кеш не инвалидируется записями - отчёт может отставать до абсолютного TTL.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassSummaryQuery содержит параметры запроса сводки по классам.
type GetClassSummaryQuery struct {
	// Page - параметры пагинации по группам-классам.
	Page shared.PageRequest
}

// Validate проверяет корректность параметров запроса.
func (q *GetClassSummaryQuery) Validate() error {
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

// ClassSummaryDTO - DTO сводки одного класса.
type ClassSummaryDTO struct {
	// Grade - метка класса.
	Grade string `json:"grade"`

	// StudentCount - количество студентов в классе.
	StudentCount int `json:"student_count"`

	// AvgCompletion - средний процент выполнения по всем записям класса.
	AvgCompletion float64 `json:"avg_completion"`

	// AvgPerformanceScore - средний балл успеваемости.
	AvgPerformanceScore float64 `json:"avg_performance_score"`

	// AvgTimeSpentMinutes - среднее затраченное время в минутах.
	AvgTimeSpentMinutes float64 `json:"avg_time_spent_minutes"`
}

// GetClassSummaryResult содержит результат запроса сводки.
type GetClassSummaryResult struct {
	// Groups - страница групп-классов, отсортированных по метке класса.
	Groups []ClassSummaryDTO `json:"groups"`

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

// GetClassSummaryHandler обрабатывает запросы сводки по классам.
type GetClassSummaryHandler struct {
	students *student.Repository
	cache    analytics.ReportCache
	policy   analytics.Policy
	flight   singleflight.Group
	log      *logger.Logger
}

// NewGetClassSummaryHandler создаёт новый обработчик сводки по классам.
func NewGetClassSummaryHandler(
	students *student.Repository,
	cache analytics.ReportCache,
	log *logger.Logger,
) *GetClassSummaryHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetClassSummaryHandler{
		students: students,
		cache:    cache,
		policy:   analytics.ClassSummaryPolicy(),
		log:      log,
	}
}

// WithPolicy переопределяет политику кеширования сводки.
// Политика без абсолютного TTL игнорируется.
func (h *GetClassSummaryHandler) WithPolicy(policy analytics.Policy) *GetClassSummaryHandler {
	if policy.AbsoluteTTL > 0 {
		h.policy = policy
	}
	return h
}

// Handle выполняет запрос сводки по классам.
func (h *GetClassSummaryHandler) Handle(ctx context.Context, query GetClassSummaryQuery) (*GetClassSummaryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetClassSummary", shared.ErrValidation, err.Error(), err)
	}

	// Кеш хранит полный отчёт; страница вырезается после чтения.
	var summaries []analytics.ClassSummary
	hit, err := h.cache.Get(ctx, analytics.KeyClassSummary, &summaries)
	if err != nil {
		// Деградация: отказ кеша означает пересчёт, а не отказ запроса.
		h.log.Warn("report cache read failed",
			logger.ReportKey(analytics.KeyClassSummary), logger.Err(err))
		hit = false
	}
	if hit {
		return h.buildResult(summaries, query, true), nil
	}

	computed, err := h.computeShared(ctx)
	if err != nil {
		return nil, err
	}

	return h.buildResult(computed, query, false), nil
}

// computeShared считает отчёт не более одного раза на все конкурентные
// промахи (singleflight) и заполняет кеш, если контекст ещё жив.
func (h *GetClassSummaryHandler) computeShared(ctx context.Context) ([]analytics.ClassSummary, error) {
	v, err, _ := h.flight.Do(flightKey(ctx, analytics.KeyClassSummary), func() (interface{}, error) {
		summaries, err := h.compute(ctx)
		if err != nil {
			return nil, err
		}

		// Отменённый запрос не должен оставлять частичный отчёт в кеше.
		if ctx.Err() != nil {
			return nil, shared.WrapError("query", "GetClassSummary", shared.ErrComputation,
				"computation cancelled", ctx.Err())
		}

		if err := h.cache.Set(ctx, analytics.KeyClassSummary, summaries, h.policy); err != nil {
			h.log.Warn("report cache populate failed",
				logger.ReportKey(analytics.KeyClassSummary), logger.Err(err))
		}
		return summaries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]analytics.ClassSummary), nil
}

// compute группирует студентов по классу и усредняет показатели по всем
// записям прогресса класса. Классы без единой записи прогресса опускаются.
func (h *GetClassSummaryHandler) compute(ctx context.Context) ([]analytics.ClassSummary, error) {
	students, err := h.students.GetAllWithProgress(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetClassSummary", shared.ErrPersistence,
			"failed to load students with progress", err)
	}

	type gradeGroup struct {
		studentCount int
		completions  []float64
		scores       []float64
		minutes      []float64
	}

	groups := make(map[string]*gradeGroup)
	for _, st := range students {
		g, ok := groups[st.Grade]
		if !ok {
			g = &gradeGroup{}
			groups[st.Grade] = g
		}
		g.studentCount++
		for _, p := range st.ProgressRecords {
			g.completions = append(g.completions, p.CompletionPercent)
			g.scores = append(g.scores, p.PerformanceScore)
			g.minutes = append(g.minutes, timeutil.Minutes(p.TimeSpent))
		}
	}

	summaries := make([]analytics.ClassSummary, 0, len(groups))
	for grade, g := range groups {
		avgCompletion, err := analytics.Mean(g.completions)
		if err != nil {
			if errors.Is(err, shared.ErrEmptyDataSet) {
				h.log.Debug("skipping grade without progress records", logger.Grade(grade))
				continue
			}
			return nil, err
		}
		avgScore, _ := analytics.Mean(g.scores)
		avgMinutes, _ := analytics.Mean(g.minutes)

		summaries = append(summaries, analytics.ClassSummary{
			Grade:               grade,
			StudentCount:        g.studentCount,
			AvgCompletion:       avgCompletion,
			AvgPerformanceScore: avgScore,
			AvgTimeSpent:        timeutil.FromMinutes(avgMinutes),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Grade < summaries[j].Grade
	})

	return summaries, nil
}

func (h *GetClassSummaryHandler) buildResult(summaries []analytics.ClassSummary, query GetClassSummaryQuery, fromCache bool) *GetClassSummaryResult {
	page := shared.Paginate(summaries, query.Page)

	groups := make([]ClassSummaryDTO, 0, len(page.Items))
	for _, s := range page.Items {
		groups = append(groups, ClassSummaryDTO{
			Grade:               s.Grade,
			StudentCount:        s.StudentCount,
			AvgCompletion:       s.AvgCompletion,
			AvgPerformanceScore: s.AvgPerformanceScore,
			AvgTimeSpentMinutes: timeutil.Minutes(s.AvgTimeSpent),
		})
	}

	return &GetClassSummaryResult{
		Groups:      groups,
		TotalCount:  page.TotalCount,
		Page:        page.PageNumber,
		PageSize:    page.PageSize,
		HasMore:     page.HasMore(),
		FromCache:   fromCache,
		GeneratedAt: timeutil.Now(),
	}
}

// flightKey разводит конкурентные вычисления разных арендаторов.
func flightKey(ctx context.Context, reportKey string) string {
	if scope, ok := tenant.FromContext(ctx); ok && scope.TenantID != "" {
		return scope.TenantID + ":" + reportKey
	}
	return reportKey
}
