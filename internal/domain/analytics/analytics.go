// Package analytics содержит производные отчётные модели (сводка по классам,
// тренд прогресса) и контракт кеша отчётов. Отчёты вычисляются дорого,
// мемоизируются под политикой истечения и отдаются страницами; сами они
// никогда не персистятся.
package analytics

import (
	"context"
	"time"

	"github.com/schoolhub/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT KEYS & EXPIRATION POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Ключи кеша отчётов.
const (
	// KeyClassSummary - ключ сводки по классам.
	KeyClassSummary = "class_summary"

	// KeyProgressTrends - ключ тренда прогресса.
	KeyProgressTrends = "progress_trends"
)

// Политика истечения по умолчанию. Запись живёт не дольше абсолютного
// предела; скользящий компонент продлевает жизнь при чтении, но никогда
// не дальше абсолютного предела. Срабатывает тот предел, который наступил
// первым.
const (
	// DefaultAbsoluteTTL - абсолютный предел жизни записи кеша.
	DefaultAbsoluteTTL = 10 * time.Minute

	// DefaultSlidingTTL - скользящее продление при чтении (только сводка).
	DefaultSlidingTTL = 2 * time.Minute

	// TrendWindowMonths - отчётное окно тренда: скользящие 6 месяцев
	// относительно момента вычисления агрегата, не момента запроса.
	TrendWindowMonths = 6
)

// Policy описывает политику истечения одной записи кеша.
type Policy struct {
	// AbsoluteTTL - абсолютный предел от момента записи. Обязателен.
	AbsoluteTTL time.Duration

	// SlidingTTL - скользящее продление при каждом чтении.
	// Ноль отключает скользящий компонент.
	SlidingTTL time.Duration
}

// ClassSummaryPolicy возвращает политику записи сводки по классам.
func ClassSummaryPolicy() Policy {
	return Policy{AbsoluteTTL: DefaultAbsoluteTTL, SlidingTTL: DefaultSlidingTTL}
}

// ProgressTrendsPolicy возвращает политику записи тренда прогресса.
func ProgressTrendsPolicy() Policy {
	return Policy{AbsoluteTTL: DefaultAbsoluteTTL}
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED REPORT MODELS
// ══════════════════════════════════════════════════════════════════════════════

// ClassSummary - сводка одного класса: количество студентов и средние
// показатели по объединению всех записей прогресса студентов класса.
type ClassSummary struct {
	// Grade - метка класса.
	Grade string `json:"grade"`

	// StudentCount - количество студентов класса.
	StudentCount int `json:"student_count"`

	// AvgCompletion - средний процент выполнения.
	AvgCompletion float64 `json:"avg_completion"`

	// AvgPerformanceScore - средний балл успеваемости.
	AvgPerformanceScore float64 `json:"avg_performance_score"`

	// AvgTimeSpent - среднее затраченное время. Среднее считается в
	// минутах и выражается обратно длительностью.
	AvgTimeSpent time.Duration `json:"avg_time_spent"`
}

// ProgressTrend - точка тренда: средний процент выполнения записей
// прогресса, вставленных в одном календарном месяце отчётного окна.
type ProgressTrend struct {
	// Period - метка периода в формате "YYYY-MM".
	Period string `json:"period"`

	// AvgCompletion - средний процент выполнения записей периода.
	AvgCompletion float64 `json:"avg_completion"`

	// RecordCount - количество записей, внёсших вклад в период.
	RecordCount int `json:"record_count"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT CACHE CONTRACT
// Явная кеш-абстракция (ключ -> значение + политика истечения), внедряемая
// в компонент агрегации. Жизненный цикл: populate-on-miss, evict-on-expiry.
// Инвалидации на запись нет: потребители могут наблюдать устаревшие агрегаты
// вплоть до окна истечения после изменения данных - это документированная
// граница устаревания, не дефект.
// ══════════════════════════════════════════════════════════════════════════════

// ReportCache - контракт кеша отчётов. Реализации находятся в
// infrastructure/persistence (in-memory и Redis).
type ReportCache interface {
	// Get читает запись кеша в dest (указатель на срез отчёта).
	// Возвращает false без ошибки при промахе или истечении.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set записывает значение под ключом с политикой истечения.
	Set(ctx context.Context, key string, value any, policy Policy) error

	// Delete удаляет запись кеша.
	Delete(ctx context.Context, key string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// NUMERIC HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Mean возвращает арифметическое среднее значений.
// Пустой срез - это ErrEmptyDataSet: деление на нулевой знаменатель
// не определено и должно решаться вызывающим (пропуск группы).
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, shared.NewDomainError("analytics", "Mean", shared.ErrEmptyDataSet,
			"cannot average an empty group")
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}
