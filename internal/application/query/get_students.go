// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENTS QUERY
// Возвращает студентов: весь список с пагинацией либо одного по ID.
// Отсутствующий студент - это пустой результат, а не ошибка.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentsQuery содержит параметры запроса студентов.
type GetStudentsQuery struct {
	// StudentID - ID конкретного студента (пустая строка = весь список).
	StudentID string

	// WithProgress - загружать ли записи прогресса вместе со студентами.
	WithProgress bool

	// Page - параметры пагинации (применяется только к списку).
	Page shared.PageRequest
}

// Validate проверяет корректность параметров запроса.
func (q *GetStudentsQuery) Validate() error {
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

// ProgressDTO - DTO записи прогресса.
type ProgressDTO struct {
	// ID - идентификатор записи.
	ID string `json:"id"`

	// Subject - метка предмета.
	Subject string `json:"subject"`

	// CompletionPercent - процент выполнения.
	CompletionPercent float64 `json:"completion_percent"`

	// PerformanceScore - балл успеваемости.
	PerformanceScore float64 `json:"performance_score"`

	// TimeSpentMinutes - затраченное время в минутах.
	TimeSpentMinutes float64 `json:"time_spent_minutes"`

	// LastActivity - момент последней активности.
	LastActivity time.Time `json:"last_activity"`
}

// StudentDTO - DTO студента.
type StudentDTO struct {
	// ID - идентификатор студента.
	ID string `json:"id"`

	// FullName - полное имя.
	FullName string `json:"full_name"`

	// Grade - метка класса.
	Grade string `json:"grade"`

	// TeacherID - ссылка на преподавателя (опционально).
	TeacherID *string `json:"teacher_id,omitempty"`

	// Progress - записи прогресса (только при WithProgress).
	Progress []ProgressDTO `json:"progress,omitempty"`
}

// GetStudentsResult содержит результат запроса студентов.
type GetStudentsResult struct {
	// Students - страница студентов (для одиночного запроса - 0 или 1 элемент).
	Students []StudentDTO `json:"students"`

	// TotalCount - общее количество студентов до пагинации.
	TotalCount int `json:"total_count"`

	// Page - текущая страница (1-based).
	Page int `json:"page"`

	// PageSize - размер страницы.
	PageSize int `json:"page_size"`

	// HasMore - есть ли ещё записи после текущей страницы.
	HasMore bool `json:"has_more"`
}

// GetStudentsHandler обрабатывает запросы на получение студентов.
type GetStudentsHandler struct {
	students *student.Repository
}

// NewGetStudentsHandler создаёт новый обработчик запроса студентов.
func NewGetStudentsHandler(students *student.Repository) *GetStudentsHandler {
	return &GetStudentsHandler{students: students}
}

// Handle выполняет запрос на получение студентов.
func (h *GetStudentsHandler) Handle(ctx context.Context, query GetStudentsQuery) (*GetStudentsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudents", shared.ErrValidation, err.Error(), err)
	}

	if query.StudentID != "" {
		return h.handleSingle(ctx, query)
	}
	return h.handleList(ctx, query)
}

func (h *GetStudentsHandler) handleSingle(ctx context.Context, query GetStudentsQuery) (*GetStudentsResult, error) {
	var st *student.Student
	var err error
	if query.WithProgress {
		st, err = h.students.GetWithProgress(ctx, query.StudentID)
	} else {
		st, err = h.students.GetByID(ctx, query.StudentID)
	}
	if err != nil {
		return nil, shared.WrapError("query", "GetStudents", shared.ErrPersistence, "failed to get student", err)
	}

	result := &GetStudentsResult{
		Students: []StudentDTO{},
		Page:     query.Page.PageNumber,
		PageSize: query.Page.PageSize,
	}
	if st != nil {
		result.Students = append(result.Students, toStudentDTO(st, query.WithProgress))
		result.TotalCount = 1
	}
	return result, nil
}

func (h *GetStudentsHandler) handleList(ctx context.Context, query GetStudentsQuery) (*GetStudentsResult, error) {
	var all []*student.Student
	var err error
	if query.WithProgress {
		all, err = h.students.GetAllWithProgress(ctx)
	} else {
		all, err = h.students.GetAll(ctx)
	}
	if err != nil {
		return nil, shared.WrapError("query", "GetStudents", shared.ErrPersistence, "failed to list students", err)
	}

	page := shared.Paginate(all, query.Page)

	dtos := make([]StudentDTO, 0, len(page.Items))
	for _, st := range page.Items {
		dtos = append(dtos, toStudentDTO(st, query.WithProgress))
	}

	return &GetStudentsResult{
		Students:   dtos,
		TotalCount: page.TotalCount,
		Page:       page.PageNumber,
		PageSize:   page.PageSize,
		HasMore:    page.HasMore(),
	}, nil
}

func toStudentDTO(st *student.Student, withProgress bool) StudentDTO {
	dto := StudentDTO{
		ID:        st.ID,
		FullName:  st.FullName,
		Grade:     st.Grade,
		TeacherID: st.TeacherID,
	}
	if withProgress {
		dto.Progress = make([]ProgressDTO, 0, len(st.ProgressRecords))
		for _, p := range st.ProgressRecords {
			dto.Progress = append(dto.Progress, ProgressDTO{
				ID:                p.ID,
				Subject:           p.Subject,
				CompletionPercent: p.CompletionPercent,
				PerformanceScore:  p.PerformanceScore,
				TimeSpentMinutes:  timeutil.Minutes(p.TimeSpent),
				LastActivity:      p.LastActivity,
			})
		}
	}
	return dto
}
