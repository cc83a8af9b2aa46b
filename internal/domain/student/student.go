// Package student содержит доменную модель студента и его предметного
// прогресса. Это ядро бизнес-логики мультиарендной школьной платформы.
package student

import (
	"strings"
	"time"

	"github.com/schoolhub/progress-hub/internal/domain/entity"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrFullNameRequired - у студента должно быть непустое полное имя.
	ErrFullNameRequired = shared.NewDomainError("student", "Validate", shared.ErrEmptyValue, "full name is required")

	// ErrGradeRequired - у студента должна быть указана метка класса.
	ErrGradeRequired = shared.NewDomainError("student", "Validate", shared.ErrEmptyValue, "grade label is required")

	// ErrSubjectRequired - у записи прогресса должен быть указан предмет.
	ErrSubjectRequired = shared.NewDomainError("progress", "Validate", shared.ErrEmptyValue, "subject label is required")

	// ErrStudentRefRequired - запись прогресса обязана ссылаться на студента.
	ErrStudentRefRequired = shared.NewDomainError("progress", "Validate", shared.ErrEmptyValue, "owning student reference is required")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// RelationProgress - имя связи студент -> записи прогресса для жадной
// загрузки через GetAllWithIncludes.
const RelationProgress = "progress_records"

// Student - студент платформы. Владеет своими записями прогресса
// (ноль или больше, порядок не значим).
type Student struct {
	entity.Base

	// FullName - полное имя студента.
	FullName string `json:"full_name"`

	// Grade - метка класса (например, "7A"). Ключ группировки сводок.
	Grade string `json:"grade"`

	// TeacherID - ссылка на курирующего преподавателя (опционально).
	TeacherID *string `json:"teacher_id,omitempty"`

	// ProgressRecords - записи прогресса студента. Заполняется только
	// жадной загрузкой; nil означает "не загружалось".
	ProgressRecords []*Progress `json:"progress_records,omitempty"`
}

// Validate проверяет корректность студента перед записью.
func (s *Student) Validate() error {
	if strings.TrimSpace(s.FullName) == "" {
		return ErrFullNameRequired
	}
	if strings.TrimSpace(s.Grade) == "" {
		return ErrGradeRequired
	}
	return nil
}

// Progress - запись предметного прогресса студента.
type Progress struct {
	entity.Base

	// Subject - метка предмета.
	Subject string `json:"subject"`

	// CompletionPercent - процент выполнения. Ожидается 0-100,
	// доменно не навязывается.
	CompletionPercent float64 `json:"completion_percent"`

	// PerformanceScore - балл успеваемости.
	PerformanceScore float64 `json:"performance_score"`

	// TimeSpent - затраченное время.
	TimeSpent time.Duration `json:"time_spent"`

	// LastActivity - момент последней активности по предмету.
	LastActivity time.Time `json:"last_activity"`

	// StudentID - обратная ссылка на студента-владельца. Обязательна.
	StudentID string `json:"student_id"`
}

// Validate проверяет корректность записи прогресса перед записью.
func (p *Progress) Validate() error {
	if strings.TrimSpace(p.Subject) == "" {
		return ErrSubjectRequired
	}
	if p.StudentID == "" {
		return ErrStudentRefRequired
	}
	return nil
}
