package student

import (
	"context"

	"github.com/schoolhub/progress-hub/internal/domain/repository"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// Специализация обобщённого репозитория: слой аналитики требует полностью
// материализованного графа студент -> прогресс, поэтому поверх общего
// контракта добавлены две операции жадного чтения. Ленивая дозагрузка по
// записям была бы непозволительно медленной на масштабе.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - репозиторий студентов: обобщённые CRUD-операции плюс
// жадная загрузка связанного прогресса.
type Repository struct {
	*repository.Repository[*Student]
}

// NewRepository создаёт репозиторий студентов над хранилищем.
func NewRepository(store repository.Store[*Student], opts repository.Options) *Repository {
	return &Repository{
		Repository: repository.NewRepository[*Student]("student", store, opts),
	}
}

// GetWithProgress возвращает одного не удалённого студента с полностью
// загруженной коллекцией прогресса. Отсутствующий или мягко удалённый
// студент - это nil без ошибки.
func (r *Repository) GetWithProgress(ctx context.Context, studentID string) (*Student, error) {
	q, err := r.Queryable(ctx)
	if err != nil {
		return nil, err
	}

	items, err := r.Select(ctx, q.WithIDs(studentID).WithRelations(RelationProgress))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// GetAllWithProgress возвращает всех не удалённых студентов, каждого с
// жадно загруженной коллекцией прогресса.
func (r *Repository) GetAllWithProgress(ctx context.Context) ([]*Student, error) {
	return r.GetAllWithIncludes(ctx, RelationProgress)
}

// ProgressRepository - репозиторий записей прогресса. Специализированных
// операций не добавляет: обобщённого контракта достаточно.
type ProgressRepository struct {
	*repository.Repository[*Progress]
}

// NewProgressRepository создаёт репозиторий записей прогресса.
func NewProgressRepository(store repository.Store[*Progress], opts repository.Options) *ProgressRepository {
	return &ProgressRepository{
		Repository: repository.NewRepository[*Progress]("progress", store, opts),
	}
}
