package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/progress-hub/internal/domain/entity"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERIC REPOSITORY
// Единообразные CRUD-операции над любой сущностью, удовлетворяющей контракту
// entity.Record. Инварианты:
//   - каждый путь чтения фильтрует IsDeleted = false; пути читать мягко
//     удалённые записи в этом компоненте нет (кроме Queryable().Unfiltered());
//   - каждый путь записи обновляет UpdatedAt; только Add устанавливает
//     InsertedAt;
//   - Add/Update/Delete стейджат изменения, Save фиксирует их атомарно.
// ══════════════════════════════════════════════════════════════════════════════

// Options настраивает репозиторий. Нулевое значение дополняется
// значениями по умолчанию в NewRepository.
type Options struct {
	// Clock - источник текущего времени (UTC). По умолчанию time.Now().UTC.
	Clock func() time.Time

	// NewID - генератор идентификаторов. По умолчанию uuid.NewString.
	NewID func() string

	// EnforceTenant - требовать арендную область в контексте каждой
	// операции. При false операции без области выполняются без фильтра
	// арендатора (поведение миграционного периода).
	EnforceTenant bool
}

// Repository - обобщённый репозиторий над хранилищем записей типа T.
// Экземпляр безопасен для конкурентного использования.
type Repository[T entity.Record] struct {
	store  Store[T]
	domain string

	clock         func() time.Time
	newID         func() string
	enforceTenant bool

	mu     sync.Mutex
	staged []Change[T]
}

// NewRepository создаёт репозиторий над хранилищем.
// domain используется в ошибках ("student", "progress").
func NewRepository[T entity.Record](domain string, store Store[T], opts Options) *Repository[T] {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Repository[T]{
		store:         store,
		domain:        domain,
		clock:         opts.Clock,
		newID:         opts.NewID,
		enforceTenant: opts.EnforceTenant,
	}
}

// scope извлекает арендную область операции из контекста.
func (r *Repository[T]) scope(ctx context.Context, op string) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok || !scope.IsValid() {
		if r.enforceTenant {
			return tenant.Scope{}, shared.NewDomainError(r.domain, op, shared.ErrTenantRequired,
				"operation requires a tenant scope in context")
		}
		return tenant.Scope{}, nil
	}
	return scope, nil
}

// baseQuery возвращает запрос с фильтрами по умолчанию: не удалённые записи
// в рамках арендной области.
func (r *Repository[T]) baseQuery(scope tenant.Scope) Query {
	return Query{
		TenantID:       scope.TenantID,
		IncludeDeleted: false,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Read path
// ─────────────────────────────────────────────────────────────────────────────

// GetAll возвращает все не удалённые записи арендной области.
func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	scope, err := r.scope(ctx, "GetAll")
	if err != nil {
		return nil, err
	}
	return r.store.Select(ctx, r.baseQuery(scope))
}

// GetByID возвращает запись по идентификатору.
// Отсутствующая или мягко удалённая запись - это nil без ошибки
// (семантика "не найдено" не является сбоем).
func (r *Repository[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T

	scope, err := r.scope(ctx, "GetByID")
	if err != nil {
		return zero, err
	}

	items, err := r.store.Select(ctx, r.baseQuery(scope).WithIDs(id))
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, nil
	}
	return items[0], nil
}

// Find возвращает не удалённые записи, дополнительно удовлетворяющие
// произвольному предикату вызывающего.
func (r *Repository[T]) Find(ctx context.Context, predicate func(T) bool) ([]T, error) {
	scope, err := r.scope(ctx, "Find")
	if err != nil {
		return nil, err
	}

	items, err := r.store.Select(ctx, r.baseQuery(scope))
	if err != nil {
		return nil, err
	}

	matched := make([]T, 0, len(items))
	for _, item := range items {
		if predicate(item) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// Count возвращает количество не удалённых записей арендной области.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	scope, err := r.scope(ctx, "Count")
	if err != nil {
		return 0, err
	}
	return r.store.Count(ctx, r.baseQuery(scope))
}

// GetAllWithIncludes работает как GetAll, но жадно материализует названные
// связанные коллекции, избегая ленивых дозагрузок по записям.
func (r *Repository[T]) GetAllWithIncludes(ctx context.Context, relations ...string) ([]T, error) {
	scope, err := r.scope(ctx, "GetAllWithIncludes")
	if err != nil {
		return nil, err
	}
	return r.store.Select(ctx, r.baseQuery(scope).WithRelations(relations...))
}

// Queryable возвращает компонуемый запрос, заранее отфильтрованный до
// не удалённых записей арендной области. Специализированные репозитории
// дополняют его перед материализацией через Select.
func (r *Repository[T]) Queryable(ctx context.Context) (Query, error) {
	scope, err := r.scope(ctx, "Queryable")
	if err != nil {
		return Query{}, err
	}
	return r.baseQuery(scope), nil
}

// Select материализует компонуемый запрос через хранилище.
func (r *Repository[T]) Select(ctx context.Context, q Query) ([]T, error) {
	return r.store.Select(ctx, q)
}

// ─────────────────────────────────────────────────────────────────────────────
// Write path (staging)
// ─────────────────────────────────────────────────────────────────────────────

// Add назначает свежий идентификатор, штампует InsertedAt и UpdatedAt текущим
// временем и стейджит запись для вставки. Сам по себе не фиксирует -
// фиксация выполняется отдельным явным Save.
func (r *Repository[T]) Add(ctx context.Context, item T) error {
	scope, err := r.scope(ctx, "Add")
	if err != nil {
		return err
	}

	meta := item.Meta()
	meta.StampCreated(r.newID(), r.clock(), scope.Actor())
	if scope.TenantID != "" {
		meta.TenantID = scope.TenantID
	}

	r.stage(Change[T]{Kind: ChangeInsert, Entity: item})
	return nil
}

// Update штампует UpdatedAt текущим временем и стейджит запись как
// изменённую. Вызывающий передаёт полную сущность; частичных обновлений нет.
// Запись чужой арендной области отклоняется до стейджинга.
func (r *Repository[T]) Update(ctx context.Context, item T) error {
	scope, err := r.scope(ctx, "Update")
	if err != nil {
		return err
	}

	meta := item.Meta()
	if scope.TenantID != "" && meta.TenantID != "" && meta.TenantID != scope.TenantID {
		return shared.NewDomainError(r.domain, "Update", shared.ErrTenantMismatch,
			"entity belongs to another tenant")
	}

	meta.StampUpdated(r.clock(), scope.Actor())
	r.stage(Change[T]{Kind: ChangeUpdate, Entity: item})
	return nil
}

// Delete выполняет мягкое удаление записи по идентификатору.
// Отсутствующая запись - no-op без ошибки (идемпотентность).
// Ряд остаётся физически присутствующим в хранилище.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	scope, err := r.scope(ctx, "Delete")
	if err != nil {
		return err
	}

	items, err := r.store.Select(ctx, r.baseQuery(scope).WithIDs(id))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	item := items[0]
	item.Meta().MarkDeleted(r.clock(), scope.Actor())
	r.stage(Change[T]{Kind: ChangeUpdate, Entity: item})
	return nil
}

// Save атомарно фиксирует все застейдженные изменения в хранилище.
// При сбое хранилища частичной фиксации не происходит и застейдженный набор
// сохраняется; при успехе набор очищается.
func (r *Repository[T]) Save(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]Change[T], len(r.staged))
	copy(pending, r.staged)
	r.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	if err := r.store.Apply(ctx, pending); err != nil {
		return shared.WrapError(r.domain, "Save", shared.ErrPersistence,
			"failed to commit staged changes", err)
	}

	r.mu.Lock()
	r.staged = r.staged[len(pending):]
	r.mu.Unlock()
	return nil
}

// StagedCount возвращает количество незафиксированных изменений.
func (r *Repository[T]) StagedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.staged)
}

func (r *Repository[T]) stage(change Change[T]) {
	r.mu.Lock()
	r.staged = append(r.staged, change)
	r.mu.Unlock()
}
