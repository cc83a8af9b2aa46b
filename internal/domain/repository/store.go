// Package repository реализует обобщённый репозиторий поверх запрашиваемого
// хранилища записей. Репозиторий единообразно навязывает контракт сущности:
// видимость мягкого удаления, правила мутации аудит-полей и арендную область -
// без дублирования по типам сущностей. Реализации Store находятся в
// infrastructure/persistence.
package repository

import (
	"context"

	"github.com/schoolhub/progress-hub/internal/domain/entity"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE CONTRACT
// Входящий коллаборатор (§ внешние интерфейсы): запрашиваемое хранилище с
// фильтрованными чтениями, вставками, полнострочными обновлениями и атомарной
// фиксацией пакета изменений.
// ══════════════════════════════════════════════════════════════════════════════

// Query описывает фильтры чтения, которые хранилище обязано применить.
// Нулевое значение означает "все записи без фильтра удаления и арендатора" -
// репозиторий сам никогда не выпускает такой запрос наружу, кроме как через
// Unfiltered (инспекция для тестов).
type Query struct {
	// TenantID - фильтр арендной области. Пустая строка = без фильтра.
	TenantID string

	// IncludeDeleted - включать ли мягко удалённые записи.
	// Ни один обычный путь чтения репозитория не устанавливает true.
	IncludeDeleted bool

	// IDs - ограничение по идентификаторам (пустой срез = без ограничения).
	IDs []string

	// Relations - имена связей для жадной загрузки (eager loading).
	// Хранилище материализует связь в той же выборке.
	Relations []string
}

// WithRelations возвращает копию запроса с добавленными связями.
func (q Query) WithRelations(relations ...string) Query {
	q.Relations = append(append([]string{}, q.Relations...), relations...)
	return q
}

// WithIDs возвращает копию запроса, ограниченную идентификаторами.
func (q Query) WithIDs(ids ...string) Query {
	q.IDs = append(append([]string{}, q.IDs...), ids...)
	return q
}

// Unfiltered возвращает копию запроса, включающую мягко удалённые записи.
// Предназначен для прямой инспекции рядов (тесты, отладка).
func (q Query) Unfiltered() Query {
	q.IncludeDeleted = true
	return q
}

// ChangeKind различает виды застейдженных изменений.
type ChangeKind int

const (
	// ChangeInsert - вставка новой записи.
	ChangeInsert ChangeKind = iota

	// ChangeUpdate - полнострочная замена существующей записи
	// (мягкое удаление тоже выражается обновлением).
	ChangeUpdate
)

// Change - одно застейдженное изменение.
type Change[T entity.Record] struct {
	Kind   ChangeKind
	Entity T
}

// Store - контракт хранилища записей одного типа сущности.
// Select обязан возвращать записи в стабильном порядке (по времени вставки,
// затем по id), чтобы пагинация поверх результата была детерминированной.
type Store[T entity.Record] interface {
	// Select возвращает записи, удовлетворяющие запросу.
	Select(ctx context.Context, q Query) ([]T, error)

	// Count возвращает количество записей, удовлетворяющих запросу.
	Count(ctx context.Context, q Query) (int, error)

	// Apply атомарно фиксирует пакет изменений: либо применяются все,
	// либо ни одно (all-or-nothing).
	Apply(ctx context.Context, changes []Change[T]) error
}
