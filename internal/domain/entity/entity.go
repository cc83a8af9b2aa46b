// Package entity содержит контракт хранимой записи: общий набор атрибутов
// (идентичность, мягкое удаление, аудит-поля, маркер арендатора), которому
// удовлетворяет каждая сущность платформы. Пакет не имеет внешних
// зависимостей - это ядро доменной модели.
package entity

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// BASE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Base - общие атрибуты каждой хранимой записи.
// Встраивается во все доменные сущности (Student, Progress).
type Base struct {
	// ID - уникальный идентификатор, назначается репозиторием при создании
	// и никогда не переназначается.
	ID string `json:"id"`

	// IsDeleted - флаг мягкого удаления. true означает "логически
	// отсутствует": запись исключается из всех обычных чтений.
	IsDeleted bool `json:"is_deleted"`

	// InsertedAt - момент создания (UTC). Устанавливается один раз.
	InsertedAt time.Time `json:"inserted_at"`

	// UpdatedAt - момент последней мутации (UTC). Обновляется при каждом
	// создании, изменении и мягком удалении.
	UpdatedAt time.Time `json:"updated_at"`

	// InsertedBy - идентификатор актора, создавшего запись (опционально).
	InsertedBy *string `json:"inserted_by,omitempty"`

	// UpdatedBy - идентификатор актора последней мутации (опционально).
	UpdatedBy *string `json:"updated_by,omitempty"`

	// TenantID - маркер арендатора. Все запросы выполняются в рамках
	// арендной области.
	TenantID string `json:"tenant_id"`
}

// Meta возвращает сам Base - так встраивающие типы удовлетворяют Record.
func (b *Base) Meta() *Base {
	return b
}

// Record - контракт, которому удовлетворяет каждая хранимая сущность.
// Реализуется встраиванием Base.
type Record interface {
	Meta() *Base
}

// ─────────────────────────────────────────────────────────────────────────────
// Audit stamping
// ─────────────────────────────────────────────────────────────────────────────

// StampCreated штампует запись при создании: id назначен вызывающим,
// InsertedAt == UpdatedAt, запись видима.
func (b *Base) StampCreated(id string, now time.Time, actor *string) {
	b.ID = id
	b.IsDeleted = false
	b.InsertedAt = now
	b.UpdatedAt = now
	b.InsertedBy = actor
	b.UpdatedBy = actor
}

// StampUpdated штампует запись при мутации. InsertedAt и ID не меняются.
func (b *Base) StampUpdated(now time.Time, actor *string) {
	b.UpdatedAt = now
	b.UpdatedBy = actor
}

// MarkDeleted выполняет мягкое удаление: запись остаётся физически
// присутствующей, но исключается из обычных чтений.
func (b *Base) MarkDeleted(now time.Time, actor *string) {
	b.IsDeleted = true
	b.StampUpdated(now, actor)
}
