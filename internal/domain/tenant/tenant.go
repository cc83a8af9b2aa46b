// Package tenant переносит арендную область (tenant scope) запроса через
// context.Context. Каждая операция чтения и записи в репозиториях выполняется
// в рамках области текущего запроса: чтения фильтруются по tenant_id, записи
// штампуются им и идентификатором актора.
package tenant

import "context"

// Scope описывает арендную область выполняемой операции.
type Scope struct {
	// TenantID - идентификатор арендатора (школы). Обязателен.
	TenantID string

	// ActorID - идентификатор пользователя, выполняющего операцию.
	// Пустая строка означает системную операцию (аудит-поля останутся nil).
	ActorID string
}

// IsValid проверяет, что область содержит арендатора.
func (s Scope) IsValid() bool {
	return s.TenantID != ""
}

// Actor возвращает указатель на ActorID для аудит-полей, nil если актора нет.
func (s Scope) Actor() *string {
	if s.ActorID == "" {
		return nil
	}
	actor := s.ActorID
	return &actor
}

type ctxKey struct{}

// WithScope привязывает область к контексту.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, scope)
}

// FromContext извлекает область из контекста.
// Второе значение false, если область не была установлена.
func FromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(ctxKey{}).(Scope)
	return scope, ok
}
