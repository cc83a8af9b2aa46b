package shared

// ══════════════════════════════════════════════════════════════════════════════
// PAGINATION
// Страничная нарезка уже материализованного упорядоченного результата.
// Ядро предполагает валидированные положительные параметры; проверка на
// границе выполняется через PageRequest.Validate().
// ══════════════════════════════════════════════════════════════════════════════

// PageRequest содержит параметры страницы, запрошенные вызывающим слоем.
type PageRequest struct {
	// PageNumber - номер страницы, начиная с 1.
	PageNumber int

	// PageSize - размер страницы, строго положительный.
	PageSize int
}

// Validate проверяет корректность параметров страницы.
func (p PageRequest) Validate() error {
	if p.PageNumber < 1 {
		return NewDomainError("shared", "Paginate", ErrValueOutOfRange, "page number must be >= 1")
	}
	if p.PageSize < 1 {
		return NewDomainError("shared", "Paginate", ErrValueOutOfRange, "page size must be >= 1")
	}
	return nil
}

// Skip возвращает смещение первого элемента страницы в полном результате.
func (p PageRequest) Skip() int {
	return (p.PageNumber - 1) * p.PageSize
}

// PagedResult содержит одну страницу упорядоченного результата вместе с
// полным количеством элементов до нарезки.
type PagedResult[T any] struct {
	// Items - элементы страницы; len(Items) <= PageSize.
	Items []T `json:"items"`

	// TotalCount - общее количество элементов полного результата.
	TotalCount int `json:"total_count"`

	// PageNumber - запрошенный номер страницы (1-based).
	PageNumber int `json:"page_number"`

	// PageSize - запрошенный размер страницы.
	PageSize int `json:"page_size"`
}

// HasMore сообщает, есть ли элементы после текущей страницы.
func (r PagedResult[T]) HasMore() bool {
	return r.PageNumber*r.PageSize < r.TotalCount
}

// Paginate нарезает полный упорядоченный список в страницу.
// Срез [skip .. skip+size) обрезается по доступной длине; страница за
// пределами списка даёт пустые Items при сохранённом TotalCount.
func Paginate[T any](full []T, page PageRequest) PagedResult[T] {
	result := PagedResult[T]{
		Items:      []T{},
		TotalCount: len(full),
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}

	skip := page.Skip()
	if skip >= len(full) {
		return result
	}

	end := skip + page.PageSize
	if end > len(full) {
		end = len(full)
	}

	result.Items = append(result.Items, full[skip:end]...)
	return result
}
