package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Validate(t *testing.T) {
	assert.NoError(t, PageRequest{PageNumber: 1, PageSize: 10}.Validate())
	assert.Error(t, PageRequest{PageNumber: 0, PageSize: 10}.Validate())
	assert.Error(t, PageRequest{PageNumber: -1, PageSize: 10}.Validate())
	assert.Error(t, PageRequest{PageNumber: 1, PageSize: 0}.Validate())
	assert.Error(t, PageRequest{PageNumber: 1, PageSize: -5}.Validate())
}

func TestPaginate_FirstPage(t *testing.T) {
	full := []int{1, 2, 3, 4, 5, 6, 7}

	page := Paginate(full, PageRequest{PageNumber: 1, PageSize: 3})

	assert.Equal(t, []int{1, 2, 3}, page.Items)
	assert.Equal(t, 7, page.TotalCount)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 3, page.PageSize)
	assert.True(t, page.HasMore())
}

func TestPaginate_LastPartialPage(t *testing.T) {
	full := []int{1, 2, 3, 4, 5, 6, 7}

	page := Paginate(full, PageRequest{PageNumber: 3, PageSize: 3})

	assert.Equal(t, []int{7}, page.Items)
	assert.Equal(t, 7, page.TotalCount)
	assert.False(t, page.HasMore())
}

func TestPaginate_BeyondEnd(t *testing.T) {
	full := []int{1, 2, 3}

	page := Paginate(full, PageRequest{PageNumber: 5, PageSize: 10})

	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.TotalCount)
	assert.False(t, page.HasMore())
}

func TestPaginate_EmptyInput(t *testing.T) {
	page := Paginate([]string{}, PageRequest{PageNumber: 1, PageSize: 10})

	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalCount)
	assert.False(t, page.HasMore())
}

func TestPaginate_ExactBoundary(t *testing.T) {
	full := []int{1, 2, 3, 4}

	page := Paginate(full, PageRequest{PageNumber: 2, PageSize: 2})

	assert.Equal(t, []int{3, 4}, page.Items)
	assert.False(t, page.HasMore())
}
