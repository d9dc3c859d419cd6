package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPage(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		size     int
		total    int
		expected Page
	}{
		{name: "first page", page: 1, size: 10, total: 25, expected: Page{Offset: 0, Limit: 10, TotalPages: 3}},
		{name: "last partial page", page: 3, size: 10, total: 25, expected: Page{Offset: 20, Limit: 10, TotalPages: 3}},
		{name: "beyond last page", page: 4, size: 10, total: 25, expected: Page{Offset: 30, Limit: 10, TotalPages: 3}},
		{name: "exact multiple", page: 2, size: 5, total: 10, expected: Page{Offset: 5, Limit: 5, TotalPages: 2}},
		{name: "no matches keeps one page", page: 1, size: 10, total: 0, expected: Page{Offset: 0, Limit: 10, TotalPages: 1}},
		{name: "non positive page clamps", page: 0, size: 10, total: 3, expected: Page{Offset: 0, Limit: 10, TotalPages: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildPage(tt.page, tt.size, tt.total))
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10}, p)

	empty := NewPagination(1, 10, 0)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Equal(t, 0, empty.TotalItems)
}
