package shared

// Pagination contains metadata for paginated listings.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Page is the offset/limit window derived from a page request.
type Page struct {
	Offset     int
	Limit      int
	TotalPages int
}

// BuildPage converts a 1-based page request into an offset/limit window.
// TotalPages is never below 1, so an empty result still reports one page.
// Callers validate page and pageSize at the boundary; values below 1 are treated as 1.
func BuildPage(page, pageSize, totalMatching int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if totalMatching < 0 {
		totalMatching = 0
	}
	totalPages := (totalMatching + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
		TotalPages: totalPages,
	}
}

// NewPagination computes pagination metadata for a response.
func NewPagination(page, perPage, total int) Pagination {
	window := BuildPage(page, perPage, total)
	if page < 1 {
		page = 1
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   window.TotalPages,
		TotalItems:   total,
		ItemsPerPage: window.Limit,
	}
}
