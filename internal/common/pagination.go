package common

import (
	"net/http"
	"strings"
)

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads ?page= and ?limit=. Missing or invalid values fall
// back to page 1 and defaultPerPage; limits above maxPerPage are capped when
// maxPerPage is positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = AtoiDefault(strings.TrimSpace(q.Get("page")), 1)
	if page < 1 {
		page = 1
	}
	perPage = AtoiDefault(strings.TrimSpace(q.Get("limit")), defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
