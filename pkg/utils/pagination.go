package utils

import "strconv"

// Page is a 1-based page request.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the row offset of the page.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// ParsePage parses page and limit query values, falling back to page 1 and
// defLimit, and capping limit at maxLimit.
func ParsePage(page, limit string, defLimit, maxLimit int) Page {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		p = 1
	}
	l, err := strconv.Atoi(limit)
	if err != nil || l < 1 {
		l = defLimit
	}
	if l > maxLimit {
		l = maxLimit
	}
	return Page{Page: p, Limit: l}
}
